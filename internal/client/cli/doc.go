// Package cli provides the voiceauth command-line client.
//
// Each subcommand drives one step of the two-step flows against the HTTP
// API: register, verify-register, login, verify-login, resend, me and
// logout. Run without a subcommand it starts a small REPL accepting the
// same commands.
//
// A token returned by a verify step is kept in the configured token file
// and sent by "me".
package cli
