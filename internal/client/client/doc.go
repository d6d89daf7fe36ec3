// Package client talks to the voiceauth HTTP API.
//
// The Client interface mirrors the server routes: Register, VerifyRegister,
// Login, VerifyLogin, ResendCode and Me. HTTPClient implements it over JSON.
//
// # Error Handling
//
// Transport failures are reported as ErrUnavailable. A 401 or 403 answer
// wraps ErrUnauthorized. Any non-2xx answer comes back as *APIError, which
// carries the server's detail message, remaining attempts and Retry-After.
package client
