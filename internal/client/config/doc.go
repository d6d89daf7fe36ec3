// Package config loads runtime configuration for the voiceauth CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file selected via -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the voiceauth HTTP API
//	-t int      request timeout (seconds)
//	-k string   file the bearer token is kept in
//
// # File schema
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "timeout": "10s",
//	  "token_file": ".voiceauth/token"
//	}
package config
