// Package cmd implements the command-line interface for sheetsbridge.
//
// This package provides the following commands:
//   - serve: Start the Google Sheets integration HTTP service
//   - migrate: Apply the token store schema to Postgres
//   - keygen: Print a new token encryption key
//   - version: Display version information
//
// Every setting is read from flags, the environment and an optional .env
// file, in that order of precedence.
package cmd
