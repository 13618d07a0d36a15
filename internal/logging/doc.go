// Package logging provides structured logging utilities for the sheetsbridge service.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Handler construction (text or JSON) with a configurable level
//   - PII sanitization (user id hashing, token masking)
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "sheets.read")
//	logger.Info("reading values",
//	    logging.Status("success"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("credential stored",
//	    logging.UserHash(userID))
//
// # Security Considerations
//
// This package is designed with security in mind:
//   - User ids are hashed to prevent PII leakage while allowing correlation
//   - Tokens are never logged directly
package logging
