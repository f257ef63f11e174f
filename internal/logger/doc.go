// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a sane console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// The converter threads a context through parsing and serialization and
// extracts the logger from it, so diagnostics stay scoped to the file
// currently being processed.
package logger
