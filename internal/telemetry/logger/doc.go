// Package logger provides structured logging for replicacheck.
//
// This package wraps log/slog:
//
//   - logger.go: Logger interface, handler selection, dynamic level
//   - context.go: context propagation of the logger and the run ID
//   - redact.go: masking and truncation of record values
//
// Diagnostic output (one record per key read, one summary per replica)
// goes to stderr so that the verification report on stdout stays machine
// readable.
package logger
