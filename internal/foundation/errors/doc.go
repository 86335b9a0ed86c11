// Package errors provides foundational, type-safe error primitives used across dbtrunner.
//
// This package contains classified error types and helpers for robust error handling,
// including a fluent builder API for constructing ClassifiedError values with context.
//
// Key features:
//   - ErrorCategory: Broad error classification (config, validation, git, build, artifact, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - RetryStrategy: Hint for the external orchestrator; dbtrunner itself never retries
//   - ClassifiedError: Structured error with category, severity, and context
//   - Categorized / Detailed: interfaces implemented by the typed run errors
//     (argument validation, clone, step execution, missing artifact)
//   - CLIErrorAdapter: exit code mapping and user-facing formatting
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryGit, "clone failed").
//		WithSeverity(errors.SeverityFatal).
//		WithContext("reference", ref).
//		WithCause(originalErr).
//		Build()
package errors
