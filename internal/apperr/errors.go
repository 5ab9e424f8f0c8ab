// Package apperr defines the typed error kinds shared across the assistant.
// Callers branch on them with errors.As; transport code maps them to HTTP
// status codes.
package apperr

import "fmt"

// ValidationError reports malformed input: an invalid actor, tool arguments
// that fail their schema, or a batch of the wrong size.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// AuthorizationError reports that an actor may not see or touch a resource.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

// Authorizationf builds an AuthorizationError from a format string.
func Authorizationf(format string, args ...any) *AuthorizationError {
	return &AuthorizationError{Msg: fmt.Sprintf(format, args...)}
}

// ScopeConfigurationError reports an actor whose region or company scope is
// required but empty. It is a data problem on the actor, not a denial.
type ScopeConfigurationError struct {
	Msg string
}

func (e *ScopeConfigurationError) Error() string { return e.Msg }

// ToolExecutionError wraps a failure raised by a tool's run function.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ProviderError wraps a failure from the language model provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AuditWriteError wraps a failure to persist an audit entry. It is logged and
// never surfaced to the caller of a tool.
type AuditWriteError struct {
	Err error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit write: %v", e.Err)
}

func (e *AuditWriteError) Unwrap() error { return e.Err }
