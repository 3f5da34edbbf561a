// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status semantics;
// domain codes name the relay operation that failed. Clients branch on the
// code, never on the message.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeCompletionFailed = "completion_failed"
	ErrCodePrimeFailed      = "prime_failed"
	ErrCodeDropFailed       = "drop_failed"
	ErrCodeContextFailed    = "context_read_failed"
)
