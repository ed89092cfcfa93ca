// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Transport codes are lowercase, snake_case, and mirror common HTTP status
//     semantics to aid interoperability.
//   - Pipeline codes (VALIDATION_FAILED, DB_ERROR, TIMEOUT, INTERNAL_ERROR) are
//     defined by the service layer (services.Code*) and passed through the
//     envelope unchanged, so clients see the same taxonomy the pipeline uses.
//   - All error responses must include both an HTTP status and one code.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "VALIDATION_FAILED",
//	  "message": "could not produce a safe query for this question"
//	}
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeListFailed       = "list_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
