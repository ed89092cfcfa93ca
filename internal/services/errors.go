// Package services defines the business logic of the query pipeline: the
// bounded generate/validate repair loop and the request orchestrator that
// sequences generation, execution, and audit persistence.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import (
	"errors"
	"fmt"
)

// Stable failure codes surfaced to the API layer. Each terminal pipeline
// outcome maps to exactly one of these.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeDBError          = "DB_ERROR"
	CodeTimeout          = "TIMEOUT"
	CodeInternalError    = "INTERNAL_ERROR"
)

// Request validation errors.
var (
	// ErrEmptyPrompt is returned when a query request contains an empty
	// prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a query request exceeds the maximum
	// configured prompt length.
	ErrTooLong = errors.New("prompt too long")
)

// QueryFailure is a terminal pipeline failure with a stable code. Message is
// short and safe to show to users; the underlying cause stays in Err for the
// log sink only.
type QueryFailure struct {
	Code    string
	Message string
	Err     error
}

func (f *QueryFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

func (f *QueryFailure) Unwrap() error { return f.Err }
