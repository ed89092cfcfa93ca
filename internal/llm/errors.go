// Package llm generates structured query intents from natural-language
// questions using the Anthropic Messages API. The package never produces SQL
// text; its only output is a schema-checked QueryIntent, and any response
// that fails strict decoding is surfaced as a typed GenerationError rather
// than forwarded downstream.
package llm

import "fmt"

// GenerationError kinds.
const (
	// KindProvider marks network or API-level failures from the model
	// provider, after retries were exhausted.
	KindProvider = "provider"

	// KindTimeout marks a generation call that exceeded its deadline.
	KindTimeout = "timeout"

	// KindMalformed marks a provider response that did not decode into a
	// valid QueryIntent.
	KindMalformed = "malformed"
)

// GenerationError is a hard generator failure. It aborts the repair loop
// immediately: retrying intent generation against a failing dependency only
// burns the attempt budget.
type GenerationError struct {
	Kind string
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
