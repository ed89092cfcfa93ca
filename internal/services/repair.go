// Package services – RepairController
//
// This file implements the bounded generate/render/validate loop. Each
// iteration asks the generator for a structured intent, renders it to SQL,
// and runs the safety gate. A render failure or validation rejection is fed
// back into the next generation call so the model can self-correct; a hard
// generator failure aborts the loop immediately instead of retrying against
// a dead dependency.
//
// The loop is an explicit state machine rather than recursion: the attempt
// log is first-class, append-only state, capped at MaxAttempts, and past
// attempts are never mutated.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbourn/go-sqlchat-backend/internal/domain"
	"github.com/tbourn/go-sqlchat-backend/internal/llm"
	"github.com/tbourn/go-sqlchat-backend/internal/observability"
	"github.com/tbourn/go-sqlchat-backend/internal/schema"
	"github.com/tbourn/go-sqlchat-backend/internal/sqlgen"
	"github.com/tbourn/go-sqlchat-backend/internal/validation"
)

// reasonRenderError marks attempts that failed in the renderer, before the
// safety gate ever saw SQL.
const reasonRenderError = "RENDER_ERROR"

// excerptMaxLen caps the sanitized SQL fragment fed back to the generator.
const excerptMaxLen = 200

// DefaultMaxAttempts is the generation attempt budget unless config
// overrides it.
const DefaultMaxAttempts = 3

// IntentGenerator is the generation contract required by the controller.
// Implemented by llm.Generator in production and by fakes in tests.
type IntentGenerator interface {
	Generate(ctx context.Context, question string, feedback *llm.Feedback) (*domain.QueryIntent, error)
}

// SQLValidator is the safety-gate contract required by the controller.
type SQLValidator interface {
	Validate(sql string) validation.Result
}

// Attempt is one completed loop iteration. SQL is sanitized before being
// stored; it is empty when rendering failed.
type Attempt struct {
	Number   int
	SQL      string
	Approved bool
	Reason   string
	Detail   string
}

// AttemptsExhaustedError is returned when the attempt budget is spent
// without an approved statement. It carries the full attempt log; the last
// entry's reason becomes the user-facing failure.
type AttemptsExhaustedError struct {
	Attempts []Attempt
}

func (e *AttemptsExhaustedError) Error() string {
	last := e.Attempts[len(e.Attempts)-1]
	return fmt.Sprintf("no approved SQL after %d attempts, last rejection: %s (%s)",
		len(e.Attempts), last.Reason, last.Detail)
}

// LastReason returns the rejection reason of the final attempt.
func (e *AttemptsExhaustedError) LastReason() string {
	return e.Attempts[len(e.Attempts)-1].Reason
}

// RepairController owns the bounded repair loop.
type RepairController struct {
	// Generator produces intents from questions plus optional feedback.
	Generator IntentGenerator
	// Validator is the safety gate applied to every rendered statement.
	Validator SQLValidator
	// Catalog supplies unique-key metadata to the renderer.
	Catalog *schema.Catalog
	// MaxAttempts caps generation calls per request.
	MaxAttempts int
}

// NewRepairController constructs a controller with the default attempt
// budget.
func NewRepairController(g IntentGenerator, v SQLValidator, catalog *schema.Catalog) *RepairController {
	return &RepairController{
		Generator:   g,
		Validator:   v,
		Catalog:     catalog,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Run drives the loop for one question. window, when non-nil, is the
// request-level page applied to intents that carry no pagination of their
// own (an explicit "top 5" style intent wins over transport paging).
//
// On success it returns the approved statement and the attempt log. Failure
// is either *AttemptsExhaustedError or the generator's *llm.GenerationError.
func (c *RepairController) Run(ctx context.Context, question string, window *domain.Pagination) (sqlgen.Statement, []Attempt, error) {
	budget := c.MaxAttempts
	if budget <= 0 {
		budget = DefaultMaxAttempts
	}

	var attempts []Attempt
	var feedback *llm.Feedback

	for len(attempts) < budget {
		observability.CountGenerationAttempt()
		intent, err := c.Generator.Generate(ctx, question, feedback)
		if err != nil {
			return sqlgen.Statement{}, attempts, err
		}
		if intent.Pagination == nil && window != nil {
			intent.Pagination = window
		}

		stmt, err := sqlgen.Render(intent, c.Catalog)
		if err != nil {
			observability.CountValidationRejection(reasonRenderError)
			attempts = append(attempts, Attempt{
				Number: len(attempts) + 1,
				Reason: reasonRenderError,
				Detail: err.Error(),
			})
			feedback = &llm.Feedback{Reason: reasonRenderError, Detail: err.Error()}
			continue
		}

		res := c.Validator.Validate(stmt.SQL)
		sanitized := sqlgen.Sanitize(stmt.SQL)
		attempts = append(attempts, Attempt{
			Number:   len(attempts) + 1,
			SQL:      sanitized,
			Approved: res.Approved,
			Reason:   res.Reason,
			Detail:   res.Detail,
		})
		if res.Approved {
			return stmt, attempts, nil
		}
		observability.CountValidationRejection(res.Reason)
		feedback = &llm.Feedback{
			Reason:     res.Reason,
			Detail:     res.Detail,
			SQLExcerpt: excerpt(sanitized),
		}
	}

	return sqlgen.Statement{}, attempts, &AttemptsExhaustedError{Attempts: attempts}
}

// excerpt clips a sanitized statement for feedback prompts.
func excerpt(sql string) string {
	sql = strings.TrimSpace(sql)
	if len(sql) > excerptMaxLen {
		return sql[:excerptMaxLen]
	}
	return sql
}
