// Package services – QueryService
//
// This file implements the request orchestrator. Answer sequences the repair
// loop and the executor under one context, maps every terminal outcome to a
// stable failure code, and records a sanitized audit row regardless of how
// the request ended. The audit write is fire-and-forget with its own short
// deadline so a history failure never fails the request.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// user identifiers and attempt counts.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-sqlchat-backend/internal/db"
	"github.com/tbourn/go-sqlchat-backend/internal/domain"
	"github.com/tbourn/go-sqlchat-backend/internal/llm"
	"github.com/tbourn/go-sqlchat-backend/internal/observability"
	"github.com/tbourn/go-sqlchat-backend/internal/repo"
	"github.com/tbourn/go-sqlchat-backend/internal/sqlgen"
)

// QueryExecutor is the execution contract required by QueryService.
// Implemented by db.Executor in production and by fakes in tests.
type QueryExecutor interface {
	Execute(ctx context.Context, stmt sqlgen.Statement, timeout time.Duration, rowLimit int) (*db.ExecutionResult, error)
}

// QueryAnswer is the successful result of one answered question.
type QueryAnswer struct {
	SQL       string
	Columns   []string
	Rows      [][]any
	RowCount  int
	Duration  time.Duration
	Truncated bool
	Attempts  int
	Page      int
	PageSize  int
	Model     string
}

// QueryService orchestrates the full pipeline for one question.
type QueryService struct {
	// DB is the GORM handle for the audit store; nil disables auditing.
	DB *gorm.DB
	// Repair drives intent generation and the safety gate.
	Repair *RepairController
	// Executor runs approved statements against the warehouse.
	Executor QueryExecutor

	// Model is the model identifier reported in response metadata.
	Model string
	// MaxPromptRunes caps accepted prompts by rune length.
	MaxPromptRunes int
	// QueryTimeout bounds each warehouse query.
	QueryTimeout time.Duration
	// MaxRows caps materialized result rows per query.
	MaxRows int
	// DefaultPageSize and MaxPageSize bound request-level paging.
	DefaultPageSize int
	MaxPageSize     int
	// AuditTimeout bounds the fire-and-forget history write.
	AuditTimeout time.Duration
}

// NewQueryService constructs a QueryService with sane limits.
func NewQueryService(gdb *gorm.DB, repair *RepairController, exec QueryExecutor, model string) *QueryService {
	return &QueryService{
		DB:              gdb,
		Repair:          repair,
		Executor:        exec,
		Model:           model,
		MaxPromptRunes:  1000,
		QueryTimeout:    30 * time.Second,
		MaxRows:         5000,
		DefaultPageSize: 20,
		MaxPageSize:     100,
		AuditTimeout:    3 * time.Second,
	}
}

// Answer runs the pipeline for prompt on behalf of userID. page and pageSize
// bound the result window; invalid values fall back to defaults. Failures
// are returned as *QueryFailure (or ErrEmptyPrompt/ErrTooLong for request
// validation).
func (s *QueryService) Answer(ctx context.Context, userID, prompt string, page, pageSize int) (*QueryAnswer, error) {
	tr := otel.Tracer("services/QueryService")
	ctx, span := tr.Start(ctx, "Answer",
		trace.WithAttributes(
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(prompt) > s.MaxPromptRunes {
		return nil, ErrTooLong
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.DefaultPageSize
	}
	if s.MaxPageSize > 0 && pageSize > s.MaxPageSize {
		pageSize = s.MaxPageSize
	}
	window := &domain.Pagination{Offset: (page - 1) * pageSize, FetchNext: pageSize}

	start := time.Now()
	stmt, attempts, err := s.Repair.Run(ctx, prompt, window)
	span.SetAttributes(attribute.Int("query.attempts", len(attempts)))
	if err != nil {
		failure := classifyRepairFailure(err)
		outcome := outcomeForCode(failure.Code)
		observability.CountQueryOutcome(outcome, time.Since(start).Seconds())
		s.audit(ctx, userID, prompt, lastSanitizedSQL(attempts), len(attempts),
			outcome, failure.Code, 0, time.Since(start))
		return nil, failure
	}

	res, err := s.Executor.Execute(ctx, stmt, s.QueryTimeout, s.MaxRows)
	if err != nil {
		failure := classifyExecutionFailure(err)
		outcome := outcomeForCode(failure.Code)
		observability.CountQueryOutcome(outcome, time.Since(start).Seconds())
		s.audit(ctx, userID, prompt, sqlgen.Sanitize(stmt.SQL), len(attempts),
			outcome, failure.Code, 0, time.Since(start))
		return nil, failure
	}

	observability.CountQueryOutcome(domain.OutcomeOK, time.Since(start).Seconds())
	s.audit(ctx, userID, prompt, sqlgen.Sanitize(stmt.SQL), len(attempts),
		domain.OutcomeOK, "", res.RowCount, time.Since(start))

	return &QueryAnswer{
		SQL:       stmt.SQL,
		Columns:   res.Columns,
		Rows:      res.Rows,
		RowCount:  res.RowCount,
		Duration:  res.Duration,
		Truncated: res.Truncated,
		Attempts:  len(attempts),
		Page:      page,
		PageSize:  pageSize,
		Model:     s.Model,
	}, nil
}

// classifyRepairFailure maps repair-loop errors onto stable failure codes.
func classifyRepairFailure(err error) *QueryFailure {
	var exhausted *AttemptsExhaustedError
	if errors.As(err, &exhausted) {
		return &QueryFailure{
			Code:    CodeValidationFailed,
			Message: "could not produce a safe query for this question",
			Err:     err,
		}
	}
	var gerr *llm.GenerationError
	if errors.As(err, &gerr) && gerr.Kind == llm.KindTimeout {
		return &QueryFailure{
			Code:    CodeTimeout,
			Message: "query generation timed out",
			Err:     err,
		}
	}
	return &QueryFailure{
		Code:    CodeInternalError,
		Message: "query generation failed",
		Err:     err,
	}
}

// classifyExecutionFailure maps executor errors onto stable failure codes.
func classifyExecutionFailure(err error) *QueryFailure {
	var xerr *db.ExecutionError
	if errors.As(err, &xerr) {
		switch xerr.Code {
		case db.CodeTimeout:
			return &QueryFailure{Code: CodeTimeout, Message: "query execution timed out", Err: err}
		case db.CodeDBError:
			return &QueryFailure{Code: CodeDBError, Message: "query execution failed", Err: err}
		}
	}
	return &QueryFailure{Code: CodeInternalError, Message: "query execution failed", Err: err}
}

// outcomeForCode translates a failure code into the audit outcome value.
func outcomeForCode(code string) string {
	switch code {
	case CodeValidationFailed:
		return domain.OutcomeValidationFailed
	case CodeTimeout:
		return domain.OutcomeExecutionTimeout
	case CodeDBError:
		return domain.OutcomeExecutionDBError
	default:
		return domain.OutcomeInternalError
	}
}

// lastSanitizedSQL returns the sanitized SQL of the most recent attempt that
// produced any, for audit rows of failed requests.
func lastSanitizedSQL(attempts []Attempt) string {
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].SQL != "" {
			return attempts[i].SQL
		}
	}
	return ""
}

// audit writes one history row asynchronously. The write detaches from the
// request's cancellation but keeps its values for log correlation, and runs
// under its own short deadline.
func (s *QueryService) audit(ctx context.Context, userID, question, sanitizedSQL string, attempts int, outcome, errorCode string, rowCount int, duration time.Duration) {
	if s.DB == nil {
		return
	}
	rec := &domain.QueryRecord{
		UserID:       userID,
		Question:     question,
		Label:        generateLabel(question),
		SanitizedSQL: sanitizedSQL,
		Attempts:     attempts,
		Outcome:      outcome,
		ErrorCode:    errorCode,
		RowCount:     rowCount,
		DurationMs:   duration.Milliseconds(),
	}
	log := zerolog.Ctx(ctx)
	timeout := s.AuditTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		actx, cancel := context.WithTimeout(detached, timeout)
		defer cancel()
		if _, err := repo.CreateQueryRecord(actx, s.DB, rec); err != nil {
			log.Warn().Err(err).Msg("audit write failed")
		}
	}()
}
