package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tbourn/go-sqlchat-backend/internal/sqlgen"
)

// ExecutionError codes.
const (
	CodeTimeout = "TIMEOUT"
	CodeDBError = "DB_ERROR"
)

// ExecutionError is a terminal execution failure. Code is one of CodeTimeout
// or CodeDBError and maps 1:1 to the API error code.
type ExecutionError struct {
	Code string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed (%s): %v", e.Code, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ExecutionResult is the materialized result of one approved query.
type ExecutionResult struct {
	Columns   []string
	Rows      [][]any
	RowCount  int
	Duration  time.Duration
	Truncated bool
}

// Querier is the subset of the pool the executor uses. *pgxpool.Pool
// satisfies it; tests substitute fakes.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Executor runs approved statements against the warehouse with a hard
// per-query deadline and a row cap. Connections are acquired per call via
// the pool and always released, on every exit path, by closing the rows.
type Executor struct {
	q Querier
}

// NewExecutor returns an Executor over q.
func NewExecutor(q Querier) *Executor {
	return &Executor{q: q}
}

// Execute runs stmt with the given timeout and row cap. It fetches at most
// rowLimit rows and probes one row further to set Truncated instead of
// materializing an unbounded result.
func (e *Executor) Execute(ctx context.Context, stmt sqlgen.Statement, timeout time.Duration, rowLimit int) (*ExecutionResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := e.q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var columns []string
	for _, fd := range rows.FieldDescriptions() {
		columns = append(columns, fd.Name)
	}

	result := &ExecutionResult{Columns: columns}
	for rows.Next() {
		if rowLimit > 0 && result.RowCount == rowLimit {
			result.Truncated = true
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, classify(err)
		}
		result.Rows = append(result.Rows, vals)
		result.RowCount++
	}
	if !result.Truncated {
		if err := rows.Err(); err != nil {
			return nil, classify(err)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// classify maps driver errors onto the two terminal execution codes. A
// deadline expiry is a TIMEOUT; everything else, including caller
// cancellation, surfaces as DB_ERROR with the cause attached.
func classify(err error) *ExecutionError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ExecutionError{Code: CodeTimeout, Err: err}
	}
	return &ExecutionError{Code: CodeDBError, Err: err}
}
