// Query HTTP handlers.
//
// This file exposes the natural-language query endpoint:
//   - POST /queries (ask a question, get SQL + rows)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. All pipeline failures arrive as
// *services.QueryFailure and are mapped onto status codes here.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sqlchat-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// QueryService defines the question-answering operation consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type QueryService interface {
	// Answer runs the full pipeline for a question and returns rows or a
	// typed failure.
	Answer(ctx context.Context, userID, prompt string, page, pageSize int) (*services.QueryAnswer, error)
}

// Handlers groups HTTP endpoints for queries and history.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	querySvc QueryService
	histSvc  HistoryService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(querySvc QueryService, histSvc HistoryService) *Handlers {
	return &Handlers{querySvc: querySvc, histSvc: histSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateQueryRequest is the JSON payload for asking a question.
type CreateQueryRequest struct {
	// Prompt is the natural-language question (1-1000 chars).
	Prompt string `json:"prompt" binding:"required" example:"top 5 products by price"`
	// Page selects the result window (default 1).
	Page int `json:"page" example:"1"`
	// PageSize bounds the result window (1-100, default 20).
	PageSize int `json:"page_size" example:"20"`
}

// QueryMeta carries per-request metadata in successful responses.
type QueryMeta struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Attempts  int    `json:"attempts" example:"1"`
	Model     string `json:"model" example:"claude-sonnet-4-5"`
}

// QueryResponse is the successful result of one answered question.
type QueryResponse struct {
	SQL             string    `json:"sql"`
	Columns         []string  `json:"columns"`
	Rows            [][]any   `json:"rows"`
	RowCount        int       `json:"row_count"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	Truncated       bool      `json:"truncated"`
	Page            int       `json:"page"`
	PageSize        int       `json:"page_size"`
	Meta            QueryMeta `json:"meta"`
}

// statusForFailure maps pipeline failure codes onto HTTP statuses.
func statusForFailure(code string) int {
	switch code {
	case services.CodeValidationFailed:
		return http.StatusUnprocessableEntity
	case services.CodeTimeout:
		return http.StatusGatewayTimeout
	case services.CodeDBError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CreateQuery godoc
// @ID          createQuery
// @Summary     Answer a natural-language question
// @Description Generates a safe SQL query for the question, executes it, and returns the rows.
// @Tags        Queries
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateQueryRequest  true  "Question payload"
//
// @Success     200  {object}  handlers.QueryResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "No safe query could be generated"
// @Failure     502  {object}  handlers.ErrorResponse  "Database error"
// @Failure     504  {object}  handlers.ErrorResponse  "Generation or execution timeout"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /queries [post]
func (h *Handlers) CreateQuery(c *gin.Context) {
	var req CreateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ans, err := h.querySvc.Answer(c.Request.Context(), userID(c), req.Prompt, req.Page, req.PageSize)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyPrompt):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "prompt is required")
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "prompt too long")
		default:
			var failure *services.QueryFailure
			if errors.As(err, &failure) {
				fail(c, statusForFailure(failure.Code), failure.Code, failure.Message)
				return
			}
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "unexpected error")
		}
		return
	}

	rows := ans.Rows
	if rows == nil {
		rows = [][]any{}
	}
	ok(c, http.StatusOK, QueryResponse{
		SQL:             ans.SQL,
		Columns:         ans.Columns,
		Rows:            rows,
		RowCount:        ans.RowCount,
		ExecutionTimeMs: ans.Duration.Milliseconds(),
		Truncated:       ans.Truncated,
		Page:            ans.Page,
		PageSize:        ans.PageSize,
		Meta: QueryMeta{
			RequestID: c.Writer.Header().Get("X-Request-ID"),
			Attempts:  ans.Attempts,
			Model:     ans.Model,
		},
	})
}
