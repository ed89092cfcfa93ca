package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tbourn/go-sqlchat-backend/internal/domain"
	"github.com/tbourn/go-sqlchat-backend/internal/schema"
)

// Feedback carries the rejection context of a prior failed attempt into the
// next generation call, so the model can self-correct.
type Feedback struct {
	// Reason is the validator reason code or "RENDER_ERROR".
	Reason string
	// Detail is the human-readable rejection detail.
	Detail string
	// SQLExcerpt is a short sanitized fragment of the offending SQL; empty
	// when no SQL was rendered.
	SQLExcerpt string
}

// intentSchema describes the exact JSON shape the model must return. It is
// embedded verbatim into the system prompt.
const intentSchema = `{
  "tables": [{"name": "Schema.Table", "alias": "t"}],
  "columns": [{"table": "t", "name": "Column", "function": "COUNT|SUM|AVG|MIN|MAX (optional)", "alias": "optional output name"}],
  "where_conditions": [{"column": "t.Column", "operator": "=|<>|!=|<|<=|>|>=|LIKE|IN", "value": "literal as string", "logical_connector": "AND|OR (optional, default AND)"}],
  "joins": [{"type": "INNER|LEFT|RIGHT|FULL", "left_table": "t", "left_column": "Col", "right_table": "u", "right_column": "Col"}],
  "order_by": [{"column": "t.Column", "direction": "ASC|DESC"}],
  "pagination": {"offset": 0, "fetch_next": 20}
}`

// Generator turns questions into QueryIntents via a Completer. It holds no
// per-request state and is safe for concurrent use.
type Generator struct {
	completer Completer
	catalog   *schema.Catalog
}

// NewGenerator builds a Generator over the given completer and catalog.
func NewGenerator(c Completer, catalog *schema.Catalog) *Generator {
	return &Generator{completer: c, catalog: catalog}
}

// Generate asks the model for a structured intent answering question.
// feedback, when non-nil, describes why the previous attempt was rejected.
// All failures come back as *GenerationError.
func (g *Generator) Generate(ctx context.Context, question string, feedback *Feedback) (*domain.QueryIntent, error) {
	raw, err := g.completer.Complete(ctx, g.systemPrompt(), userPrompt(question, feedback))
	if err != nil {
		kind := KindProvider
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return nil, &GenerationError{Kind: kind, Err: err}
	}

	intent, err := domain.DecodeIntent([]byte(extractJSON(raw)))
	if err != nil {
		return nil, &GenerationError{Kind: KindMalformed, Err: err}
	}
	return intent, nil
}

func (g *Generator) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You translate natural-language questions about the AdventureWorks database into a structured query description.\n")
	b.WriteString("Respond with a single JSON object and nothing else. No prose, no markdown fences, no SQL text.\n\n")
	b.WriteString("The JSON object must follow exactly this shape:\n")
	b.WriteString(intentSchema)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Use only the tables and columns listed below.\n")
	b.WriteString("- Give every table an alias and qualify every column with it.\n")
	b.WriteString("- Queries are read-only; never describe inserts, updates, or schema changes.\n")
	b.WriteString("- When pagination is present, order_by must include each table's unique key column so pages are stable.\n\n")
	b.WriteString("Available tables:\n\n")
	b.WriteString(g.catalog.PromptContext())
	return b.String()
}

func userPrompt(question string, feedback *Feedback) string {
	if feedback == nil {
		return question
	}
	var b strings.Builder
	b.WriteString(question)
	fmt.Fprintf(&b, "\n\nYour previous answer was rejected: %s", feedback.Reason)
	if feedback.Detail != "" {
		fmt.Fprintf(&b, " (%s)", feedback.Detail)
	}
	if feedback.SQLExcerpt != "" {
		fmt.Fprintf(&b, "\nRejected SQL: %s", feedback.SQLExcerpt)
	}
	b.WriteString("\nProduce a corrected JSON object that avoids this problem.")
	return b.String()
}

// extractJSON trims markdown fences and any stray prose around the JSON
// object. Models occasionally wrap output despite instructions.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}
