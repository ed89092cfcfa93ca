// Package sqlgen turns a structured QueryIntent into executable SQL. Render
// is the only place in the codebase where SQL text is assembled; there is
// deliberately no second code path that builds SQL from unstructured input.
//
// Rendering is a pure function: no I/O, and the same intent always yields
// byte-identical SQL. Every literal from the intent's where_conditions is
// emitted as a bind parameter, never interpolated into the statement text.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-sqlchat-backend/internal/domain"
	"github.com/tbourn/go-sqlchat-backend/internal/schema"
)

// Statement is a rendered query: positional SQL text plus its bind arguments.
type Statement struct {
	SQL  string
	Args []any
}

// RenderError reports an intent the renderer refuses to turn into SQL. It is
// recoverable inside the repair loop; the error text is fed back to the
// generator as rejection feedback.
type RenderError struct {
	Detail string
}

func (e *RenderError) Error() string { return "render: " + e.Detail }

// Render assembles the SQL statement for intent. The catalog supplies
// unique-key metadata: a paginated intent whose ORDER BY lacks at least one
// unique-per-row column is rejected here, before validation, because its
// page boundaries would not be stable.
func Render(intent *domain.QueryIntent, catalog *schema.Catalog) (Statement, error) {
	if err := intent.Validate(); err != nil {
		return Statement{}, &RenderError{Detail: err.Error()}
	}
	if intent.Pagination != nil {
		if !hasUniqueAnchor(intent, catalog) {
			return Statement{}, &RenderError{Detail: "paginated query must ORDER BY at least one unique column (e.g. the table's primary key)"}
		}
	}

	var b strings.Builder
	var args []any

	b.WriteString("SELECT ")
	for i, c := range intent.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(columnExpr(c))
	}

	first := intent.Tables[0]
	b.WriteString(" FROM ")
	b.WriteString(tableExpr(first))

	for _, j := range intent.Joins {
		right, ok := tableByRef(intent, j.RightTable)
		if !ok {
			return Statement{}, &RenderError{Detail: fmt.Sprintf("join references unknown table %q", j.RightTable)}
		}
		fmt.Fprintf(&b, " %s JOIN %s ON %s.%s = %s.%s",
			strings.ToUpper(j.Type), tableExpr(right),
			j.LeftTable, j.LeftColumn, j.RightTable, j.RightColumn)
	}

	for i, w := range intent.Where {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			conn := strings.ToUpper(w.Connector)
			if conn == "" {
				conn = "AND"
			}
			b.WriteString(" " + conn + " ")
		}
		args = writeCondition(&b, w, args)
	}

	for i, o := range intent.OrderBy {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", o.Column, strings.ToUpper(o.Direction))
	}

	if p := intent.Pagination; p != nil {
		args = append(args, p.Offset)
		fmt.Fprintf(&b, " OFFSET $%d ROWS", len(args))
		args = append(args, p.FetchNext)
		fmt.Fprintf(&b, " FETCH NEXT $%d ROWS ONLY", len(args))
	}

	return Statement{SQL: b.String(), Args: args}, nil
}

// columnExpr renders one select-list entry: alias-qualified, optionally
// wrapped in an aggregate, optionally renamed.
func columnExpr(c domain.ColumnRef) string {
	expr := c.Name
	if c.Table != "" {
		expr = c.Table + "." + c.Name
	}
	if c.Aggregate != "" {
		expr = strings.ToUpper(c.Aggregate) + "(" + expr + ")"
	}
	if c.Alias != "" {
		expr += " AS " + c.Alias
	}
	return expr
}

// tableByRef resolves ref against the intent's table list, matching alias
// first and falling back to the table name.
func tableByRef(intent *domain.QueryIntent, ref string) (domain.TableRef, bool) {
	for _, t := range intent.Tables {
		if t.Alias != "" && t.Alias == ref {
			return t, true
		}
	}
	for _, t := range intent.Tables {
		if strings.EqualFold(t.Name, ref) {
			return t, true
		}
	}
	return domain.TableRef{}, false
}

func tableExpr(t domain.TableRef) string {
	if t.Alias != "" {
		return t.Name + " AS " + t.Alias
	}
	return t.Name
}

// writeCondition appends one WHERE predicate, emitting the value as one or
// more bind parameters. IN values are comma-split into individual parameters.
func writeCondition(b *strings.Builder, w domain.Condition, args []any) []any {
	op := strings.ToUpper(w.Operator)
	if op == "IN" {
		parts := strings.Split(w.Value, ",")
		fmt.Fprintf(b, "%s IN (", w.Column)
		for i, p := range parts {
			if i > 0 {
				b.WriteString(", ")
			}
			args = append(args, strings.TrimSpace(p))
			fmt.Fprintf(b, "$%d", len(args))
		}
		b.WriteString(")")
		return args
	}
	args = append(args, w.Value)
	fmt.Fprintf(b, "%s %s $%d", w.Column, op, len(args))
	return args
}

// hasUniqueAnchor reports whether at least one ORDER BY term resolves to a
// unique-per-row column of one of the intent's tables.
func hasUniqueAnchor(intent *domain.QueryIntent, catalog *schema.Catalog) bool {
	for _, o := range intent.OrderBy {
		qualifier, name := splitColumn(o.Column)
		if qualifier != "" {
			if table, ok := intent.AliasTable(qualifier); ok && catalog.IsUniqueColumn(table, name) {
				return true
			}
			continue
		}
		for _, t := range intent.Tables {
			if catalog.IsUniqueColumn(t.Name, name) {
				return true
			}
		}
	}
	return false
}

func splitColumn(col string) (qualifier, name string) {
	if i := strings.LastIndex(col, "."); i >= 0 {
		return col[:i], col[i+1:]
	}
	return "", col
}
