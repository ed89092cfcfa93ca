// Package domain defines the core data model of the query pipeline: the
// structured QueryIntent produced by the language model, and the persisted
// audit record for answered questions.
//
// QueryIntent is the only representation of a query that ever leaves the
// generation layer — raw model-authored SQL text is never accepted. Every
// intent is decoded strictly (unknown fields and unknown enum variants are
// rejected, not ignored) so that the renderer downstream can trust the
// structure it receives.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TableRef names one allowlisted table and the alias used to qualify its
// columns in the rendered SQL.
type TableRef struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

// ColumnRef selects one output column: the table alias it belongs to, the
// column name, an optional aggregate function, and an optional output alias.
type ColumnRef struct {
	Table     string `json:"table,omitempty"`
	Name      string `json:"name"`
	Aggregate string `json:"function,omitempty"`
	Alias     string `json:"alias,omitempty"`
}

// Condition is a single WHERE predicate. Value is carried as a string and is
// always emitted as a bind parameter by the renderer, never interpolated.
// Connector joins this predicate to the previous one (AND/OR); it is ignored
// on the first predicate.
type Condition struct {
	Column    string `json:"column"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
	Connector string `json:"logical_connector,omitempty"`
}

// Join describes one equi-join between two table references.
type Join struct {
	Type        string `json:"type"`
	LeftTable   string `json:"left_table"`
	LeftColumn  string `json:"left_column"`
	RightTable  string `json:"right_table"`
	RightColumn string `json:"right_column"`
}

// OrderBy is one ORDER BY term: an alias-qualified column and a direction.
type OrderBy struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// Pagination is the OFFSET/FETCH NEXT window. FetchNext must be positive;
// Offset must be non-negative.
type Pagination struct {
	Offset    int `json:"offset"`
	FetchNext int `json:"fetch_next"`
}

// QueryIntent is the structured, machine-checkable representation of a query
// as returned by the language model. An intent is created fresh per
// generation attempt, is immutable once decoded, and is consumed exactly
// once by the SQL renderer.
type QueryIntent struct {
	Tables     []TableRef  `json:"tables"`
	Columns    []ColumnRef `json:"columns"`
	Where      []Condition `json:"where_conditions,omitempty"`
	Joins      []Join      `json:"joins,omitempty"`
	OrderBy    []OrderBy   `json:"order_by"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Allowed enum variants. Anything outside these sets fails Validate — the
// pipeline rejects unknown variants instead of silently ignoring them.
var (
	operators = map[string]struct{}{
		"=": {}, "<>": {}, "!=": {}, "<": {}, "<=": {}, ">": {}, ">=": {},
		"LIKE": {}, "IN": {},
	}
	aggregates = map[string]struct{}{
		"COUNT": {}, "SUM": {}, "AVG": {}, "MIN": {}, "MAX": {},
	}
	joinTypes = map[string]struct{}{
		"INNER": {}, "LEFT": {}, "RIGHT": {}, "FULL": {},
	}
	directions = map[string]struct{}{
		"ASC": {}, "DESC": {},
	}
	connectors = map[string]struct{}{
		"AND": {}, "OR": {},
	}
)

// DecodeIntent parses raw JSON into a QueryIntent using strict decoding:
// unknown object keys are an error. The decoded intent is then validated
// against the enum sets above and basic structural rules.
func DecodeIntent(raw []byte) (*QueryIntent, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var in QueryIntent
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

// Validate checks structural and enum constraints. It does not consult the
// schema catalog — allowlist membership is the validator's concern; this is
// purely shape checking of the untrusted model output.
func (q *QueryIntent) Validate() error {
	if len(q.Tables) == 0 {
		return fmt.Errorf("intent: at least one table is required")
	}
	for i, t := range q.Tables {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("intent: tables[%d] has empty name", i)
		}
	}
	if len(q.Columns) == 0 {
		return fmt.Errorf("intent: at least one column is required")
	}
	for i, c := range q.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("intent: columns[%d] has empty name", i)
		}
		if c.Aggregate != "" {
			if _, ok := aggregates[strings.ToUpper(c.Aggregate)]; !ok {
				return fmt.Errorf("intent: columns[%d] has unknown aggregate %q", i, c.Aggregate)
			}
		}
	}
	for i, w := range q.Where {
		if strings.TrimSpace(w.Column) == "" {
			return fmt.Errorf("intent: where_conditions[%d] has empty column", i)
		}
		if _, ok := operators[strings.ToUpper(w.Operator)]; !ok {
			return fmt.Errorf("intent: where_conditions[%d] has unknown operator %q", i, w.Operator)
		}
		if w.Connector != "" {
			if _, ok := connectors[strings.ToUpper(w.Connector)]; !ok {
				return fmt.Errorf("intent: where_conditions[%d] has unknown connector %q", i, w.Connector)
			}
		}
	}
	for i, j := range q.Joins {
		if _, ok := joinTypes[strings.ToUpper(j.Type)]; !ok {
			return fmt.Errorf("intent: joins[%d] has unknown type %q", i, j.Type)
		}
		if j.LeftTable == "" || j.LeftColumn == "" || j.RightTable == "" || j.RightColumn == "" {
			return fmt.Errorf("intent: joins[%d] is incomplete", i)
		}
	}
	for i, o := range q.OrderBy {
		if strings.TrimSpace(o.Column) == "" {
			return fmt.Errorf("intent: order_by[%d] has empty column", i)
		}
		if _, ok := directions[strings.ToUpper(o.Direction)]; !ok {
			return fmt.Errorf("intent: order_by[%d] has unknown direction %q", i, o.Direction)
		}
	}
	if q.Pagination != nil {
		if q.Pagination.Offset < 0 {
			return fmt.Errorf("intent: pagination.offset must be >= 0")
		}
		if q.Pagination.FetchNext <= 0 {
			return fmt.Errorf("intent: pagination.fetch_next must be > 0")
		}
		if len(q.OrderBy) == 0 {
			return fmt.Errorf("intent: pagination requires order_by")
		}
	}
	return nil
}

// AliasTable resolves a table alias (or table name) used inside the intent to
// the underlying table name. The empty string resolves to the first table.
func (q *QueryIntent) AliasTable(alias string) (string, bool) {
	if alias == "" {
		if len(q.Tables) == 0 {
			return "", false
		}
		return q.Tables[0].Name, true
	}
	for _, t := range q.Tables {
		if strings.EqualFold(t.Alias, alias) || strings.EqualFold(t.Name, alias) {
			return t.Name, true
		}
	}
	return "", false
}
