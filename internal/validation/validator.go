// Package validation implements the SQL safety gate. Every statement headed
// for the database passes through Validate, regardless of which component
// produced it; nothing else in the codebase is allowed to approve SQL.
//
// The gate runs six ordered rules and short-circuits on the first failure.
// It only accepts or rejects. It never rewrites the statement, because a
// rewriting gate would reintroduce the trust problem it exists to prevent.
package validation

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-sqlchat-backend/internal/schema"
)

// Rejection reasons, in rule order.
const (
	ReasonNotSelect              = "NOT_SELECT"
	ReasonForbiddenKeyword       = "FORBIDDEN_KEYWORD"
	ReasonInjectionPattern       = "INJECTION_PATTERN"
	ReasonMultiStatement         = "MULTI_STATEMENT"
	ReasonObjectNotAllowed       = "OBJECT_NOT_ALLOWED"
	ReasonNondeterministicPaging = "NONDETERMINISTIC_PAGING"
)

// Result is the outcome of one Validate call. Reason and Detail are empty
// when Approved is true.
type Result struct {
	Approved bool
	Reason   string
	Detail   string
}

// forbiddenKeywords are rejected as whole tokens, case-insensitively.
// Substrings inside identifiers (e.g. "CreateDate") do not match.
var forbiddenKeywords = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "ALTER": {}, "DROP": {},
	"CREATE": {}, "MERGE": {}, "TRUNCATE": {}, "EXEC": {}, "EXECUTE": {},
	"BULK": {}, "BACKUP": {}, "RESTORE": {}, "GRANT": {}, "REVOKE": {},
	"DENY": {}, "DBCC": {}, "SHUTDOWN": {}, "KILL": {}, "CHECKPOINT": {},
	"RECONFIGURE": {},
}

// systemPrefixes are object-name prefixes that always target system catalogs
// or other databases.
var systemPrefixes = []string{
	"SYS.", "INFORMATION_SCHEMA.", "MASTER.", "MSDB.", "MODEL.", "TEMPDB.",
}

// Validator checks rendered SQL against the fixed rule set, using the schema
// catalog as the object allowlist. It is stateless and safe for concurrent
// use.
type Validator struct {
	catalog *schema.Catalog
}

// New returns a Validator backed by the given catalog.
func New(catalog *schema.Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// Validate runs the gate rules against sql, in order, stopping at the first
// violation.
func (v *Validator) Validate(sql string) Result {
	trimmed := strings.TrimSpace(sql)
	tokens := tokenize(trimmed)

	if r, ok := checkSelectOnly(tokens); !ok {
		return r
	}
	if r, ok := checkForbiddenKeywords(tokens); !ok {
		return r
	}
	if r, ok := checkInjectionMarkers(trimmed); !ok {
		return r
	}
	if r, ok := checkSingleStatement(trimmed); !ok {
		return r
	}
	if r, ok := v.checkObjectAllowlist(tokens); !ok {
		return r
	}
	if r, ok := v.checkDeterministicPaging(tokens); !ok {
		return r
	}
	return Result{Approved: true}
}

func rejected(reason, detail string) Result {
	return Result{Approved: false, Reason: reason, Detail: detail}
}

// Rule 1: the statement must start with SELECT, or be a read-only CTE
// (WITH ... SELECT).
func checkSelectOnly(tokens []string) (Result, bool) {
	if len(tokens) == 0 {
		return rejected(ReasonNotSelect, "empty statement"), false
	}
	switch tokens[0] {
	case "SELECT":
		return Result{}, true
	case "WITH":
		for _, t := range tokens[1:] {
			if t == "SELECT" {
				return Result{}, true
			}
		}
		return rejected(ReasonNotSelect, "WITH clause without a SELECT body"), false
	default:
		return rejected(ReasonNotSelect, fmt.Sprintf("statement starts with %s, only SELECT is allowed", tokens[0])), false
	}
}

// Rule 2: no data- or schema-modifying keyword anywhere in the statement,
// matched as whole tokens. Stored-procedure prefixes (sp_, xp_) count too.
func checkForbiddenKeywords(tokens []string) (Result, bool) {
	for _, t := range tokens {
		if _, bad := forbiddenKeywords[t]; bad {
			return rejected(ReasonForbiddenKeyword, fmt.Sprintf("forbidden keyword %s", t)), false
		}
		if strings.HasPrefix(t, "SP_") || strings.HasPrefix(t, "XP_") {
			return rejected(ReasonForbiddenKeyword, fmt.Sprintf("stored procedure reference %s", t)), false
		}
	}
	return Result{}, true
}

// Rule 3: comment markers are never produced by the renderer, so their
// presence means something was smuggled in.
func checkInjectionMarkers(sql string) (Result, bool) {
	if strings.Contains(sql, "--") {
		return rejected(ReasonInjectionPattern, "line comment marker"), false
	}
	if strings.Contains(sql, "/*") {
		return rejected(ReasonInjectionPattern, "block comment marker"), false
	}
	return Result{}, true
}

// Rule 4: a semicolon is tolerated only as the final character; anything
// after one is a second statement.
func checkSingleStatement(sql string) (Result, bool) {
	idx := strings.Index(sql, ";")
	if idx == -1 {
		return Result{}, true
	}
	if strings.TrimSpace(sql[idx+1:]) != "" {
		return rejected(ReasonMultiStatement, "content after statement terminator"), false
	}
	return Result{}, true
}

// Rule 5: every object referenced after FROM/JOIN must resolve in the
// catalog, and no token may target a system catalog or a three-part
// cross-database name.
func (v *Validator) checkObjectAllowlist(tokens []string) (Result, bool) {
	for _, t := range tokens {
		for _, p := range systemPrefixes {
			if strings.HasPrefix(t, p) {
				return rejected(ReasonObjectNotAllowed, fmt.Sprintf("system object %s", t)), false
			}
		}
	}
	for _, ref := range objectRefs(tokens) {
		if strings.Count(ref, ".") >= 2 {
			return rejected(ReasonObjectNotAllowed, fmt.Sprintf("cross-database reference %s", ref)), false
		}
		if !v.catalog.IsAllowed(ref) {
			return rejected(ReasonObjectNotAllowed, fmt.Sprintf("table %s is not allowlisted", ref)), false
		}
	}
	return Result{}, true
}

// Rule 6: OFFSET/FETCH paging requires an ORDER BY that anchors on at least
// one unique-per-row column, otherwise page boundaries are not stable.
func (v *Validator) checkDeterministicPaging(tokens []string) (Result, bool) {
	if !containsToken(tokens, "OFFSET") && !containsToken(tokens, "FETCH") {
		return Result{}, true
	}
	cols := orderByColumns(tokens)
	if len(cols) == 0 {
		return rejected(ReasonNondeterministicPaging, "OFFSET/FETCH without ORDER BY"), false
	}
	aliases := aliasMap(tokens)
	for _, col := range cols {
		if v.isUniqueRef(col, aliases, tokens) {
			return Result{}, true
		}
	}
	return rejected(ReasonNondeterministicPaging, "ORDER BY has no unique column to anchor paging"), false
}

// isUniqueRef reports whether an ORDER BY term like "P.PRODUCTID" or
// "PRODUCTID" refers to a unique column of one of the referenced tables.
func (v *Validator) isUniqueRef(col string, aliases map[string]string, tokens []string) bool {
	if i := strings.LastIndex(col, "."); i >= 0 {
		qualifier, name := col[:i], col[i+1:]
		if table, ok := aliases[qualifier]; ok {
			return v.catalog.IsUniqueColumn(table, name)
		}
		return v.catalog.IsUniqueColumn(qualifier, name)
	}
	for _, table := range objectRefs(tokens) {
		if v.catalog.IsUniqueColumn(table, col) {
			return true
		}
	}
	return false
}

// tokenize splits SQL into upper-cased identifier/keyword tokens. Dots are
// kept inside tokens so qualified names ("Sales.Customer", "p.ProductID")
// survive as single units.
func tokenize(sql string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, strings.ToUpper(b.String()))
			b.Reset()
		}
	}
	for _, r := range sql {
		switch {
		case r == '_' || r == '.' || r == '$' || r == '#' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func containsToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

// objectRefs returns the table references that follow FROM or JOIN tokens.
func objectRefs(tokens []string) []string {
	var refs []string
	for i, t := range tokens {
		if (t == "FROM" || t == "JOIN") && i+1 < len(tokens) {
			refs = append(refs, tokens[i+1])
		}
	}
	return refs
}

// aliasMap maps table aliases (upper-cased) to the table reference they
// alias, from "FROM T alias" / "FROM T AS alias" / "JOIN T alias" clauses.
func aliasMap(tokens []string) map[string]string {
	clauseStoppers := map[string]struct{}{
		"WHERE": {}, "ON": {}, "JOIN": {}, "INNER": {}, "LEFT": {}, "RIGHT": {},
		"FULL": {}, "ORDER": {}, "GROUP": {}, "OFFSET": {}, "FETCH": {},
	}
	out := make(map[string]string)
	for i, t := range tokens {
		if t != "FROM" && t != "JOIN" {
			continue
		}
		if i+1 >= len(tokens) {
			continue
		}
		table := tokens[i+1]
		j := i + 2
		if j < len(tokens) && tokens[j] == "AS" {
			j++
		}
		if j < len(tokens) {
			if _, stop := clauseStoppers[tokens[j]]; !stop && !strings.Contains(tokens[j], ".") {
				out[tokens[j]] = table
				continue
			}
		}
		out[table] = table
	}
	return out
}

// orderByColumns extracts the column terms of the ORDER BY clause, stopping
// at OFFSET/FETCH and dropping ASC/DESC direction tokens.
func orderByColumns(tokens []string) []string {
	start := -1
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i] == "ORDER" && tokens[i+1] == "BY" {
			start = i + 2
			break
		}
	}
	if start == -1 {
		return nil
	}
	var cols []string
	for _, t := range tokens[start:] {
		switch t {
		case "OFFSET", "FETCH":
			return cols
		case "ASC", "DESC", "ROWS", "ROW", "NEXT", "ONLY":
			continue
		default:
			cols = append(cols, t)
		}
	}
	return cols
}
