package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-sqlchat-backend/internal/db"
	"github.com/tbourn/go-sqlchat-backend/internal/domain"
	"github.com/tbourn/go-sqlchat-backend/internal/llm"
	"github.com/tbourn/go-sqlchat-backend/internal/repo"
	"github.com/tbourn/go-sqlchat-backend/internal/sqlgen"
)

// fakeExecutor returns a canned result or error and records whether it was
// called.
type fakeExecutor struct {
	res    *db.ExecutionResult
	err    error
	called bool
}

func (f *fakeExecutor) Execute(_ context.Context, _ sqlgen.Statement, _ time.Duration, _ int) (*db.ExecutionResult, error) {
	f.called = true
	return f.res, f.err
}

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("query_service_test_%d.db", time.Now().UnixNano()))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := gdb.AutoMigrate(&domain.QueryRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return gdb
}

func newQueryServiceForTest(gdb *gorm.DB, gen IntentGenerator, exec QueryExecutor) *QueryService {
	c := newController(gen)
	return NewQueryService(gdb, c, exec, "test-model")
}

func TestAnswerSuccess(t *testing.T) {
	exec := &fakeExecutor{res: &db.ExecutionResult{
		Columns:  []string{"Name"},
		Rows:     [][]any{{"HL Road Frame"}},
		RowCount: 1,
		Duration: 5 * time.Millisecond,
	}}
	svc := newQueryServiceForTest(nil, &fakeGenerator{intents: []*domain.QueryIntent{goodIntent()}}, exec)

	ans, err := svc.Answer(context.Background(), "u1", "list products", 0, 0)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.RowCount != 1 || ans.Attempts != 1 || ans.Model != "test-model" {
		t.Fatalf("answer = %+v", ans)
	}
	if ans.Page != 1 || ans.PageSize != svc.DefaultPageSize {
		t.Fatalf("paging defaults not applied: %+v", ans)
	}
	if ans.SQL == "" {
		t.Fatal("answer missing SQL")
	}
}

func TestAnswerPromptValidation(t *testing.T) {
	svc := newQueryServiceForTest(nil, &fakeGenerator{}, &fakeExecutor{})

	if _, err := svc.Answer(context.Background(), "u1", "   ", 1, 20); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("empty prompt: err = %v", err)
	}

	svc.MaxPromptRunes = 5
	if _, err := svc.Answer(context.Background(), "u1", "a much too long prompt", 1, 20); !errors.Is(err, ErrTooLong) {
		t.Fatalf("long prompt: err = %v", err)
	}
}

func TestAnswerValidationExhaustedNeverExecutes(t *testing.T) {
	exec := &fakeExecutor{}
	gen := &fakeGenerator{intents: []*domain.QueryIntent{badTableIntent(), badTableIntent(), badTableIntent()}}
	svc := newQueryServiceForTest(nil, gen, exec)

	_, err := svc.Answer(context.Background(), "u1", "q", 1, 20)
	var failure *QueryFailure
	if !errors.As(err, &failure) || failure.Code != CodeValidationFailed {
		t.Fatalf("err = %v, want VALIDATION_FAILED", err)
	}
	if exec.called {
		t.Fatal("executor must not run without an approved statement")
	}
}

func TestAnswerFailureCodes(t *testing.T) {
	cases := []struct {
		name     string
		gen      IntentGenerator
		exec     *fakeExecutor
		wantCode string
	}{
		{
			name:     "generation timeout",
			gen:      &fakeGenerator{errs: []error{&llm.GenerationError{Kind: llm.KindTimeout, Err: context.DeadlineExceeded}}, intents: []*domain.QueryIntent{nil}},
			exec:     &fakeExecutor{},
			wantCode: CodeTimeout,
		},
		{
			name:     "generation provider failure",
			gen:      &fakeGenerator{errs: []error{&llm.GenerationError{Kind: llm.KindProvider, Err: errors.New("boom")}}, intents: []*domain.QueryIntent{nil}},
			exec:     &fakeExecutor{},
			wantCode: CodeInternalError,
		},
		{
			name:     "execution timeout",
			gen:      &fakeGenerator{intents: []*domain.QueryIntent{goodIntent()}},
			exec:     &fakeExecutor{err: &db.ExecutionError{Code: db.CodeTimeout, Err: context.DeadlineExceeded}},
			wantCode: CodeTimeout,
		},
		{
			name:     "execution db error",
			gen:      &fakeGenerator{intents: []*domain.QueryIntent{goodIntent()}},
			exec:     &fakeExecutor{err: &db.ExecutionError{Code: db.CodeDBError, Err: errors.New("connection refused")}},
			wantCode: CodeDBError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newQueryServiceForTest(nil, tc.gen, tc.exec)
			_, err := svc.Answer(context.Background(), "u1", "q", 1, 20)
			var failure *QueryFailure
			if !errors.As(err, &failure) || failure.Code != tc.wantCode {
				t.Fatalf("err = %v, want code %s", err, tc.wantCode)
			}
		})
	}
}

func TestAnswerCancellationSkipsExecutor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExecutor{}
	gen := &cancelAwareGenerator{}
	svc := newQueryServiceForTest(nil, gen, exec)

	_, err := svc.Answer(ctx, "u1", "q", 1, 20)
	if err == nil {
		t.Fatal("cancelled request must fail")
	}
	if exec.called {
		t.Fatal("executor must not be called after cancellation during generation")
	}
}

// cancelAwareGenerator fails the way a real model client does when its
// context is already cancelled.
type cancelAwareGenerator struct{}

func (g *cancelAwareGenerator) Generate(ctx context.Context, _ string, _ *llm.Feedback) (*domain.QueryIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &llm.GenerationError{Kind: llm.KindProvider, Err: err}
	}
	return goodIntent(), nil
}

func TestAnswerWritesAuditRow(t *testing.T) {
	gdb := newServiceDB(t)
	exec := &fakeExecutor{res: &db.ExecutionResult{Columns: []string{"Name"}, Rows: [][]any{{"x"}}, RowCount: 1}}
	svc := newQueryServiceForTest(gdb, &fakeGenerator{intents: []*domain.QueryIntent{goodIntent()}}, exec)

	if _, err := svc.Answer(context.Background(), "u1", "top products by price", 1, 20); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	// The audit write is asynchronous; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		total, err := repo.CountQueryRecords(context.Background(), gdb, "u1")
		if err != nil {
			t.Fatalf("CountQueryRecords: %v", err)
		}
		if total == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("audit row not written")
		}
		time.Sleep(10 * time.Millisecond)
	}

	recs, err := repo.ListQueryRecordsPage(context.Background(), gdb, "u1", 0, 10)
	if err != nil || len(recs) != 1 {
		t.Fatalf("history = %+v, %v", recs, err)
	}
	rec := recs[0]
	if rec.Outcome != domain.OutcomeOK || rec.Attempts != 1 || rec.RowCount != 1 {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Label == "" || rec.Label == rec.Question {
		t.Fatalf("label not generated: %q", rec.Label)
	}
	if rec.SanitizedSQL == "" {
		t.Fatal("sanitized SQL missing from audit row")
	}
}

func TestGenerateLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"show me the top 5 products by price", "Top Products By Price"},
		{"", "Query"},
		{"??!", "Query"},
	}
	for _, tc := range cases {
		if got := generateLabel(tc.in); got != tc.want {
			t.Errorf("generateLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
