package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-sqlchat-backend/internal/domain"
)

func newQueryRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("query_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCreateQueryRecord_Error_NoTable(t *testing.T) {
	db := newQueryRepoDB(t /* no migrations */)
	rec, err := CreateQueryRecord(context.Background(), db, &domain.QueryRecord{UserID: "u1"})
	if err == nil || rec != nil {
		t.Fatalf("expected error creating without table, got rec=%v err=%v", rec, err)
	}
}

func TestCreateQueryRecord_Success_SetsIDAndTimestamp(t *testing.T) {
	db := newQueryRepoDB(t, &domain.QueryRecord{})

	start := time.Now().UTC().Add(-time.Minute)
	rec, err := CreateQueryRecord(context.Background(), db, &domain.QueryRecord{
		UserID:       "u1",
		Question:     "top 5 products by price",
		Label:        "Top 5 Products by Price",
		SanitizedSQL: "SELECT p.Name FROM Production.Product AS p ORDER BY p.ListPrice DESC, p.ProductID ASC OFFSET $1 ROWS FETCH NEXT $2 ROWS ONLY",
		Attempts:     1,
		Outcome:      domain.OutcomeOK,
		RowCount:     5,
		DurationMs:   42,
	})
	if err != nil {
		t.Fatalf("CreateQueryRecord: %v", err)
	}
	if rec.ID == "" || rec.UserID != "u1" || rec.Outcome != domain.OutcomeOK {
		t.Fatalf("unexpected record fields: %+v", rec)
	}
	if rec.CreatedAt.Before(start) {
		t.Fatalf("CreatedAt not set: %v", rec.CreatedAt)
	}

	got, err := GetQueryRecord(context.Background(), db, rec.ID, "u1")
	if err != nil {
		t.Fatalf("GetQueryRecord: %v", err)
	}
	if got.Question != rec.Question || got.SanitizedSQL != rec.SanitizedSQL {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestGetQueryRecord_NotFoundAndOwnership(t *testing.T) {
	db := newQueryRepoDB(t, &domain.QueryRecord{})

	rec, err := CreateQueryRecord(context.Background(), db, &domain.QueryRecord{
		UserID: "u1", Question: "q", Outcome: domain.OutcomeOK,
	})
	if err != nil {
		t.Fatalf("CreateQueryRecord: %v", err)
	}

	if _, err := GetQueryRecord(context.Background(), db, "missing", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id: err = %v, want ErrNotFound", err)
	}
	if _, err := GetQueryRecord(context.Background(), db, rec.ID, "someone-else"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("wrong owner: err = %v, want ErrNotFound", err)
	}
}

func TestListQueryRecordsPage_OrderAndPaging(t *testing.T) {
	db := newQueryRepoDB(t, &domain.QueryRecord{})
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		_, err := CreateQueryRecord(ctx, db, &domain.QueryRecord{
			UserID:    "u1",
			Question:  fmt.Sprintf("q%d", i),
			Outcome:   domain.OutcomeOK,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("CreateQueryRecord: %v", err)
		}
	}
	// A different user's rows must not leak into the listing.
	if _, err := CreateQueryRecord(ctx, db, &domain.QueryRecord{UserID: "u2", Question: "other", Outcome: domain.OutcomeOK}); err != nil {
		t.Fatalf("CreateQueryRecord: %v", err)
	}

	total, err := CountQueryRecords(ctx, db, "u1")
	if err != nil || total != 5 {
		t.Fatalf("CountQueryRecords = %d, %v", total, err)
	}

	page, err := ListQueryRecordsPage(ctx, db, "u1", 0, 2)
	if err != nil {
		t.Fatalf("ListQueryRecordsPage: %v", err)
	}
	if len(page) != 2 || page[0].Question != "q4" || page[1].Question != "q3" {
		t.Fatalf("unexpected first page: %+v", page)
	}

	page, err = ListQueryRecordsPage(ctx, db, "u1", 4, 2)
	if err != nil || len(page) != 1 {
		t.Fatalf("last page = %+v, %v", page, err)
	}
}

func TestQueryRecordsStats(t *testing.T) {
	db := newQueryRepoDB(t, &domain.QueryRecord{})
	ctx := context.Background()

	count, maxUpdated, err := QueryRecordsStats(ctx, db, "u1")
	if err != nil || count != 0 || maxUpdated != nil {
		t.Fatalf("empty stats = %d, %v, %v", count, maxUpdated, err)
	}

	for i := 0; i < 3; i++ {
		if _, err := CreateQueryRecord(ctx, db, &domain.QueryRecord{UserID: "u1", Question: "q", Outcome: domain.OutcomeOK}); err != nil {
			t.Fatalf("CreateQueryRecord: %v", err)
		}
	}

	count, maxUpdated, err = QueryRecordsStats(ctx, db, "u1")
	if err != nil {
		t.Fatalf("QueryRecordsStats: %v", err)
	}
	if count != 3 || maxUpdated == nil || maxUpdated.IsZero() {
		t.Fatalf("stats = %d, %v", count, maxUpdated)
	}
}

func TestOpenSQLiteAndAutoMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if !db.Migrator().HasTable(&domain.QueryRecord{}) {
		t.Fatal("query_records table missing after migration")
	}
}

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "nope", "audit.db"))
	if err == nil {
		t.Fatal("expected error for missing parent directory")
	}
}
