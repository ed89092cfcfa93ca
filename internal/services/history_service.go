// Package services – HistoryService
//
// This file implements the read side of the audit store: paginated history
// listings and the lightweight stats used for ETag generation in the HTTP
// layer.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-sqlchat-backend/internal/domain"
	"github.com/tbourn/go-sqlchat-backend/internal/repo"
)

// HistoryService provides read access to a user's query history.
type HistoryService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(db *gorm.DB) *HistoryService {
	return &HistoryService{DB: db}
}

// ListPage returns a page of audit rows for a user (paginated).
// It applies defaults for invalid page/pageSize and returns total count.
func (s *HistoryService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.QueryRecord, int64, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountQueryRecords(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.QueryRecord{}, 0, nil
	}

	items, err := repo.ListQueryRecordsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Stats returns the row count and most recent update time of a user's
// history, for conditional responses.
func (s *HistoryService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.QueryRecordsStats(ctx, s.DB, userID)
}
