// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// QueryRecord model, the per-user audit trail of answered questions.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sqlchat-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateQueryRecord inserts one audit row for userID. The record ID is a
// randomly generated UUID and CreatedAt is set to UTC.
func CreateQueryRecord(ctx context.Context, db *gorm.DB, rec *domain.QueryRecord) (*domain.QueryRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// CountQueryRecords returns the total number of audit rows owned by userID.
func CountQueryRecords(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.QueryRecord{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListQueryRecordsPage returns a paginated slice of audit rows for userID,
// ordered by creation time descending. Use CountQueryRecords to obtain the
// total for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListQueryRecordsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.QueryRecord, error) {
	var out []domain.QueryRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetQueryRecord fetches a single audit row by its ID and owner (userID).
// If the record does not exist, it returns ErrNotFound.
func GetQueryRecord(ctx context.Context, db *gorm.DB, id, userID string) (*domain.QueryRecord, error) {
	var rec domain.QueryRecord
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
