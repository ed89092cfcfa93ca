// Package domain – persistence models.
//
// QueryRecord is the audit row written once per answered question. It stores
// only the sanitized SQL (literals replaced by placeholders) together with
// outcome metadata, so the history surface never exposes user-supplied
// literal values.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Query outcome values stored in QueryRecord.Outcome.
const (
	OutcomeOK               = "ok"
	OutcomeValidationFailed = "validation_failed"
	OutcomeGenerationFailed = "generation_failed"
	OutcomeExecutionTimeout = "timeout"
	OutcomeExecutionDBError = "db_error"
	OutcomeInternalError    = "internal_error"
)

// QueryRecord is one entry in the per-user query history.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the requester; indexed for history listing.
//   - Question: the original natural-language question.
//   - Label: short generated title for display in history lists.
//   - SanitizedSQL: rendered SQL with literals masked; empty when no SQL
//     survived validation.
//   - Attempts: number of generation attempts consumed.
//   - Outcome: one of the Outcome* constants.
//   - ErrorCode: stable API error code for failed requests, empty on success.
//   - RowCount: rows returned on success.
//   - DurationMs: end-to-end request duration.
type QueryRecord struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID       string         `json:"user_id"       gorm:"type:varchar(64);not null;index:idx_user_queries"`
	Question     string         `json:"question"      gorm:"type:text;not null"`
	Label        string         `json:"label"         gorm:"type:varchar(255);not null;default:''"`
	SanitizedSQL string         `json:"sanitized_sql" gorm:"type:text;not null;default:''"`
	Attempts     int            `json:"attempts"      gorm:"not null;default:0"`
	Outcome      string         `json:"outcome"       gorm:"type:varchar(32);not null"`
	ErrorCode    string         `json:"error_code,omitempty" gorm:"type:varchar(32);not null;default:''"`
	RowCount     int            `json:"row_count"     gorm:"not null;default:0"`
	DurationMs   int64          `json:"duration_ms"   gorm:"not null;default:0"`
	CreatedAt    time.Time      `json:"created_at"    gorm:"index:idx_user_queries,priority:2"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for QueryRecord.
func (QueryRecord) TableName() string { return "query_records" }
