// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/template-service/internal/domain"
)

// TemplatesStats returns aggregate metadata for the whole templates table:
// the total number of rows and the maximum UpdatedAt timestamp among them.
//
// When the table is empty, the returned count is 0 and maxUpdatedAt is nil.
func TemplatesStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	return stats(db.WithContext(ctx).Model(&domain.Template{}))
}

// VersionsStats returns aggregate metadata for one (code, language) group:
// the number of versions and the maximum UpdatedAt timestamp among them.
//
// Return values:
//   - count:        total versions of the group
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func VersionsStats(ctx context.Context, db *gorm.DB, code, language string) (count int64, maxUpdatedAt *time.Time, err error) {
	return stats(db.WithContext(ctx).Model(&domain.Template{}).
		Where("code = ? AND language = ?", code, language))
}

func stats(q *gorm.DB) (int64, *time.Time, error) {
	var count int64
	if err := q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err := q.Session(&gorm.Session{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
