// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency records the template produced by a create request carrying an
// Idempotency-Key, keyed by (scope, key). Replaying the same key within the
// TTL returns the recorded template instead of creating another version.
type Idempotency struct {
	ID         string    `gorm:"type:text;not null;primaryKey"`
	Scope      string    `gorm:"type:text;not null;uniqueIndex:ux_idempotency_scope_key,priority:1"`
	Key        string    `gorm:"type:text;not null;uniqueIndex:ux_idempotency_scope_key,priority:2"`
	TemplateID string    `gorm:"type:text;not null"`
	Status     int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
