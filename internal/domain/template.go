// Package domain defines the persistence models for versioned templates.
// These types are mapped with GORM and form the core data layer of the
// template service.
package domain

import (
	"fmt"
	"time"
)

// DefaultLanguage is the language assumed when a request omits one.
const DefaultLanguage = "en"

// Template is a single version of a document addressed by (Code, Language).
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Code: logical key shared by every version and language of a template.
//   - Name: human-readable label.
//   - Language: locale tag, "en" unless set.
//   - Subject: optional short text (e.g. an email subject); may hold placeholders.
//   - Content: template body; may hold placeholders.
//   - Version: 1-based, strictly increasing per (Code, Language).
//   - IsActive: at most one row per (Code, Language) is active.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//
// (code, language, version) is unique (ux_templates_group_version). The
// single-active rule is backed by a partial unique index created in
// repo.AutoMigrate, since GORM tags cannot express it portably.
type Template struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Code      string    `json:"code"       gorm:"type:varchar(100);not null;uniqueIndex:ux_templates_group_version,priority:1;index:idx_templates_group_active,priority:1"`
	Name      string    `json:"name"       gorm:"type:varchar(200);not null"`
	Language  string    `json:"language"   gorm:"type:varchar(10);not null;default:'en';uniqueIndex:ux_templates_group_version,priority:2;index:idx_templates_group_active,priority:2"`
	Subject   *string   `json:"subject"    gorm:"type:varchar(255)"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	Version   int       `json:"version"    gorm:"not null;uniqueIndex:ux_templates_group_version,priority:3;check:version > 0"`
	IsActive  bool      `json:"is_active"  gorm:"not null;default:false;index:idx_templates_group_active,priority:3"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Template.
func (Template) TableName() string { return "templates" }

// String renders the row as "code (lang=xx, vN)" for logs.
func (t Template) String() string {
	return fmt.Sprintf("%s (lang=%s, v%d)", t.Code, t.Language, t.Version)
}
