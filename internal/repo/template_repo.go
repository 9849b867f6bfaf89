// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Template
// model and TemplateStore, the GORM-backed store used by the service layer.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a template is not found, functions return gorm.ErrRecordNotFound
//     (also exported as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated. IsRetryable classifies the ones a
//     caller may retry.
//
// Usage:
//
//	store := repo.NewTemplateStore(db)
//	err := store.WithinTx(ctx, func(ctx context.Context) error {
//	    max, err := store.LatestVersion(ctx, "welcome", "en")
//	    ...
//	})
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/template-service/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// LatestVersion returns the highest version stored for (code, language), or 0
// when the group is empty. On Postgres the group rows are locked FOR UPDATE
// until the surrounding transaction ends.
func LatestVersion(ctx context.Context, db *gorm.DB, code, language string) (int, error) {
	q := db.WithContext(ctx).
		Model(&domain.Template{}).
		Select("version").
		Where("code = ? AND language = ?", code, language).
		Order("version desc").
		Limit(1)
	if db.Dialector.Name() == DriverPostgres {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []int
	if err := q.Pluck("version", &rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0], nil
}

// DeactivateGroup clears is_active on every active row of (code, language).
func DeactivateGroup(ctx context.Context, db *gorm.DB, code, language string) error {
	return db.WithContext(ctx).
		Model(&domain.Template{}).
		Where("code = ? AND language = ? AND is_active = ?", code, language, true).
		Update("is_active", false).Error
}

// InsertTemplate inserts t as given; the caller assigns ID and Version.
func InsertTemplate(ctx context.Context, db *gorm.DB, t *domain.Template) error {
	// Select("*") so an explicit is_active=false is written instead of the column default.
	return db.WithContext(ctx).Select("*").Create(t).Error
}

// FindActive returns the active row of (code, language).
func FindActive(ctx context.Context, db *gorm.DB, code, language string) (*domain.Template, error) {
	var t domain.Template
	err := db.WithContext(ctx).
		Where("code = ? AND language = ? AND is_active = ?", code, language, true).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindVersion returns one specific version of (code, language).
func FindVersion(ctx context.Context, db *gorm.DB, code, language string, version int) (*domain.Template, error) {
	var t domain.Template
	err := db.WithContext(ctx).
		Where("code = ? AND language = ? AND version = ?", code, language, version).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListGroupPage returns versions of (code, language), newest first.
func ListGroupPage(ctx context.Context, db *gorm.DB, code, language string, offset, limit int) ([]domain.Template, error) {
	out := []domain.Template{}
	err := db.WithContext(ctx).
		Where("code = ? AND language = ?", code, language).
		Order("version desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountGroup returns how many versions (code, language) has.
func CountGroup(ctx context.Context, db *gorm.DB, code, language string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Template{}).
		Where("code = ? AND language = ?", code, language).
		Count(&total).Error
	return total, err
}

// ListTemplatesPage returns a page of all rows, highest version first, then
// newest, ties broken by id.
func ListTemplatesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Template, error) {
	out := []domain.Template{}
	err := db.WithContext(ctx).
		Order("version desc").
		Order("created_at desc").
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountTemplates returns the total number of rows.
func CountTemplates(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Template{}).Count(&total).Error
	return total, err
}

// GetTemplate fetches a row by id.
func GetTemplate(ctx context.Context, db *gorm.DB, id string) (*domain.Template, error) {
	var t domain.Template
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTemplateFields applies column updates to one row. A nil value clears
// the column. Returns ErrNotFound when no row matched.
func UpdateTemplateFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Template{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteTemplate hard-deletes one row. Returns ErrNotFound when no row matched.
func DeleteTemplate(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Template{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type txKey struct{}

// TemplateStore adapts the repository functions to the store contract the
// service layer depends on. Calls made with a context returned inside
// WithinTx run on that transaction.
type TemplateStore struct {
	DB *gorm.DB
}

// NewTemplateStore wraps db.
func NewTemplateStore(db *gorm.DB) *TemplateStore { return &TemplateStore{DB: db} }

func (s *TemplateStore) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.DB
}

// WithinTx runs fn in a database transaction. fn must use the context it is
// given so that store calls join the transaction. Returning an error rolls back.
func (s *TemplateStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (s *TemplateStore) LatestVersion(ctx context.Context, code, language string) (int, error) {
	return LatestVersion(ctx, s.conn(ctx), code, language)
}

func (s *TemplateStore) DeactivateGroup(ctx context.Context, code, language string) error {
	return DeactivateGroup(ctx, s.conn(ctx), code, language)
}

func (s *TemplateStore) Insert(ctx context.Context, t *domain.Template) error {
	return InsertTemplate(ctx, s.conn(ctx), t)
}

func (s *TemplateStore) FindActive(ctx context.Context, code, language string) (*domain.Template, error) {
	return FindActive(ctx, s.conn(ctx), code, language)
}

func (s *TemplateStore) FindVersion(ctx context.Context, code, language string, version int) (*domain.Template, error) {
	return FindVersion(ctx, s.conn(ctx), code, language, version)
}

func (s *TemplateStore) ListGroup(ctx context.Context, code, language string, offset, limit int) ([]domain.Template, error) {
	return ListGroupPage(ctx, s.conn(ctx), code, language, offset, limit)
}

func (s *TemplateStore) CountGroup(ctx context.Context, code, language string) (int64, error) {
	return CountGroup(ctx, s.conn(ctx), code, language)
}

func (s *TemplateStore) List(ctx context.Context, offset, limit int) ([]domain.Template, error) {
	return ListTemplatesPage(ctx, s.conn(ctx), offset, limit)
}

func (s *TemplateStore) Count(ctx context.Context) (int64, error) {
	return CountTemplates(ctx, s.conn(ctx))
}

func (s *TemplateStore) Get(ctx context.Context, id string) (*domain.Template, error) {
	return GetTemplate(ctx, s.conn(ctx), id)
}

func (s *TemplateStore) Update(ctx context.Context, id string, fields map[string]any) error {
	return UpdateTemplateFields(ctx, s.conn(ctx), id, fields)
}

func (s *TemplateStore) Delete(ctx context.Context, id string) error {
	return DeleteTemplate(ctx, s.conn(ctx), id)
}

func (s *TemplateStore) GetIdempotency(ctx context.Context, scope, key string) (*domain.Idempotency, error) {
	return GetIdempotency(ctx, s.conn(ctx), scope, key, time.Now().UTC())
}

func (s *TemplateStore) PutIdempotency(ctx context.Context, scope, key, templateID string, status int, ttl time.Duration) error {
	_, err := CreateIdempotency(ctx, s.conn(ctx), scope, key, templateID, status, ttl)
	return err
}

func (s *TemplateStore) Ping(ctx context.Context) error {
	return Ping(ctx, s.conn(ctx))
}
