package services

import (
	"context"
	"time"

	"github.com/tbourn/template-service/internal/domain"
)

// TemplateStore is the persistence contract the services depend on.
// repo.TemplateStore implements it over GORM.
//
// Lookups that miss return repo.ErrNotFound (gorm.ErrRecordNotFound).
// WithinTx runs fn atomically; store calls made with the context passed to
// fn join the transaction.
type TemplateStore interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	LatestVersion(ctx context.Context, code, language string) (int, error)
	DeactivateGroup(ctx context.Context, code, language string) error
	Insert(ctx context.Context, t *domain.Template) error

	FindActive(ctx context.Context, code, language string) (*domain.Template, error)
	FindVersion(ctx context.Context, code, language string, version int) (*domain.Template, error)
	ListGroup(ctx context.Context, code, language string, offset, limit int) ([]domain.Template, error)
	CountGroup(ctx context.Context, code, language string) (int64, error)
	List(ctx context.Context, offset, limit int) ([]domain.Template, error)
	Count(ctx context.Context) (int64, error)
	Get(ctx context.Context, id string) (*domain.Template, error)

	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error

	GetIdempotency(ctx context.Context, scope, key string) (*domain.Idempotency, error)
	PutIdempotency(ctx context.Context, scope, key, templateID string, status int, ttl time.Duration) error

	Ping(ctx context.Context) error
}

// ActiveCache caches the active version of a (code, language) group.
// Implementations must treat misses and backend failures alike: Get returns
// ok=false and the caller falls back to the store.
//
// On a miss Get also returns a fill token. Set must drop the write when the
// group was invalidated after that Get, so a fill racing a create or a
// deactivation never restores the old row. A negative token disables the
// fill.
type ActiveCache interface {
	Get(ctx context.Context, code, language string) (t *domain.Template, token int64, ok bool)
	Set(ctx context.Context, t *domain.Template, token int64)
	Invalidate(ctx context.Context, code, language string)
}

// Event types published on the lifecycle stream.
const (
	EventVersionCreated = "template.version_created"
	EventDeactivated    = "template.deactivated"
	EventDeleted        = "template.deleted"
)

// Event is a template lifecycle notification.
type Event struct {
	Type       string    `json:"type"`
	TemplateID string    `json:"template_id"`
	Code       string    `json:"code"`
	Language   string    `json:"language"`
	Version    int       `json:"version"`
	At         time.Time `json:"at"`
}

// Publisher delivers lifecycle events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, string, string) (*domain.Template, int64, bool) {
	return nil, -1, false
}
func (noopCache) Set(context.Context, *domain.Template, int64) {}
func (noopCache) Invalidate(context.Context, string, string)   {}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }
