package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/template-service/internal/domain"
	"github.com/tbourn/template-service/internal/repo"
)

// memStore is an in-memory TemplateStore. WithinTx serializes transactions
// and restores a snapshot when fn fails. Insert enforces the same unique
// rules as the SQL schema.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	rows map[string]domain.Template
	idem map[string]domain.Idempotency

	// failInserts makes the next N Insert calls fail with a duplicate-key error.
	failInserts int
	inserts     int
	pingErr     error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]domain.Template{}, idem: map[string]domain.Idempotency{}}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	rows := make(map[string]domain.Template, len(m.rows))
	for k, v := range m.rows {
		rows[k] = v
	}
	idem := make(map[string]domain.Idempotency, len(m.idem))
	for k, v := range m.idem {
		idem[k] = v
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.rows, m.idem = rows, idem
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) LatestVersion(_ context.Context, code, lang string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := 0
	for _, r := range m.rows {
		if r.Code == code && r.Language == lang && r.Version > latest {
			latest = r.Version
		}
	}
	return latest, nil
}

func (m *memStore) DeactivateGroup(_ context.Context, code, lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rows {
		if r.Code == code && r.Language == lang && r.IsActive {
			r.IsActive = false
			m.rows[id] = r
		}
	}
	return nil
}

func (m *memStore) Insert(_ context.Context, t *domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.failInserts > 0 {
		m.failInserts--
		return gorm.ErrDuplicatedKey
	}
	for _, r := range m.rows {
		if r.Code != t.Code || r.Language != t.Language {
			continue
		}
		if r.Version == t.Version || (r.IsActive && t.IsActive) {
			return gorm.ErrDuplicatedKey
		}
	}
	m.rows[t.ID] = *t
	return nil
}

func (m *memStore) FindActive(_ context.Context, code, lang string) (*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Code == code && r.Language == lang && r.IsActive {
			r := r
			return &r, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memStore) FindVersion(_ context.Context, code, lang string, version int) (*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Code == code && r.Language == lang && r.Version == version {
			r := r
			return &r, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memStore) group(code, lang string) []domain.Template {
	out := []domain.Template{}
	for _, r := range m.rows {
		if r.Code == code && r.Language == lang {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out
}

func pageOf(all []domain.Template, offset, limit int) []domain.Template {
	if offset >= len(all) {
		return []domain.Template{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func (m *memStore) ListGroup(_ context.Context, code, lang string, offset, limit int) ([]domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pageOf(m.group(code, lang), offset, limit), nil
}

func (m *memStore) CountGroup(_ context.Context, code, lang string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.group(code, lang))), nil
}

func (m *memStore) List(_ context.Context, offset, limit int) ([]domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]domain.Template, 0, len(m.rows))
	for _, r := range m.rows {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Version != all[j].Version {
			return all[i].Version > all[j].Version
		}
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return pageOf(all, offset, limit), nil
}

func (m *memStore) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows)), nil
}

func (m *memStore) Get(_ context.Context, id string) (*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &r, nil
}

func (m *memStore) Update(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return repo.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			r.Name = v.(string)
		case "content":
			r.Content = v.(string)
		case "subject":
			if v == nil {
				r.Subject = nil
			} else {
				s := v.(string)
				r.Subject = &s
			}
		case "is_active":
			r.IsActive = v.(bool)
		}
	}
	r.UpdatedAt = time.Now().UTC()
	m.rows[id] = r
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memStore) GetIdempotency(_ context.Context, scope, key string) (*domain.Idempotency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.idem[scope+"|"+key]
	if !ok || !rec.ExpiresAt.After(time.Now().UTC()) {
		return nil, repo.ErrNotFound
	}
	return &rec, nil
}

func (m *memStore) PutIdempotency(_ context.Context, scope, key, templateID string, status int, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scope + "|" + key
	now := time.Now().UTC()
	if rec, ok := m.idem[k]; ok && rec.ExpiresAt.After(now) {
		return repo.ErrDuplicate
	}
	m.idem[k] = domain.Idempotency{
		Scope: scope, Key: key, TemplateID: templateID, Status: status,
		CreatedAt: now, ExpiresAt: now.Add(ttl),
	}
	return nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) activeCount(code, lang string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.Code == code && r.Language == lang && r.IsActive {
			n++
		}
	}
	return n
}

var _ TemplateStore = (*memStore)(nil)
var _ TemplateStore = (*repo.TemplateStore)(nil)
