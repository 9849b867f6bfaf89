// Package services – TemplateService
//
// This file implements TemplateService, the application-level component that
// owns the version lifecycle of templates and resolves which version is
// served. Creating a template for an existing (code, language) pair appends
// the next version, activates it and deactivates every earlier version in a
// single store transaction. Write conflicts between concurrent creators are
// retried a bounded number of times.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// carry the template code/language and version where applicable.

package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"github.com/tbourn/template-service/internal/domain"
	"github.com/tbourn/template-service/internal/observability"
	"github.com/tbourn/template-service/internal/render"
	"github.com/tbourn/template-service/internal/repo"
	"github.com/tbourn/template-service/internal/utils"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// IdempotencyScope namespaces idempotency keys used by CreateNewVersion.
const IdempotencyScope = "templates.create"

const (
	defaultMaxRetries     = 5
	defaultIdempotencyTTL = 24 * time.Hour
	defaultBackoff        = 10 * time.Millisecond
)

// CreateInput carries the client-supplied fields of a new version.
type CreateInput struct {
	Code     string  `json:"code"     validate:"required,max=100"`
	Name     string  `json:"name"     validate:"required,max=200"`
	Language string  `json:"language" validate:"required,max=10"`
	Subject  *string `json:"subject"  validate:"omitempty,max=255"`
	Content  string  `json:"content"  validate:"required"`
}

// UpdateInput is a partial update. Nil pointers leave the field unchanged.
// ClearSubject sets subject to NULL. Version and IsActive exist so that
// attempts to change them can be rejected explicitly.
type UpdateInput struct {
	Name         *string `json:"name"    validate:"omitempty,max=200"`
	Subject      *string `json:"subject" validate:"omitempty,max=255"`
	ClearSubject bool    `json:"-"`
	Content      *string `json:"content"`
	IsActive     *bool   `json:"is_active"`
	Version      *int    `json:"version"`
	Code         *string `json:"code"`
	Language     *string `json:"language"`
}

// TemplateService implements the Version Manager and the Resolution Service.
type TemplateService struct {
	Store  TemplateStore
	Engine *render.Engine

	// Optional collaborators; nil disables them.
	Cache  ActiveCache
	Events Publisher

	// MaxRetries bounds create attempts on write conflicts (>= 1).
	MaxRetries int
	// IdempotencyTTL is how long an Idempotency-Key replays the first result.
	IdempotencyTTL time.Duration
	// Backoff is the base delay between conflict retries; jitter is added.
	Backoff time.Duration
}

// NewTemplateService wires a service with default retry and TTL settings.
func NewTemplateService(store TemplateStore, engine *render.Engine) *TemplateService {
	return &TemplateService{
		Store:          store,
		Engine:         engine,
		MaxRetries:     defaultMaxRetries,
		IdempotencyTTL: defaultIdempotencyTTL,
		Backoff:        defaultBackoff,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// toValidationError converts the first validator failure into a *ValidationError.
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalid("", err.Error())
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return invalid(fe.Field(), "this field is required")
	case "max":
		return invalid(fe.Field(), fmt.Sprintf("ensure this field has no more than %s characters", fe.Param()))
	default:
		return invalid(fe.Field(), "invalid value")
	}
}

// NormalizeLanguage trims tag, defaults it to domain.DefaultLanguage and
// returns its canonical BCP 47 form ("pt-br" -> "pt-BR").
func NormalizeLanguage(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return domain.DefaultLanguage, nil
	}
	t, err := language.Parse(tag)
	if err != nil {
		return "", invalid("language", fmt.Sprintf("%q is not a valid language tag", tag))
	}
	return t.String(), nil
}

func (s *TemplateService) tracer() trace.Tracer { return otel.Tracer("services/TemplateService") }

func (s *TemplateService) cache() ActiveCache {
	if s.Cache == nil {
		return noopCache{}
	}
	return s.Cache
}

func (s *TemplateService) events() Publisher {
	if s.Events == nil {
		return noopPublisher{}
	}
	return s.Events
}

// checkSyntax validates text with the shared renderer.
func (s *TemplateService) checkSyntax(field, text string) error {
	if s.Engine == nil {
		return nil
	}
	if err := s.Engine.Validate(text); err != nil {
		return &ValidationError{Field: field, Reason: err.Error(), Kind: ErrInvalidTemplate}
	}
	return nil
}

func (s *TemplateService) normalizeCreate(in CreateInput) (CreateInput, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	lang, err := NormalizeLanguage(in.Language)
	if err != nil {
		return in, err
	}
	in.Language = lang
	if strings.TrimSpace(in.Content) == "" {
		in.Content = ""
	}
	if err := validate.Struct(in); err != nil {
		return in, toValidationError(err)
	}
	if err := s.checkSyntax("content", in.Content); err != nil {
		return in, err
	}
	if in.Subject != nil {
		if err := s.checkSyntax("subject", *in.Subject); err != nil {
			return in, err
		}
	}
	return in, nil
}

// CreateNewVersion validates in and appends the next version of
// (in.Code, in.Language), making it the only active one.
//
// When idemKey is non-empty and an unexpired record exists for it, the
// previously created template is returned with replayed=true and nothing is
// written.
func (s *TemplateService) CreateNewVersion(ctx context.Context, in CreateInput, idemKey string) (tpl *domain.Template, replayed bool, err error) {
	ctx, span := s.tracer().Start(ctx, "CreateNewVersion",
		trace.WithAttributes(
			attribute.String("template.code", in.Code),
			attribute.String("template.language", in.Language),
		),
	)
	defer span.End()

	in, err = s.normalizeCreate(in)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	attempts := s.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		tpl, replayed, err = s.createOnce(ctx, in, idemKey)
		if err == nil {
			break
		}
		if !isConflict(err) {
			span.RecordError(err)
			return nil, false, err
		}
		observability.VersionConflicts.Inc()
		log.Ctx(ctx).Debug().Err(err).
			Str("template.code", in.Code).
			Str("template.language", in.Language).
			Int("attempt", attempt).
			Msg("version create conflict")
		if attempt >= attempts {
			span.SetStatus(codes.Error, "conflict retries exhausted")
			return nil, false, fmt.Errorf("%w after %d attempts: %v", ErrConflict, attempt, err)
		}
		if werr := s.wait(ctx, attempt); werr != nil {
			return nil, false, werr
		}
	}

	span.SetAttributes(attribute.Int("template.version", tpl.Version), attribute.Bool("idempotent.replay", replayed))
	if replayed {
		return tpl, true, nil
	}

	observability.VersionsCreated.Inc()
	s.cache().Invalidate(ctx, tpl.Code, tpl.Language)
	s.publish(ctx, EventVersionCreated, tpl)
	return tpl, false, nil
}

func (s *TemplateService) createOnce(ctx context.Context, in CreateInput, idemKey string) (*domain.Template, bool, error) {
	var (
		out      *domain.Template
		replayed bool
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context) error {
		if idemKey != "" {
			rec, err := s.Store.GetIdempotency(ctx, IdempotencyScope, idemKey)
			switch {
			case err == nil:
				prev, err := s.Store.Get(ctx, rec.TemplateID)
				if err != nil {
					return translateNotFound(err)
				}
				out, replayed = prev, true
				return nil
			case !errors.Is(err, repo.ErrNotFound):
				return err
			}
		}

		latest, err := s.Store.LatestVersion(ctx, in.Code, in.Language)
		if err != nil {
			return err
		}
		if err := s.Store.DeactivateGroup(ctx, in.Code, in.Language); err != nil {
			return err
		}
		now := time.Now().UTC()
		t := &domain.Template{
			ID:        uuid.NewString(),
			Code:      in.Code,
			Name:      in.Name,
			Language:  in.Language,
			Subject:   in.Subject,
			Content:   in.Content,
			Version:   latest + 1,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.Store.Insert(ctx, t); err != nil {
			return err
		}
		if idemKey != "" {
			ttl := s.IdempotencyTTL
			if ttl <= 0 {
				ttl = defaultIdempotencyTTL
			}
			if err := s.Store.PutIdempotency(ctx, IdempotencyScope, idemKey, t.ID, http.StatusCreated, ttl); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, replayed, nil
}

// isConflict reports whether a failed create attempt may be retried. A
// duplicate idempotency record means a concurrent request with the same key
// won; the retry then replays its result.
func isConflict(err error) bool {
	return repo.IsRetryable(err) || errors.Is(err, repo.ErrDuplicate)
}

func (s *TemplateService) wait(ctx context.Context, attempt int) error {
	base := s.Backoff
	if base <= 0 {
		base = defaultBackoff
	}
	d := base*time.Duration(attempt) + time.Duration(rand.Int63n(int64(base)))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *TemplateService) publish(ctx context.Context, typ string, t *domain.Template) {
	ev := Event{
		Type:       typ,
		TemplateID: t.ID,
		Code:       t.Code,
		Language:   t.Language,
		Version:    t.Version,
		At:         time.Now().UTC(),
	}
	if err := s.events().Publish(ctx, ev); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("event", typ).Str("template.id", t.ID).Msg("publish lifecycle event failed")
	}
}

func translateNotFound(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Get returns a template by id.
func (s *TemplateService) Get(ctx context.Context, id string) (*domain.Template, error) {
	ctx, span := s.tracer().Start(ctx, "Get", trace.WithAttributes(attribute.String("template.id", id)))
	defer span.End()

	t, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return t, nil
}

// List returns a page of all templates, highest version first, and the total
// row count.
func (s *TemplateService) List(ctx context.Context, page, limit int) ([]domain.Template, int64, error) {
	ctx, span := s.tracer().Start(ctx, "List",
		trace.WithAttributes(attribute.Int("page", page), attribute.Int("limit", limit)),
	)
	defer span.End()

	page, limit = utils.ClampPage(page, limit)
	total, err := s.Store.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Template{}, 0, nil
	}
	items, err := s.Store.List(ctx, utils.Offset(page, limit), limit)
	return items, total, err
}

// ResolveActive returns the active version of (code, language). There is no
// cross-language fallback.
func (s *TemplateService) ResolveActive(ctx context.Context, code, lang string) (*domain.Template, error) {
	ctx, span := s.tracer().Start(ctx, "ResolveActive",
		trace.WithAttributes(attribute.String("template.code", code), attribute.String("template.language", lang)),
	)
	defer span.End()

	code = strings.TrimSpace(code)
	lang, err := NormalizeLanguage(lang)
	if err != nil {
		return nil, err
	}
	t, token, ok := s.cache().Get(ctx, code, lang)
	if ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return t, nil
	}
	t, err = s.Store.FindActive(ctx, code, lang)
	if err != nil {
		return nil, translateNotFound(err)
	}
	s.cache().Set(ctx, t, token)
	return t, nil
}

// ResolveVersion returns one historical version of (code, language).
func (s *TemplateService) ResolveVersion(ctx context.Context, code, lang string, version int) (*domain.Template, error) {
	ctx, span := s.tracer().Start(ctx, "ResolveVersion",
		trace.WithAttributes(
			attribute.String("template.code", code),
			attribute.String("template.language", lang),
			attribute.Int("template.version", version),
		),
	)
	defer span.End()

	if version < 1 {
		return nil, ErrNotFound
	}
	lang, err := NormalizeLanguage(lang)
	if err != nil {
		return nil, err
	}
	t, err := s.Store.FindVersion(ctx, strings.TrimSpace(code), lang, version)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return t, nil
}

// ListVersions returns the versions of (code, language), newest first. An
// unknown group yields an empty slice and a zero total.
func (s *TemplateService) ListVersions(ctx context.Context, code, lang string, page, limit int) ([]domain.Template, int64, error) {
	ctx, span := s.tracer().Start(ctx, "ListVersions",
		trace.WithAttributes(
			attribute.String("template.code", code),
			attribute.String("template.language", lang),
			attribute.Int("page", page),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	code = strings.TrimSpace(code)
	lang, err := NormalizeLanguage(lang)
	if err != nil {
		return nil, 0, err
	}
	page, limit = utils.ClampPage(page, limit)
	total, err := s.Store.CountGroup(ctx, code, lang)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Template{}, 0, nil
	}
	items, err := s.Store.ListGroup(ctx, code, lang, utils.Offset(page, limit), limit)
	return items, total, err
}

// Deactivate clears is_active on one row. Deactivating an inactive row is a no-op.
func (s *TemplateService) Deactivate(ctx context.Context, id string) (*domain.Template, error) {
	ctx, span := s.tracer().Start(ctx, "Deactivate", trace.WithAttributes(attribute.String("template.id", id)))
	defer span.End()

	return s.Update(ctx, id, UpdateInput{IsActive: boolPtr(false)})
}

// Update applies a restricted partial update. Sending version, code or
// language, or setting is_active=true, is rejected with ErrImmutableField;
// is_active=false deactivates the row. New content or subject is
// syntax-checked.
func (s *TemplateService) Update(ctx context.Context, id string, in UpdateInput) (*domain.Template, error) {
	ctx, span := s.tracer().Start(ctx, "Update", trace.WithAttributes(attribute.String("template.id", id)))
	defer span.End()

	if in.Version != nil {
		return nil, &ValidationError{Field: "version", Reason: "version is assigned by the server and cannot be changed", Kind: ErrImmutableField}
	}
	if in.Code != nil {
		return nil, &ValidationError{Field: "code", Reason: "code identifies the template group; create a new template instead", Kind: ErrImmutableField}
	}
	if in.Language != nil {
		return nil, &ValidationError{Field: "language", Reason: "language identifies the template group; create a new template instead", Kind: ErrImmutableField}
	}
	if in.IsActive != nil && *in.IsActive {
		return nil, &ValidationError{Field: "is_active", Reason: "a version becomes active only by creating it", Kind: ErrImmutableField}
	}

	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalid("name", "this field may not be blank")
		}
		in.Name = &name
		fields["name"] = name
	}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, invalid("content", "this field may not be blank")
		}
		if err := s.checkSyntax("content", *in.Content); err != nil {
			return nil, err
		}
		fields["content"] = *in.Content
	}
	switch {
	case in.ClearSubject:
		fields["subject"] = nil
		in.Subject = nil
	case in.Subject != nil:
		if err := s.checkSyntax("subject", *in.Subject); err != nil {
			return nil, err
		}
		fields["subject"] = *in.Subject
	}
	if err := validate.Struct(in); err != nil {
		return nil, toValidationError(err)
	}
	deactivate := in.IsActive != nil
	if deactivate {
		fields["is_active"] = false
	}

	var (
		out       *domain.Template
		wasActive bool
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.Store.Get(ctx, id)
		if err != nil {
			return translateNotFound(err)
		}
		wasActive = cur.IsActive
		if len(fields) > 0 {
			if err := s.Store.Update(ctx, id, fields); err != nil {
				return translateNotFound(err)
			}
		}
		out, err = s.Store.Get(ctx, id)
		return translateNotFound(err)
	})
	if err != nil {
		return nil, err
	}

	if wasActive {
		s.cache().Invalidate(ctx, out.Code, out.Language)
	}
	if deactivate && wasActive {
		s.publish(ctx, EventDeactivated, out)
	}
	return out, nil
}

// Delete hard-deletes one row. Deleting the active row leaves its group
// without an active version.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer().Start(ctx, "Delete", trace.WithAttributes(attribute.String("template.id", id)))
	defer span.End()

	var gone *domain.Template
	err := s.Store.WithinTx(ctx, func(ctx context.Context) error {
		cur, err := s.Store.Get(ctx, id)
		if err != nil {
			return translateNotFound(err)
		}
		gone = cur
		return translateNotFound(s.Store.Delete(ctx, id))
	})
	if err != nil {
		return err
	}
	s.cache().Invalidate(ctx, gone.Code, gone.Language)
	s.publish(ctx, EventDeleted, gone)
	return nil
}

// Ping checks store connectivity.
func (s *TemplateService) Ping(ctx context.Context) error {
	return s.Store.Ping(ctx)
}

func boolPtr(b bool) *bool { return &b }
