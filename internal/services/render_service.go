// Package services – RenderService
//
// RenderService resolves the template to serve for a (code, language) pair
// and substitutes caller variables into its subject and content using the
// same engine that validated them at write time.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/template-service/internal/domain"
	"github.com/tbourn/template-service/internal/observability"
	"github.com/tbourn/template-service/internal/render"
)

// Resolver is the subset of TemplateService that rendering needs.
type Resolver interface {
	ResolveActive(ctx context.Context, code, lang string) (*domain.Template, error)
	ResolveVersion(ctx context.Context, code, lang string, version int) (*domain.Template, error)
}

// RenderInput is a render request. Version 0 means the active version.
type RenderInput struct {
	Code      string
	Language  string
	Variables map[string]any
	Version   int
}

// Rendered is the result of a render. Subject is nil when the template has none.
type Rendered struct {
	Code     string  `json:"code"`
	Language string  `json:"language"`
	Version  int     `json:"version"`
	Subject  *string `json:"subject"`
	Content  string  `json:"content"`
}

// RenderService renders resolved templates.
type RenderService struct {
	Templates Resolver
	Engine    *render.Engine
}

// NewRenderService wires a RenderService.
func NewRenderService(templates Resolver, engine *render.Engine) *RenderService {
	return &RenderService{Templates: templates, Engine: engine}
}

// Render resolves in.Code/in.Language (default "en") and renders it.
//
// Errors: ErrInvalidRequest when code is blank, *ValidationError for a bad
// language tag, ErrNotFound when nothing is active (or the requested version
// does not exist), ErrRender when the engine fails.
func (s *RenderService) Render(ctx context.Context, in RenderInput) (*Rendered, error) {
	ctx, span := otel.Tracer("services/RenderService").Start(ctx, "Render",
		trace.WithAttributes(
			attribute.String("template.code", in.Code),
			attribute.String("template.language", in.Language),
			attribute.Int("template.version", in.Version),
		),
	)
	defer span.End()

	code := strings.TrimSpace(in.Code)
	if code == "" {
		return nil, ErrInvalidRequest
	}

	var (
		tpl *domain.Template
		err error
	)
	if in.Version > 0 {
		tpl, err = s.Templates.ResolveVersion(ctx, code, in.Language, in.Version)
	} else {
		tpl, err = s.Templates.ResolveActive(ctx, code, in.Language)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			observability.RendersTotal.WithLabelValues(observability.RenderNotFound).Inc()
		}
		return nil, err
	}

	out := &Rendered{Code: tpl.Code, Language: tpl.Language, Version: tpl.Version}
	if tpl.Subject != nil {
		subj, err := s.Engine.Render(*tpl.Subject, in.Variables)
		if err != nil {
			return nil, s.renderFailed(ctx, span, tpl, "subject", err)
		}
		out.Subject = &subj
	}
	content, err := s.Engine.Render(tpl.Content, in.Variables)
	if err != nil {
		return nil, s.renderFailed(ctx, span, tpl, "content", err)
	}
	out.Content = content

	observability.RendersTotal.WithLabelValues(observability.RenderOK).Inc()
	return out, nil
}

func (s *RenderService) renderFailed(ctx context.Context, span trace.Span, tpl *domain.Template, field string, err error) error {
	observability.RendersTotal.WithLabelValues(observability.RenderError).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "render failed")
	log.Ctx(ctx).Error().Err(err).
		Str("template.id", tpl.ID).
		Str("template.code", tpl.Code).
		Str("template.language", tpl.Language).
		Int("version", tpl.Version).
		Str("field", field).
		Msg("template render failed")
	return errors.Join(ErrRender, err)
}
