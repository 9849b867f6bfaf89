package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/template-service/internal/domain"
	"github.com/tbourn/template-service/internal/render"
)

func newRenderSvc(t *testing.T) (*RenderService, *TemplateService, *memStore) {
	t.Helper()
	svc, st := newSvc(t)
	return NewRenderService(svc, svc.Engine), svc, st
}

func TestRender_ActiveVersionWithVariables(t *testing.T) {
	rs, svc, _ := newRenderSvc(t)
	ctx := context.Background()

	_, _, err := svc.CreateNewVersion(ctx, CreateInput{
		Code: "welcome", Name: "Welcome", Subject: strPtr("Hi {{ name }}"),
		Content: "Hello {{name}}, welcome to {{company}}!",
	}, "")
	require.NoError(t, err)

	out, err := rs.Render(ctx, RenderInput{
		Code: "welcome", Variables: map[string]any{"name": "Alice", "company": "ACME"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Alice, welcome to ACME!", out.Content)
	require.NotNil(t, out.Subject)
	assert.Equal(t, "Hi Alice", *out.Subject)
	assert.Equal(t, 1, out.Version)
	assert.Equal(t, "en", out.Language)
	assert.Equal(t, "welcome", out.Code)
}

func TestRender_ServesNewestVersion(t *testing.T) {
	rs, svc, _ := newRenderSvc(t)
	ctx := context.Background()
	create(t, svc, "welcome", "en", "old {{ x }}")
	create(t, svc, "welcome", "en", "new {{ x }}")

	out, err := rs.Render(ctx, RenderInput{Code: "welcome", Language: "en", Variables: map[string]any{"x": 1}})
	require.NoError(t, err)
	assert.Equal(t, "new 1", out.Content)
	assert.Equal(t, 2, out.Version)
	assert.Nil(t, out.Subject)
}

func TestRender_HistoricalVersion(t *testing.T) {
	rs, svc, _ := newRenderSvc(t)
	ctx := context.Background()
	create(t, svc, "welcome", "en", "old")
	create(t, svc, "welcome", "en", "new")

	out, err := rs.Render(ctx, RenderInput{Code: "welcome", Version: 1})
	require.NoError(t, err)
	assert.Equal(t, "old", out.Content)
	assert.Equal(t, 1, out.Version)

	_, err = rs.Render(ctx, RenderInput{Code: "welcome", Version: 9})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRender_UndefinedVariablesRenderEmpty(t *testing.T) {
	rs, svc, _ := newRenderSvc(t)
	create(t, svc, "welcome", "en", "Hi {{ name }}!")

	out, err := rs.Render(context.Background(), RenderInput{Code: "welcome"})
	require.NoError(t, err)
	assert.Equal(t, "Hi !", out.Content)
}

func TestRender_Errors(t *testing.T) {
	rs, svc, _ := newRenderSvc(t)
	ctx := context.Background()
	tpl := create(t, svc, "welcome", "en", "hi")

	_, err := rs.Render(ctx, RenderInput{Code: "   "})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = rs.Render(ctx, RenderInput{Code: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = rs.Render(ctx, RenderInput{Code: "welcome", Language: "pt"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = rs.Render(ctx, RenderInput{Code: "welcome", Language: "not a tag!"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Deactivate(ctx, tpl.ID)
	require.NoError(t, err)
	_, err = rs.Render(ctx, RenderInput{Code: "welcome"})
	assert.ErrorIs(t, err, ErrNotFound, "deactivated group renders as not found")
}

type fixedResolver struct{ tpl *domain.Template }

func (f fixedResolver) ResolveActive(context.Context, string, string) (*domain.Template, error) {
	return f.tpl, nil
}

func (f fixedResolver) ResolveVersion(context.Context, string, string, int) (*domain.Template, error) {
	return f.tpl, nil
}

func TestRender_EngineFailureIsRenderError(t *testing.T) {
	// A stored row that bypassed validation (e.g. written by hand) must
	// surface as ErrRender rather than a raw engine error.
	broken := &domain.Template{ID: "x", Code: "broken", Language: "en", Version: 1, Content: "{% for x in y %}", IsActive: true}
	rs := NewRenderService(fixedResolver{tpl: broken}, render.MustNew())

	_, err := rs.Render(context.Background(), RenderInput{Code: "broken"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRender)
	assert.True(t, errors.Is(err, render.ErrSyntax))
}
