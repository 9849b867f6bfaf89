// Template HTTP handlers.
//
// This file exposes REST endpoints for template resources:
//   - GET    /templates/                             (list, paginated, ETag support)
//   - POST   /templates/                             (create a new version, Idempotency-Key support)
//   - GET    /templates/{id}/                        (get one row)
//   - PATCH  /templates/{id}/, PUT /templates/{id}/  (restricted update)
//   - DELETE /templates/{id}/                        (hard delete)
//   - GET    /templates/{code}/versions/             (versions of a group, newest first, ETag support)
//   - GET    /templates/{code}/versions/{version}/   (one historical version)
//
// Handlers are transport-thin: they decode input, call application services,
// and translate results into enveloped HTTP responses.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/template-service/internal/domain"
	"github.com/tbourn/template-service/internal/http/middleware"
	"github.com/tbourn/template-service/internal/repo"
	"github.com/tbourn/template-service/internal/services"
	"github.com/tbourn/template-service/internal/utils"
)

//
// Service contracts (context-aware)
//

// TemplateService defines the version lifecycle and resolution operations
// consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type TemplateService interface {
	// CreateNewVersion appends a version to (code, language) and makes it the
	// active one. replayed is true when idemKey matched an earlier create.
	CreateNewVersion(ctx context.Context, in services.CreateInput, idemKey string) (tpl *domain.Template, replayed bool, err error)
	Get(ctx context.Context, id string) (*domain.Template, error)
	List(ctx context.Context, page, limit int) ([]domain.Template, int64, error)
	ResolveVersion(ctx context.Context, code, lang string, version int) (*domain.Template, error)
	ListVersions(ctx context.Context, code, lang string, page, limit int) ([]domain.Template, int64, error)
	Update(ctx context.Context, id string, in services.UpdateInput) (*domain.Template, error)
	Delete(ctx context.Context, id string) error
	// Ping reports store connectivity for the health check.
	Ping(ctx context.Context) error
}

// RenderService renders the active (or a pinned) version of a template.
type RenderService interface {
	Render(ctx context.Context, in services.RenderInput) (*services.Rendered, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for templates, rendering and health.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	tplSvc    TemplateService
	renderSvc RenderService
	// db backs weak ETags on list endpoints; nil disables them.
	db *gorm.DB
}

// New constructs and returns a Handlers instance bound to the given services.
func New(tplSvc TemplateService, renderSvc RenderService, db *gorm.DB) *Handlers {
	return &Handlers{tplSvc: tplSvc, renderSvc: renderSvc, db: db}
}

//
// DTOs
//

// CreateTemplateRequest is the JSON payload for creating a template version.
type CreateTemplateRequest struct {
	Code     string  `json:"code" example:"welcome"`
	Name     string  `json:"name" example:"Welcome email"`
	Language string  `json:"language" example:"en"`
	Subject  *string `json:"subject" example:"Welcome, {{ name }}"`
	Content  string  `json:"content" example:"Hello {{ name }}, welcome to {{ company }}!"`
}

// UpdateTemplateRequest is the JSON payload for PATCH/PUT. Sending "version"
// or "is_active": true is rejected; "is_active": false deactivates the row;
// "subject": null clears the subject.
type UpdateTemplateRequest struct {
	Name     *string `json:"name" example:"Welcome email (v2 copy)"`
	Subject  *string `json:"subject" example:"Hi {{ name }}"`
	Content  *string `json:"content" example:"Hello {{ name }}!"`
	IsActive *bool   `json:"is_active" example:"false"`
	Version  *int    `json:"version"`
	Code     *string `json:"code"`
	Language *string `json:"language"`
}

// TemplateEnvelope documents a single-template success response.
type TemplateEnvelope struct {
	Success bool            `json:"success" example:"true"`
	Data    domain.Template `json:"data"`
	Error   *string         `json:"error"`
	Message string          `json:"message" example:"Template retrieved"`
	Meta    map[string]any  `json:"meta"`
}

// TemplateListEnvelope documents a paginated template list response.
type TemplateListEnvelope struct {
	Success bool              `json:"success" example:"true"`
	Data    []domain.Template `json:"data"`
	Error   *string           `json:"error"`
	Message string            `json:"message" example:"Templates retrieved"`
	Meta    utils.PageMeta    `json:"meta"`
}

//
// Helpers
//

// pageParams parses page and limit query params; utils.ClampPage bounds them.
func pageParams(c *gin.Context) (page, limit int) {
	return utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("limit"), utils.DefaultPageSize),
	)
}

// checkETag sets a weak ETag built from (count, max updated_at) and reports
// whether the client copy is current. Stats errors disable the ETag.
func checkETag(c *gin.Context, scope string, count int64, maxTS *time.Time, err error) bool {
	if err != nil {
		return false
	}
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d"`, scope, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// decodeUpdate reads an update body. A JSON null subject becomes ClearSubject.
func decodeUpdate(c *gin.Context) (services.UpdateInput, map[string]json.RawMessage, error) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return services.UpdateInput{}, nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return services.UpdateInput{}, nil, err
	}
	var req UpdateTemplateRequest
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&req); err != nil {
		return services.UpdateInput{}, nil, err
	}
	in := services.UpdateInput{
		Name:     req.Name,
		Subject:  req.Subject,
		Content:  req.Content,
		IsActive: req.IsActive,
		Version:  req.Version,
		Code:     req.Code,
		Language: req.Language,
	}
	if v, ok := fields["subject"]; ok && string(bytes.TrimSpace(v)) == "null" {
		in.ClearSubject = true
	}
	return in, fields, nil
}

//
// Handlers
//

// ListTemplates godoc
// @ID          listTemplates
// @Summary     List templates (paginated)
// @Description Returns every stored version of every template, highest version first, then newest. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Templates
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"templates:3:1700000000\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       limit          query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.TemplateListEnvelope
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /templates/ [get]
func (h *Handlers) ListTemplates(c *gin.Context) {
	ctx := c.Request.Context()
	page, limit := pageParams(c)

	if h.db != nil {
		count, maxTS, err := repo.TemplatesStats(ctx, h.db)
		if checkETag(c, "templates", count, maxTS, err) {
			return
		}
	}

	items, total, err := h.tplSvc.List(ctx, page, limit)
	if err != nil {
		failErr(c, err, "Template not found")
		return
	}
	okPage(c, items, utils.NewPageMeta(page, limit, total), "Templates retrieved")
}

// CreateTemplate godoc
// @ID          createTemplate
// @Summary     Create a template version
// @Description Creates the next version of (code, language), deactivating the previous active version. Language defaults to "en". With an Idempotency-Key header, retries return the first result and set Idempotency-Replayed.
// @Tags        Templates
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Deduplicates retried creates"  example(6f1c7c1e-welcome-1)
// @Param       body             body    handlers.CreateTemplateRequest  true  "Template version"
//
// @Success     201  {object}  handlers.TemplateEnvelope
// @Header      201  {string}  Idempotency-Replayed  "true when the response replays an earlier create"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error or invalid template syntax"
// @Failure     500  {object}  handlers.ErrorResponse  "Version conflict or internal error"
// @Router      /templates/ [post]
func (h *Handlers) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	idemKey, _ := middleware.GetIdempotencyKey(c)

	tpl, replayed, err := h.tplSvc.CreateNewVersion(c.Request.Context(), services.CreateInput{
		Code:     req.Code,
		Name:     req.Name,
		Language: req.Language,
		Subject:  req.Subject,
		Content:  req.Content,
	}, idemKey)
	if err != nil {
		failErr(c, err, "Template not found")
		return
	}
	if replayed {
		middleware.MarkReplayed(c)
	}
	ok(c, http.StatusCreated, tpl, "Template created")
}

// GetTemplate godoc
// @ID          getTemplate
// @Summary     Get a template version by id
// @Tags        Templates
// @Produce     json
//
// @Param       id  path  string  true  "Template ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.TemplateEnvelope
// @Failure     404  {object} handlers.ErrorResponse "Template not found"
// @Router      /templates/{id}/ [get]
func (h *Handlers) GetTemplate(c *gin.Context) {
	tpl, err := h.tplSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err, "Template not found")
		return
	}
	ok(c, http.StatusOK, tpl, "Template retrieved")
}

// UpdateTemplate godoc
// @ID          updateTemplate
// @Summary     Update a template version
// @Description Restricted update of name, subject and content. "version", "code", "language" and "is_active": true are rejected with immutable_field; "is_active": false deactivates the row. PUT additionally requires name and content.
// @Tags        Templates
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Template ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateTemplateRequest  true  "Fields to change"
//
// @Success     200  {object} handlers.TemplateEnvelope
// @Failure     400  {object} handlers.ErrorResponse "Validation error"
// @Failure     404  {object} handlers.ErrorResponse "Template not found"
// @Router      /templates/{id}/ [patch]
// @Router      /templates/{id}/ [put]
func (h *Handlers) UpdateTemplate(c *gin.Context) {
	in, fields, err := decodeUpdate(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if c.Request.Method == http.MethodPut {
		for _, f := range []string{"name", "content"} {
			if _, present := fields[f]; !present {
				fail(c, http.StatusBadRequest, ErrCodeValidation, f+": this field is required", map[string]any{"field": f})
				return
			}
		}
	}

	tpl, err := h.tplSvc.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		failErr(c, err, "Template not found")
		return
	}
	ok(c, http.StatusOK, tpl, "Template updated")
}

// DeleteTemplate godoc
// @ID          deleteTemplate
// @Summary     Delete a template version
// @Description Hard-deletes one row. Deleting the active version leaves its group without an active version.
// @Tags        Templates
//
// @Param       id  path  string  true  "Template ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Template not found"
// @Router      /templates/{id}/ [delete]
func (h *Handlers) DeleteTemplate(c *gin.Context) {
	if err := h.tplSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err, "Template not found")
		return
	}
	noContent(c)
}

// ListVersions godoc
// @ID          listTemplateVersions
// @Summary     List versions of a template
// @Description Versions of (code, language), newest first. Unknown codes return an empty list. Supports weak ETag via If-None-Match.
// @Tags        Versions
// @Produce     json
//
// @Param       code      path   string  true  "Template code"  example(welcome)
// @Param       language  query  string  false "Language tag"   default(en)
// @Param       page      query  int     false "Page number"    minimum(1) default(1)
// @Param       limit     query  int     false "Items per page" minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.TemplateListEnvelope
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Invalid language"
// @Router      /templates/{code}/versions/ [get]
func (h *Handlers) ListVersions(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("id")
	page, limit := pageParams(c)

	lang, err := services.NormalizeLanguage(c.Query("language"))
	if err != nil {
		failErr(c, err, "")
		return
	}

	if h.db != nil {
		count, maxTS, err := repo.VersionsStats(ctx, h.db, code, lang)
		if checkETag(c, "versions:"+lang+":"+code, count, maxTS, err) {
			return
		}
	}

	items, total, err := h.tplSvc.ListVersions(ctx, code, lang, page, limit)
	if err != nil {
		failErr(c, err, "Template not found")
		return
	}
	okPage(c, items, utils.NewPageMeta(page, limit, total), "Versions retrieved")
}

// GetVersion godoc
// @ID          getTemplateVersion
// @Summary     Get one historical version
// @Tags        Versions
// @Produce     json
//
// @Param       code      path   string  true  "Template code"   example(welcome)
// @Param       version   path   int     true  "Version number"  minimum(1)
// @Param       language  query  string  false "Language tag"    default(en)
//
// @Success     200  {object} handlers.TemplateEnvelope
// @Failure     400  {object} handlers.ErrorResponse "Invalid version or language"
// @Failure     404  {object} handlers.ErrorResponse "Version not found"
// @Router      /templates/{code}/versions/{version}/ [get]
func (h *Handlers) GetVersion(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "version must be a positive integer")
		return
	}
	tpl, err := h.tplSvc.ResolveVersion(c.Request.Context(), c.Param("id"), c.Query("language"), version)
	if err != nil {
		failErr(c, err, "Version not found")
		return
	}
	ok(c, http.StatusOK, tpl, "Version retrieved")
}
