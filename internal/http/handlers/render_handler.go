// Render and health HTTP handlers.
//
//   - POST /templates/render/  renders the active version of (code, language)
//   - GET  /health/            liveness plus database reachability (not enveloped)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/template-service/internal/http/middleware"
	"github.com/tbourn/template-service/internal/services"
)

// serviceName is reported by the health check.
const serviceName = "template_service"

// RenderRequest is the JSON payload for rendering a template.
type RenderRequest struct {
	Code      string         `json:"code" example:"welcome"`
	Language  string         `json:"language" example:"en"`
	Variables map[string]any `json:"variables" swaggertype:"object"`
	// Version pins a historical version; omitted or 0 renders the active one.
	Version int `json:"version" example:"0"`
}

// RenderEnvelope documents a successful render response.
type RenderEnvelope struct {
	Success bool              `json:"success" example:"true"`
	Data    services.Rendered `json:"data"`
	Error   *string           `json:"error"`
	Message string            `json:"message" example:"Template rendered successfully"`
	Meta    map[string]any    `json:"meta"`
}

// HealthResponse is the unenveloped health check body.
type HealthResponse struct {
	Service  string `json:"service" example:"template_service"`
	Status   string `json:"status" example:"ok"`
	Database string `json:"database" example:"ok"`
}

// RenderTemplate godoc
// @ID          renderTemplate
// @Summary     Render a template
// @Description Renders subject and content of the active version of (code, language) with the given variables. Undefined variables render as empty strings. There is no fallback to another language.
// @Tags        Render
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RenderRequest  true  "Render request"
//
// @Success     200  {object} handlers.RenderEnvelope
// @Failure     400  {object} handlers.ErrorResponse "Missing code or invalid language"
// @Failure     404  {object} handlers.ErrorResponse "Template not found"
// @Failure     500  {object} handlers.ErrorResponse "Render error"
// @Router      /templates/render/ [post]
func (h *Handlers) RenderTemplate(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	out, err := h.renderSvc.Render(c.Request.Context(), services.RenderInput{
		Code:      req.Code,
		Language:  req.Language,
		Variables: req.Variables,
		Version:   req.Version,
	})
	if err != nil {
		failErr(c, err, "Template not found")
		return
	}
	ok(c, http.StatusOK, out, "Template rendered successfully")
}

// Health godoc
// @ID          health
// @Summary     Health check
// @Description Reports service liveness and database reachability. Returns 503 when the database is unreachable.
// @Tags        Health
// @Produce     json
//
// @Success     200  {object} handlers.HealthResponse
// @Failure     503  {object} handlers.HealthResponse
// @Router      /health/ [get]
func (h *Handlers) Health(c *gin.Context) {
	resp := HealthResponse{Service: serviceName, Status: "ok", Database: "ok"}
	if err := h.tplSvc.Ping(c.Request.Context()); err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("health check: database unreachable")
		resp.Status, resp.Database = "degraded", "error"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
