// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response envelope shared by every endpoint except the
// health check. Success and failure use the same shape so clients can branch on
// a single field:
//
//	HTTP/1.1 200 OK
//	{ "success": true, "data": {...}, "error": null, "message": "Template retrieved", "meta": {} }
//
//	HTTP/1.1 404 Not Found
//	{
//	  "success": false,
//	  "data": null,
//	  "error": "not_found",
//	  "message": "Template not found",
//	  "meta": {},
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000"
//	}
//
// Conventions:
//   - `error` carries a stable code from errors.go, or null on success.
//   - `meta` is an empty object unless the response is paginated
//     (utils.PageMeta) or a validation error names the offending field.
//   - `fail()` centralizes error logging so 5xx responses are logged with the
//     request-scoped logger.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/template-service/internal/http/middleware"
)

// Envelope is the response body returned by all enveloped endpoints.
type Envelope struct {
	// True when the request succeeded
	Success bool `json:"success" example:"true"`
	// Payload; null on failure and on deletes
	Data any `json:"data"`
	// Stable, machine-readable code (see errors.go constants); null on success
	Error *string `json:"error" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"Template retrieved"`
	// Pagination block or error detail; {} otherwise
	Meta any `json:"meta" swaggertype:"object"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// ErrorResponse documents the failure shape of Envelope for Swagger.
type ErrorResponse struct {
	Success   bool              `json:"success" example:"false"`
	Data      any               `json:"data" swaggertype:"object"`
	Error     string            `json:"error" example:"not_found"`
	Message   string            `json:"message" example:"Template not found"`
	Meta      map[string]string `json:"meta"`
	RequestID string            `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}

func emptyMeta() map[string]any { return map[string]any{} }

// fail aborts the request with an error envelope. meta may be nil.
//
// Server errors (>=500) are logged using the request-scoped logger from middleware.
func fail(c *gin.Context, status int, code, msg string, meta ...map[string]any) {
	m := emptyMeta()
	if len(meta) > 0 && meta[0] != nil {
		m = meta[0]
	}
	resp := Envelope{
		Success:   false,
		Error:     &code,
		Message:   msg,
		Meta:      m,
		RequestID: c.Writer.Header().Get("X-Request-ID"),
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		ev := lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg)
		if len(c.Errors) > 0 {
			ev = ev.Str("cause", c.Errors.String())
		}
		ev.Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail().
//
// External packages (e.g., router setup) should call Fail to return
// consistent error envelopes without directly depending on unexported helpers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success envelope with an empty meta object.
func ok(c *gin.Context, status int, data any, msg string) {
	c.JSON(status, Envelope{Success: true, Data: data, Message: msg, Meta: emptyMeta()})
}

// okPage writes a success envelope carrying pagination meta.
func okPage(c *gin.Context, data any, meta any, msg string) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Message: msg, Meta: meta})
}

// noContent writes an HTTP 204 No Content response.
//
// Used when the operation succeeds but there is no response body.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
