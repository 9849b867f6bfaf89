// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants and the mapping from
// service errors to (status, code). Codes give clients a stable,
// machine-readable taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase snake_case.
//   - Generic codes (bad_request, not_found, conflict) mirror HTTP status
//     semantics; domain codes (invalid_template, render_error) name business
//     failures that status alone cannot convey.
//
// Example response:
//
//	{
//	  "success": false,
//	  "data": null,
//	  "error": "immutable_field",
//	  "message": "version: version is assigned by the server and cannot be changed",
//	  "meta": { "field": "version" }
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/template-service/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeValidation      = "validation_error"
	ErrCodeInvalidTemplate = "invalid_template"
	ErrCodeImmutableField  = "immutable_field"
	ErrCodeMissingCode     = "missing_code"
	ErrCodeRenderError     = "render_error"
)

// failErr translates a service error into an error envelope. notFoundMsg is
// used for ErrNotFound so each endpoint can name what was missing.
func failErr(c *gin.Context, err error, notFoundMsg string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		code := ErrCodeValidation
		switch {
		case errors.Is(err, services.ErrImmutableField):
			code = ErrCodeImmutableField
		case errors.Is(err, services.ErrInvalidTemplate):
			code = ErrCodeInvalidTemplate
		}
		var meta map[string]any
		if verr.Field != "" {
			meta = map[string]any{"field": verr.Field}
		}
		fail(c, http.StatusBadRequest, code, verr.Error(), meta)
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrInvalidRequest):
		fail(c, http.StatusBadRequest, ErrCodeMissingCode, "Missing code")
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, notFoundMsg)
	case errors.Is(err, services.ErrRender):
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeRenderError, "Template render error")
	case errors.Is(err, services.ErrConflict):
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeConflict, "could not allocate a version, retry the request")
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
