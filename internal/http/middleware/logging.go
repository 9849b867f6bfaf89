// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides a request ID injector, a panic-safe recovery handler and
// access to the request-scoped logger:
//
//   - RequestID() ensures every request carries a correlation ID
//     (propagated via X-Request-ID when well-formed, stored in the Gin context).
//   - Recovery() converts panics into enveloped JSON 500 responses while
//     preserving the correlation ID and emitting a stack trace to logs.
//   - LoggerFrom() retrieves the request-scoped logger attached by
//     RedactingLogger to enrich logs within handlers
//     (e.g., lg.Info().Str("template.code", code).Msg("…")).
//
// Compose as RequestID() → RedactingLogger() → Recovery() so that panics and
// errors include the correlation ID and are logged.
package middleware

import (
	"net/http"
	"runtime/debug"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	// maxRequestIDLen bounds client-supplied IDs echoed into logs and headers.
	maxRequestIDLen = 128
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
)

// RequestID propagates a client X-Request-ID when it is a printable token of
// at most 128 bytes and generates a UUIDv4 otherwise. The ID is echoed on
// the response and stored in the Gin context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if b := s[i]; b <= ' ' || b >= 0x7f || b == '"' {
			return false
		}
	}
	return true
}

// Recovery turns a handler panic into the standard 500 envelope with code
// "internal_error". The panic value and stack go to the request logger and
// the recovery is counted under the "panic" rejection reason. When the
// handler already started writing, the partial response is left as is.
// Mount it after RedactingLogger so the access log sees the 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			countRejected(reasonPanicRecovered)
			v, _ := c.Get(requestIDKey)
			rid := asString(v)
			LoggerFrom(c).Error().
				Str("request_id", rid).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			if rid != "" {
				c.Header(requestIDHeader, rid)
			}
			abortEnvelope(c, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		c.Next()
	}
}

// LoggerFrom returns the logger RedactingLogger attached to c, or a copy of
// the global logger when none is present. It never returns nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if l, ok := v.(*zerolog.Logger); ok && l != nil {
			return l
		}
	}
	fallback := log.Logger
	return &fallback
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate cuts s to at most max bytes on a rune boundary and marks the cut
// with an ellipsis. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
