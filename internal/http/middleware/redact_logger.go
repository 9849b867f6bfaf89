// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger for the template
// API. Request bodies (template content and render contexts) are never
// logged; query strings and header values are scrubbed of obvious PII
// (emails, phone numbers, UUIDs) and credential headers are masked.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	ctxKeyLogger = "logger"
	redactedMask = "[REDACTED]"
)

// RedactOptions configures RedactingLogger.
//
// MaskHeaders lists extra header names whose values are replaced with
// "[REDACTED]" (case-insensitive, merged with Authorization, Cookie and
// Set-Cookie). QuietPaths lists route patterns (gin FullPath) whose
// successful requests are logged at debug level, e.g. health checks.
type RedactOptions struct {
	MaskHeaders []string
	QuietPaths  []string
}

// UUIDs go first so the phone pattern cannot eat their digit groups.
var scrubRules = []struct {
	re   *regexp.Regexp
	mask string
}{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

func scrub(s string) string {
	for _, r := range scrubRules {
		if s == "" {
			return s
		}
		s = r.re.ReplaceAllString(s, r.mask)
	}
	return s
}

type redactor struct {
	masked map[string]struct{}
	quiet  map[string]struct{}
}

func newRedactor(opts RedactOptions) *redactor {
	rd := &redactor{
		masked: map[string]struct{}{"authorization": {}, "cookie": {}, "set-cookie": {}},
		quiet:  make(map[string]struct{}, len(opts.QuietPaths)),
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			rd.masked[h] = struct{}{}
		}
	}
	for _, p := range opts.QuietPaths {
		rd.quiet[p] = struct{}{}
	}
	return rd
}

// headers flattens and scrubs request headers for logging.
func (rd *redactor) headers(c *gin.Context) map[string]string {
	out := make(map[string]string, len(c.Request.Header))
	for k, vv := range c.Request.Header {
		if _, ok := rd.masked[strings.ToLower(k)]; ok {
			out[k] = redactedMask
			continue
		}
		out[k] = scrub(strings.Join(vv, ", "))
	}
	return out
}

// level picks the severity for a finished request.
func (rd *redactor) level(c *gin.Context, route string, status int) zerolog.Level {
	switch {
	case status >= 500 || len(c.Errors) > 0:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	}
	if _, ok := rd.quiet[route]; ok {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// RedactingLogger returns a Gin middleware that emits one structured
// "http_request" line per request.
//
// Before the handler runs it attaches a request-scoped logger carrying
// request_id, method, route and, on template routes, the template id or code
// taken from the :id parameter. The logger is reachable through LoggerFrom
// and through log.Ctx on the request context, so services inherit the
// correlation fields. Severity is ERROR for 5xx or recorded gin errors, WARN
// for 4xx, DEBUG for successful quiet paths and INFO otherwise.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	rd := newRedactor(opts)

	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		lc := log.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", route)
		if id := c.Param("id"); id != "" {
			lc = lc.Str("template", id)
		}
		l := lc.Logger()
		c.Set(ctxKeyLogger, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		ev := l.WithLevel(rd.level(c, route, status))
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", scrub(c.Errors.String()))
		}
		ev.
			Str("query", truncate(scrub(c.Request.URL.RawQuery), maxQueryLogLength)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", rd.headers(c)).
			Msg("http_request")
	}
}
