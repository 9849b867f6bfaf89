// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders: baseline hardening headers for the JSON
// API, a locked-down Content-Security-Policy for everything except the
// swagger UI, cache directives that keep template reads revalidating against
// their ETag, and opt-in HSTS.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultHSTSMaxAge = 180 * 24 * time.Hour
	apiCSP            = "default-src 'none'; frame-ancestors 'none'"
)

// SecurityOptions configures SecurityHeaders.
//
// HSTS is emitted only when EnableHSTS is set and the request arrived over
// HTTPS (directly or via X-Forwarded-Proto). A non-positive HSTSMaxAge uses
// 180 days.
//
// With Revalidate, GET and HEAD responses carry "Cache-Control: no-cache" so
// clients reuse a cached template only after an If-None-Match round trip;
// every other method gets "no-store". Handlers may override either value.
//
// HTMLPrefixes lists path prefixes serving HTML (the swagger UI) that are
// exempt from the API Content-Security-Policy.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	EnablePolicy bool
	Revalidate   bool
	HTMLPrefixes []string
}

// exposed lists response headers API clients rely on.
var exposed = []string{requestIDHeader, "ETag", HeaderIdempotencyReplayed}

// SecurityHeaders returns a Gin middleware that sets the headers described by
// opt before the handler runs and appends X-Request-ID, ETag and
// Idempotency-Replayed to Access-Control-Expose-Headers without duplicates.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if !hasAnyPrefix(c.Request.URL.Path, opt.HTMLPrefixes) {
			h.Set("Content-Security-Policy", apiCSP)
		}

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.Revalidate {
			h.Set("Cache-Control", cacheDirective(c.Request.Method))
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		exposeHeaders(h, exposed...)

		c.Next()
	}
}

func cacheDirective(method string) string {
	if method == http.MethodGet || method == http.MethodHead {
		return "no-cache"
	}
	return "no-store"
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// isHTTPS reports whether the request used TLS directly or behind a proxy
// that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// exposeHeaders appends names to Access-Control-Expose-Headers, skipping
// entries already listed (case-insensitive).
func exposeHeaders(h http.Header, names ...string) {
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	have := map[string]bool{}
	for _, p := range strings.Split(cur, ",") {
		if p = strings.TrimSpace(p); p != "" {
			have[strings.ToLower(p)] = true
		}
	}
	for _, n := range names {
		if have[strings.ToLower(n)] {
			continue
		}
		if cur == "" {
			cur = n
		} else {
			cur += ", " + n
		}
	}
	if cur != "" {
		h.Set(hdr, cur)
	}
}
