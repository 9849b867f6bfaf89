package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securedRouter(opt SecurityOptions, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(pre...)
	r.Use(SecurityHeaders(opt))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/api/v1/templates/:id/", ok)
	r.PUT("/api/v1/templates/:id/", ok)
	r.GET("/swagger/*any", ok)
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	w := hit(securedRouter(SecurityOptions{}), http.MethodGet, "/api/v1/templates/1/")
	h := w.Header()

	want := map[string]string{
		"X-Content-Type-Options":        "nosniff",
		"X-Frame-Options":               "DENY",
		"Referrer-Policy":               "no-referrer",
		"Content-Security-Policy":       apiCSP,
		"Access-Control-Expose-Headers": "X-Request-ID, ETag, Idempotency-Replayed",
	}
	for k, v := range want {
		if h.Get(k) != v {
			t.Fatalf("%s = %q; want %q", k, h.Get(k), v)
		}
	}
	for _, k := range []string{"Permissions-Policy", "X-Permitted-Cross-Domain-Policies", "Cache-Control", "Strict-Transport-Security"} {
		if h.Get(k) != "" {
			t.Fatalf("unexpected %s: %q", k, h.Get(k))
		}
	}
}

func TestSecurityHeaders_ExposeHeadersMerge(t *testing.T) {
	cases := []struct{ existing, want string }{
		{"Foo", "Foo, X-Request-ID, ETag, Idempotency-Replayed"},
		{"x-request-id, Foo, etag", "x-request-id, Foo, etag, Idempotency-Replayed"},
	}
	for _, tc := range cases {
		pre := func(c *gin.Context) {
			c.Header("Access-Control-Expose-Headers", tc.existing)
			c.Next()
		}
		w := hit(securedRouter(SecurityOptions{}, pre), http.MethodGet, "/api/v1/templates/1/")
		if got := w.Header().Get("Access-Control-Expose-Headers"); got != tc.want {
			t.Fatalf("from %q got %q; want %q", tc.existing, got, tc.want)
		}
	}
}

func TestSecurityHeaders_RevalidateByMethod(t *testing.T) {
	r := securedRouter(SecurityOptions{Revalidate: true})
	if got := hit(r, http.MethodGet, "/api/v1/templates/1/").Header().Get("Cache-Control"); got != "no-cache" {
		t.Fatalf("GET Cache-Control = %q; want no-cache", got)
	}
	if got := hit(r, http.MethodPut, "/api/v1/templates/1/").Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("PUT Cache-Control = %q; want no-store", got)
	}
}

func TestSecurityHeaders_SwaggerExemptFromCSP(t *testing.T) {
	r := securedRouter(SecurityOptions{HTMLPrefixes: []string{"", "/swagger/"}})
	if got := hit(r, http.MethodGet, "/swagger/index.html").Header().Get("Content-Security-Policy"); got != "" {
		t.Fatalf("swagger UI must not get the API CSP, got %q", got)
	}
	if got := hit(r, http.MethodGet, "/api/v1/templates/1/").Header().Get("Content-Security-Policy"); got != apiCSP {
		t.Fatalf("API CSP = %q", got)
	}
}

func TestSecurityHeaders_PolicyAndHSTS(t *testing.T) {
	cases := []struct {
		name   string
		opt    SecurityOptions
		setup  func(*http.Request)
		wantTS string
	}{
		{"tls custom age", SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour, EnablePolicy: true},
			func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, "max-age=86400; includeSubDomains; preload"},
		{"proxy default age", SecurityOptions{EnableHSTS: true, EnablePolicy: true},
			func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "HTTPS") }, "max-age=15552000; includeSubDomains; preload"},
		{"plain http", SecurityOptions{EnableHSTS: true, EnablePolicy: true},
			func(*http.Request) {}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/templates/1/", nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			securedRouter(tc.opt).ServeHTTP(w, req)

			h := w.Header()
			if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
				t.Fatalf("missing policy headers: %#v", h)
			}
			if got := h.Get("Strict-Transport-Security"); got != tc.wantTS {
				t.Fatalf("HSTS = %q; want %q", got, tc.wantTS)
			}
		})
	}
}

func Test_isHTTPS(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	viaTLS := httptest.NewRequest(http.MethodGet, "/", nil)
	viaTLS.TLS = &tls.ConnectionState{}
	viaProxy := httptest.NewRequest(http.MethodGet, "/", nil)
	viaProxy.Header.Set("X-Forwarded-Proto", "https")

	if isHTTPS(plain) || !isHTTPS(viaTLS) || !isHTTPS(viaProxy) {
		t.Fatalf("isHTTPS: plain=%v tls=%v proxy=%v", isHTTPS(plain), isHTTPS(viaTLS), isHTTPS(viaProxy))
	}
}
