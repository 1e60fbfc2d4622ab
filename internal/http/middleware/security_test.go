package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecurity(opt SecurityOptions, method, path string, prep func(*http.Request), pre gin.HandlerFunc) http.Header {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.Any("/*path", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if prep != nil {
		prep(req)
	}
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serveSecurity(SecurityOptions{}, http.MethodGet, "/api/v1/recipes", nil, nil)

	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	if h.Get("Content-Security-Policy") != apiCSP {
		t.Fatalf("expected API CSP, got %q", h.Get("Content-Security-Policy"))
	}
	if h.Get("Permissions-Policy") != "" || h.Get("X-Permitted-Cross-Domain-Policies") != "" {
		t.Fatalf("unexpected policy headers: %#v", h)
	}
	if h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("unexpected HSTS: %#v", h)
	}
	if h.Get("Access-Control-Expose-Headers") != "" {
		t.Fatalf("nothing to expose without a request id: %#v", h)
	}
}

func TestSecurityHeaders_CachePolicyByMethod(t *testing.T) {
	cases := map[string]string{
		http.MethodGet:    "no-cache",
		http.MethodHead:   "no-cache",
		http.MethodPost:   "no-store",
		http.MethodPut:    "no-store",
		http.MethodDelete: "no-store",
	}
	for method, want := range cases {
		h := serveSecurity(SecurityOptions{}, method, "/api/v1/recipes/1", nil, nil)
		if got := h.Get("Cache-Control"); got != want {
			t.Fatalf("%s Cache-Control = %q, want %q", method, got, want)
		}
	}
}

func TestSecurityHeaders_DocsPrefixRelaxesCSP(t *testing.T) {
	opt := SecurityOptions{DocsPrefix: "/swagger/"}

	if got := serveSecurity(opt, http.MethodGet, "/swagger/index.html", nil, nil).Get("Content-Security-Policy"); got != docsCSP {
		t.Fatalf("docs CSP = %q", got)
	}
	if got := serveSecurity(opt, http.MethodGet, "/api/v1/recipes", nil, nil).Get("Content-Security-Policy"); got != apiCSP {
		t.Fatalf("api CSP = %q", got)
	}
}

func TestSecurityHeaders_ExposeRequestID(t *testing.T) {
	cases := []struct {
		name     string
		existing string
		want     string
	}{
		{"none yet", "", "X-Request-ID"},
		{"append", "Location, ETag", "Location, ETag, X-Request-ID"},
		{"already listed", "x-request-id, Location", "x-request-id, Location"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pre := func(c *gin.Context) {
				c.Header("X-Request-ID", "rid-1")
				if tc.existing != "" {
					c.Header("Access-Control-Expose-Headers", tc.existing)
				}
				c.Next()
			}
			h := serveSecurity(SecurityOptions{}, http.MethodGet, "/ok", nil, pre)
			if got := h.Get("Access-Control-Expose-Headers"); got != tc.want {
				t.Fatalf("expose = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSecurityHeaders_PolicyAndHSTS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour, EnablePolicy: true}

	h := serveSecurity(opt, http.MethodGet, "/ok", func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, nil)
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("missing policy headers: %#v", h)
	}
	if want := "max-age=86400; includeSubDomains; preload"; h.Get("Strict-Transport-Security") != want {
		t.Fatalf("HSTS = %q, want %q", h.Get("Strict-Transport-Security"), want)
	}

	// Plain HTTP never gets HSTS.
	h = serveSecurity(opt, http.MethodGet, "/ok", nil, nil)
	if h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS on plain http: %q", h.Get("Strict-Transport-Security"))
	}

	// Default max-age when unset.
	opt.HSTSMaxAge = 0
	h = serveSecurity(opt, http.MethodGet, "/ok", func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") }, nil)
	if want := "max-age=15552000; includeSubDomains; preload"; h.Get("Strict-Transport-Security") != want {
		t.Fatalf("default HSTS = %q", h.Get("Strict-Transport-Security"))
	}
}

func Test_isHTTPS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTTPS(req) {
		t.Fatalf("plain HTTP should not be https")
	}
	req.TLS = &tls.ConnectionState{}
	if !isHTTPS(req) {
		t.Fatalf("TLS request should be https")
	}
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.Header.Set("X-Forwarded-Proto", "HTTPS")
	if !isHTTPS(req2) {
		t.Fatalf("X-Forwarded-Proto=https should be https")
	}
}
