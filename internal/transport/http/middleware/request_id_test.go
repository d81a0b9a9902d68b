package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/taskvault/taskvault-api/internal/infra/logger"
)

func newRequestIDRouter(captured *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		*captured = logger.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequestIDReusesInboundHeader(t *testing.T) {
	var seen string
	r := newRequestIDRouter(&seen)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "upstream-7")
	r.ServeHTTP(w, req)

	if seen != "upstream-7" {
		t.Fatalf("expected handler to see upstream-7, got %q", seen)
	}
	if got := w.Header().Get("X-Request-ID"); got != "upstream-7" {
		t.Fatalf("expected id echoed on response, got %q", got)
	}
}

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	var seen string
	r := newRequestIDRouter(&seen)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if seen == "" {
		t.Fatal("expected a generated request id")
	}
	if got := w.Header().Get("X-Request-ID"); got != seen {
		t.Fatalf("response id %q does not match context id %q", got, seen)
	}
}

func TestRequestIDReplacesOversizedHeader(t *testing.T) {
	var seen string
	r := newRequestIDRouter(&seen)

	oversized := strings.Repeat("x", maxRequestIDLength+1)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", oversized)
	r.ServeHTTP(w, req)

	if seen == oversized || seen == "" {
		t.Fatalf("expected oversized id replaced, got %q", seen)
	}
}
