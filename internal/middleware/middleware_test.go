package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"livepoll/pkg/logger"

	"github.com/gin-gonic/gin"
)

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	engine := newTestEngine()
	engine.Use(RequestIDMiddleware())
	engine.GET("/", func(c *gin.Context) {
		id, _ := c.Request.Context().Value(logger.RequestIdKey).(string)
		c.String(http.StatusOK, id)
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	headerID := w.Header().Get("X-Request-Id")
	if headerID == "" {
		t.Fatal("no X-Request-Id header on response")
	}
	if w.Body.String() != headerID {
		t.Errorf("context request id %q != header %q", w.Body.String(), headerID)
	}
}

func TestRequestIDHonorsCallerSupplied(t *testing.T) {
	engine := newTestEngine()
	engine.Use(RequestIDMiddleware())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "caller-chose-this")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got != "caller-chose-this" {
		t.Errorf("X-Request-Id = %q, want caller-chose-this", got)
	}
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	engine := newTestEngine()
	engine.Use(CORSMiddleware([]string{"https://polls.example.com"}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://polls.example.com")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://polls.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestCORSWithholdsUnknownOrigin(t *testing.T) {
	engine := newTestEngine()
	engine.Use(CORSMiddleware([]string{"https://polls.example.com"}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin reflected: %q", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	engine := newTestEngine()
	engine.Use(CORSMiddleware([]string{"*"}))
	hit := false
	engine.OPTIONS("/v1/polls", func(c *gin.Context) { hit = true })

	req := httptest.NewRequest(http.MethodOptions, "/v1/polls", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if hit {
		t.Error("preflight reached the route handler")
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("preflight missing Access-Control-Allow-Methods")
	}
}
