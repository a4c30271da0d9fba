package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"attendconsole/internal/api/ws"
	"attendconsole/internal/auth"
	"attendconsole/internal/httpmiddleware"
	"attendconsole/internal/inflight"
)

func newTestRouter() (*gin.Engine, *auth.Tokens) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokens("console", "key", time.Minute, time.Hour)
	r := NewRouter(RouterConfig{
		Tokens:  tokens,
		Guard:   inflight.NewMemory(),
		Hub:     ws.NewHub(nil),
		Limiter: httpmiddleware.NewTokenBucket(100, 100),
	})
	return r, tokens
}

func TestPublicEndpoints(t *testing.T) {
	r, _ := newTestRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "console_http_request_duration_seconds")
}

func TestProtectedEndpointsNeedAdminToken(t *testing.T) {
	r, tokens := newTestRouter()
	viewer, _ := tokens.Issue("bob", "viewer")

	for _, target := range []string{"/v1/stats", "/v1/attendance", "/v1/export/xlsx", "/v1/recognition/links", "/v1/ws"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)

		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Authorization", "Bearer "+viewer.AccessToken)
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code, target)
	}
}

func TestLoginDisabledWithoutHash(t *testing.T) {
	r, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"username":"admin","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodOptions, "/v1/stats", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
