package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/nettest/internal/api/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func statsRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/api/v1/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"replied": 3})
	})
	return r
}

func get(r http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ============================================================================
// RequireAPIKey
// ============================================================================

func TestRequireAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		sent     string
		want     int
	}{
		{"matching key", "grader", "grader", http.StatusOK},
		{"wrong key", "grader", "student", http.StatusUnauthorized},
		{"prefix of key", "grader", "grade", http.StatusUnauthorized},
		{"missing key", "grader", "", http.StatusUnauthorized},
		{"check disabled", "", "", http.StatusOK},
		{"check disabled ignores key", "", "anything", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(statsRouter(middleware.RequireAPIKey(tt.expected)), "/api/v1/stats", tt.sent)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
			} else {
				assert.JSONEq(t, `{"replied":3}`, w.Body.String())
			}
		})
	}
}

// ============================================================================
// SlogRequestLogger
// ============================================================================

func TestSlogRequestLogger_NilLogger(t *testing.T) {
	w := get(statsRouter(middleware.SlogRequestLogger(nil)), "/api/v1/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSlogRequestLogger_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := statsRouter(middleware.SlogRequestLogger(logger))
	r.GET("/api/v1/profile", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	get(r, "/api/v1/stats", "")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "path=/api/v1/stats")
	assert.Contains(t, buf.String(), "status=200")

	buf.Reset()
	get(r, "/api/v1/profile", "")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "status=503")
}

func TestSlogRequestLogger_QuietAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	get(statsRouter(middleware.SlogRequestLogger(logger)), "/api/v1/stats", "")
	assert.Empty(t, buf.String())
}

func TestMiddlewareChain_LogsRejectedRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := statsRouter(middleware.SlogRequestLogger(logger), middleware.RequireAPIKey("grader"))

	require.Equal(t, http.StatusOK, get(r, "/api/v1/stats", "grader").Code)

	buf.Reset()
	require.Equal(t, http.StatusUnauthorized, get(r, "/api/v1/stats", "").Code)
	assert.Contains(t, buf.String(), "status=401")
}
