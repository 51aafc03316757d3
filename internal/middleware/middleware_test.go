package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xyz-asif/blindmatch/internal/pkg/logger"
)

func newLoggedRouter(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := DefaultLoggerConfig()
	cfg.EnableColors = false
	cfg.Output = logger.NewWithWriter(logger.DEBUG, buf)

	r := gin.New()
	r.Use(LoggerWithConfig(cfg))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/matches/:id/ws", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/auth/dev-login", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nope"})
	})
	return r
}

func TestLoggerRedactsAndSkips(t *testing.T) {
	var buf bytes.Buffer
	r := newLoggedRouter(&buf)

	for _, path := range []string{"/health", "/api/v1/matches/abc/ws?token=s3cret"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Empty(t, buf.String())

	body := `{"alias":"Quiet Fox","token":"s3cret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/dev-login?token=s3cret", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	require.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "POST /api/v1/auth/dev-login")
	assert.Contains(t, out, "Quiet Fox")
	assert.Contains(t, out, `response={"error":"nope"}`)
	assert.NotContains(t, out, "s3cret")
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://localhost:3000"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAnyOriginEchoes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("*"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
