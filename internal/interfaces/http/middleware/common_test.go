package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCORSWithConfig(t *testing.T) {
	newRouter := func(cfg CORSConfig) *gin.Engine {
		router := gin.New()
		router.Use(CORSWithConfig(cfg))
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})
		return router
	}

	t.Run("empty whitelist sets no headers", func(t *testing.T) {
		router := newRouter(DefaultCORSConfig())
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "http://elsewhere.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("whitelisted origin is echoed with credentials", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = []string{"http://pos.clinic.local"}
		cfg.AllowCredentials = true
		router := newRouter(cfg)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "http://pos.clinic.local")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "http://pos.clinic.local", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("wildcard never allows credentials", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = []string{"*"}
		cfg.AllowCredentials = true
		router := newRouter(cfg)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "http://anything.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight short-circuits with 204", func(t *testing.T) {
		router := newRouter(DefaultCORSConfig())
		req := httptest.NewRequest(http.MethodOptions, "/test", nil)
		req.Header.Set("Origin", "http://elsewhere.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	t.Run("generates a uuid when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("reuses the caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "till-7-0042")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "till-7-0042", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "till-7-0042", w.Body.String())
	})

	t.Run("truncates oversized ids", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("a", 300))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Len(t, w.Header().Get(RequestIDHeader), MaxRequestIDLength)
	})
}
