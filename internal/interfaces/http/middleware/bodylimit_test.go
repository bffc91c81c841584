package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(maxBytes int64, handler gin.HandlerFunc) *gin.Engine {
		router := gin.New()
		router.Use(BodyLimit(maxBytes))
		router.POST("/import", handler)
		return router
	}

	okHandler := func(c *gin.Context) { c.String(http.StatusOK, "ok") }

	t.Run("small body passes", func(t *testing.T) {
		router := newRouter(1024, okHandler)

		req := httptest.NewRequest("POST", "/import", strings.NewReader("kind,rate\n"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("oversized Content-Length rejected up front", func(t *testing.T) {
		router := newRouter(100, okHandler)

		req := httptest.NewRequest("POST", "/import", strings.NewReader(strings.Repeat("x", 200)))
		req.ContentLength = 200
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "REQUEST_TOO_LARGE")
	})

	t.Run("bodyless request unaffected", func(t *testing.T) {
		router := gin.New()
		router.Use(BodyLimit(10))
		router.GET("/ping", okHandler)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("streamed body capped by MaxBytesReader", func(t *testing.T) {
		router := newRouter(50, func(c *gin.Context) {
			buf := make([]byte, 200)
			if _, err := c.Request.Body.Read(buf); err != nil {
				c.String(http.StatusBadRequest, "body too large")
				return
			}
			c.String(http.StatusOK, "ok")
		})

		// no Content-Length, forces the read-time cap
		req := httptest.NewRequest("POST", "/import", strings.NewReader(strings.Repeat("x", 100)))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
