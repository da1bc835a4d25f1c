package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"PPChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Middleware(opts), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func TestMiddleware(t *testing.T) {
	jwtOpts := security.DefaultOptions([]byte("k"))
	tok, _, err := security.Generate(jwtOpts, "u42", "bob")
	require.NoError(t, err)
	r := newEngine(Options{JWT: jwtOpts})

	t.Run("bearer", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u42", w.Body.String())
	})
	t.Run("query", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+tok, nil))
		assert.Equal(t, "u42", w.Body.String())
	})
	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
	t.Run("forged", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+tok+"x", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestOptional(t *testing.T) {
	r := newEngine(Options{JWT: security.DefaultOptions([]byte("k")), Optional: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}
