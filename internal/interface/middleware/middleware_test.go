package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartline/user-service/pkg/helpers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDGenerated(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get("X-Request-ID"))
}

func TestRequestIDPassthrough(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "upstream-id", w.Header().Get("X-Request-ID"))
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRealIPPrecedence(t *testing.T) {
	r := gin.New()
	r.Use(RealIP())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("real_ip"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("CF-Connecting-IP", "203.0.113.7")
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "203.0.113.7", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "198.51.100.1", w.Body.String())
}

func TestTimeoutSetsDeadline(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(50 * time.Millisecond))
	r.GET("/", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerToken(t *testing.T) {
	mk := func(header string) string {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			c.Request.Header.Set("Authorization", header)
		}
		return bearerToken(c)
	}

	assert.Equal(t, "abc.def.ghi", mk("Bearer abc.def.ghi"))
	assert.Equal(t, "abc.def.ghi", mk("bearer abc.def.ghi"))
	assert.Equal(t, "", mk(""))
	assert.Equal(t, "", mk("Basic dXNlcjpwYXNz"))
	assert.Equal(t, "", mk("Bearer"))
}

func TestAuthAndRoleGuards(t *testing.T) {
	jwt := helpers.NewJWTManager("acc", "ref", time.Hour, time.Hour)
	r := gin.New()
	grp := r.Group("/", Auth(jwt))
	grp.GET("/users/:id", RequireSelfOrAdmin("id"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	grp.GET("/admin", RequireRole(AdminRole), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	serve := func(path, token string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	userTok, _, err := jwt.GenerateAccessToken("u1", []string{"user"})
	require.NoError(t, err)
	adminTok, _, err := jwt.GenerateAccessToken("a1", []string{"user", "admin"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, serve("/users/u1", ""))
	assert.Equal(t, http.StatusOK, serve("/users/u1", userTok))
	assert.Equal(t, http.StatusForbidden, serve("/users/u2", userTok))
	assert.Equal(t, http.StatusOK, serve("/users/u2", adminTok))
	assert.Equal(t, http.StatusForbidden, serve("/admin", userTok))
	assert.Equal(t, http.StatusOK, serve("/admin", adminTok))
}
