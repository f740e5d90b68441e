package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cartline/user-service/pkg/helpers"
	"github.com/cartline/user-service/pkg/response"
)

const (
	CtxUserIDKey = "userID"
	CtxRolesKey  = "userRoles"

	AdminRole = "admin"
)

// Auth validates the bearer access token and injects user id and roles into
// the context. No session lookup happens here; tokens are self-contained so
// every replica authenticates identically.
func Auth(jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.AbortError(c, http.StatusUnauthorized, "missing access token", nil)
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.AbortError(c, http.StatusUnauthorized, "invalid access token", nil)
			return
		}
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxRolesKey, claims.Roles)
		c.Next()
	}
}

// RequireSelfOrAdmin aborts unless the authenticated user is the :id owner or
// carries the admin role. Must run after Auth.
func RequireSelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(CtxUserIDKey)
		if uid == c.Param(param) || HasRole(c, AdminRole) {
			c.Next()
			return
		}
		response.AbortError(c, http.StatusForbidden, "forbidden", nil)
	}
}

// RequireRole aborts unless the authenticated user carries the role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if HasRole(c, role) {
			c.Next()
			return
		}
		response.AbortError(c, http.StatusForbidden, "forbidden", nil)
	}
}

// HasRole reports whether the authenticated request carries the role.
func HasRole(c *gin.Context, role string) bool {
	v, ok := c.Get(CtxRolesKey)
	if !ok {
		return false
	}
	roles, ok := v.([]string)
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
