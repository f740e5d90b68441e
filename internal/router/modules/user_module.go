package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cartline/user-service/internal/container"
	handlers "github.com/cartline/user-service/internal/interface/http"
	"github.com/cartline/user-service/internal/interface/middleware"
	"github.com/cartline/user-service/pkg/helpers"
)

// UserModule wires account routes.
// Public: POST /api/users (register)
// Protected: GET/PATCH/DELETE /api/users/:id, PUT /api/users/:id/password,
// POST /api/users/:id/avatar, GET /api/users/search (admin)
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	registerLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/users", registerLimiter, m.Handler.Register)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT))
	auth.Use(middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.GET("/users/search", middleware.RequireRole(middleware.AdminRole), m.Handler.Search)

		owned := auth.Group("/")
		owned.Use(middleware.RequireSelfOrAdmin("id"))
		{
			owned.GET("/users/:id", m.Handler.GetProfile)
			owned.PATCH("/users/:id", m.Handler.UpdateProfile)
			owned.DELETE("/users/:id", m.Handler.Deactivate)
			owned.PUT("/users/:id/password", m.Handler.ChangePassword)
			owned.POST("/users/:id/avatar", m.Handler.UploadAvatar)
		}
	}
}
