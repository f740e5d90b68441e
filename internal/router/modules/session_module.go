package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cartline/user-service/internal/container"
	handlers "github.com/cartline/user-service/internal/interface/http"
	"github.com/cartline/user-service/internal/interface/middleware"
)

// SessionModule wires the login/refresh routes. Both are public and carry
// tight per-IP limits because they are the credential-guessing surface.
type SessionModule struct {
	Handler *handlers.SessionHandler
}

func NewSessionModule(h *handlers.SessionHandler) *SessionModule {
	return &SessionModule{Handler: h}
}

func (m *SessionModule) Register(rg *gin.RouterGroup) {
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIPAndPath(), nil)
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/sessions", loginLimiter, m.Handler.Login)
	rg.POST("/sessions/refresh", refreshLimiter, m.Handler.Refresh)
}
