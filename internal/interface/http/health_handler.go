package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/cartline/user-service/internal/infrastructure/mongodb"
	"github.com/cartline/user-service/pkg/response"
)

// HealthHandler serves the orchestrator probes. Liveness never touches
// storage; readiness pings it with a short deadline.
type HealthHandler struct {
	Mongo *mongo.Client
}

func NewHealthHandler(client *mongo.Client) *HealthHandler {
	return &HealthHandler{Mongo: client}
}

// Health GET /health — liveness probe, storage-independent.
func (h *HealthHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Ready GET /ready — readiness probe; 503 while storage is unreachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.Mongo == nil {
		response.Error[any](c, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := mongodb.Ping(ctx, h.Mongo); err != nil {
		response.Error[any](c, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"ready": true}, "ready", nil)
}
