package router

import (
	userapp "github.com/cartline/user-service/internal/application"
	"github.com/cartline/user-service/internal/container"
	"github.com/cartline/user-service/internal/infrastructure/mongodb"
	handlers "github.com/cartline/user-service/internal/interface/http"
	"github.com/cartline/user-service/internal/router/modules"
)

// InitModules initializes all application modules and registers them with the
// router registry. Called once during application startup.
func InitModules(r *Registry) {
	cfg := container.GetConfig()

	repo := mongodb.NewUserRepository(container.GetMongoDB())
	svc := userapp.NewService(repo, container.GetJWT(), container.GetLogger())
	svc.ES = container.GetES()
	svc.ESUsersIndex = cfg.ESUsersIndex
	svc.GCS = container.GetGCS()
	svc.GCSBucket = cfg.GCSBucket
	svc.Pub = container.GetRabbitPub()
	svc.AppName = cfg.AppName
	svc.MailEnabled = cfg.MailSendEnabled

	userHandler := handlers.NewUserHandler(svc, container.GetLogger())
	sessionHandler := handlers.NewSessionHandler(svc, container.GetLogger())

	r.Add(modules.NewUserModule(userHandler, container.GetJWT()))
	r.Add(modules.NewSessionModule(sessionHandler))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}

	// Probes live outside /api; orchestrators hit them directly.
	health := handlers.NewHealthHandler(container.GetMongo())
	r.Engine.GET("/health", health.Health)
	r.Engine.GET("/ready", health.Ready)
}
