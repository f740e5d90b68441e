package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/cartline/user-service/config"
	"github.com/cartline/user-service/internal/container"
	"github.com/cartline/user-service/internal/infrastructure/mongodb"
	"github.com/cartline/user-service/internal/interface/middleware"
	"github.com/cartline/user-service/internal/router"
	"github.com/cartline/user-service/pkg/helpers"
	"github.com/cartline/user-service/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	// Storage is mandatory; unreachable storage after the retry budget is a
	// fatal startup failure with a non-zero exit.
	client, err := connectMongo(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("mongodb unreachable, giving up")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	db := client.Database(cfg.MongoDatabase)
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		logger.WithError(err).Fatal("failed to ensure indexes")
	}

	// Redis backs rate limiting only; the service degrades to fail-open
	// without it.
	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()

	jwtManager := helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)

	// Optional collaborators; nil when unconfigured or unreachable.
	var pub *helpers.RabbitPublisher
	if cfg.MailSendEnabled {
		pub, err = helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			logger.WithError(err).Warn("rabbitmq unavailable, email notifications disabled")
		} else {
			defer pub.Close()
		}
	}
	es, err := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		logger.WithError(err).Warn("elasticsearch client init failed, search disabled")
		es = nil
	}
	var gcsClient *storage.Client
	if cfg.GCSBucket != "" {
		gcsClient, err = helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			logger.WithError(err).Warn("gcs client init failed, avatar upload disabled")
			gcsClient = nil
		} else {
			defer func() { _ = gcsClient.Close() }()
		}
	}

	// Provide infra singletons to container for registry auto-wiring
	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetMongo(client)
	container.SetMongoDB(db)
	container.SetRedis(rdb)
	container.SetJWT(jwtManager)
	container.SetRabbitPub(pub)
	container.SetES(es)
	container.SetGCS(gcsClient)

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RealIP())
	r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) > 0 {
		r.Use(cors.New(corsCfg))
	}
	if cfg.HTTPLogEnabled || cfg.Env == "development" {
		r.Use(gin.Logger())
	}

	// Registry: auto-register modules using container
	reg := router.NewRegistry(r)
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s", err)
		}
	}()

	// Graceful shutdown: stop accepting, drain in-flight up to the grace
	// period, then release the storage handle.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited properly")
}

// connectMongo dials the document store with a bounded retry/backoff budget.
// Each attempt fails fast; the delay doubles between attempts.
func connectMongo(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*mongo.Client, error) {
	var lastErr error
	delay := cfg.MongoRetryBaseDelay
	for attempt := 1; attempt <= cfg.MongoConnectRetries; attempt++ {
		client, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoMaxPoolSize, cfg.MongoConnectTimeout)
		if err == nil {
			logger.WithField("attempt", attempt).Info("connected to mongodb")
			return client, nil
		}
		lastErr = err
		logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"retries": cfg.MongoConnectRetries,
			"backoff": delay.String(),
		}).Warn("mongodb connect failed")
		if attempt < cfg.MongoConnectRetries {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return nil, lastErr
}
