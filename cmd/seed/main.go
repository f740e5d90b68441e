package main

import (
	"context"
	"errors"
	"flag"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/cartline/user-service/config"
	"github.com/cartline/user-service/internal/domain/entity"
	"github.com/cartline/user-service/internal/domain/errs"
	"github.com/cartline/user-service/internal/infrastructure/mongodb"
	"github.com/cartline/user-service/pkg/helpers"
)

// seed creates an initial admin user. Admin-scoped accounts are only ever
// created out of band; the public API has no path to the admin role.
func main() {
	var (
		email    = flag.String("email", "admin@example.com", "admin email")
		password = flag.String("password", "", "admin password (required)")
		name     = flag.String("name", "Administrator", "admin display name")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)

	if *password == "" {
		logger.Fatal("-password is required")
	}
	if len(*password) < 8 {
		logger.Fatal("password must be at least 8 characters")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoMaxPoolSize, cfg.MongoConnectTimeout)
	if err != nil {
		logger.WithError(err).Fatal("mongodb unreachable")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	db := client.Database(cfg.MongoDatabase)
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		logger.WithError(err).Fatal("failed to ensure indexes")
	}

	hash, err := helpers.HashPassword(*password)
	if err != nil {
		logger.WithError(err).Fatal("password hash failed")
	}

	u := &entity.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(*email)),
		PasswordHash: hash,
		Name:         *name,
		Roles:        []string{"user", "admin"},
	}

	repo := mongodb.NewUserRepository(db)
	if err := repo.Insert(ctx, u); err != nil {
		if errors.Is(err, errs.ErrDuplicateKey) {
			logger.WithField("email", u.Email).Info("admin already exists, nothing to do")
			return
		}
		logger.WithError(err).Fatal("insert failed")
	}
	logger.WithFields(map[string]any{"id": u.ID, "email": u.Email}).Info("admin user created")
}
