package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/cartline/user-service/internal/domain/errs"
)

const usersCollection = "users"

// Connect establishes a pooled client and verifies connectivity within the
// given timeout. It does not retry; the bootstrap owns the retry policy.
func Connect(ctx context.Context, uri string, maxPoolSize uint64, timeout time.Duration) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(maxPoolSize).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errs.Wrap(errs.CodeStorageUnavailable, "mongo connect failed", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errs.Wrap(errs.CodeStorageUnavailable, "mongo unreachable", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique email index the data model relies on.
// Safe to call on every startup; index creation is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	})
	if err != nil {
		return errs.Wrap(errs.CodeStorageUnavailable, "ensure indexes failed", err)
	}
	return nil
}

// Ping reports whether the store can currently serve traffic. Used by the
// readiness probe with a short deadline.
func Ping(ctx context.Context, client *mongo.Client) error {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return errs.Wrap(errs.CodeStorageUnavailable, "mongo ping failed", err)
	}
	return nil
}
