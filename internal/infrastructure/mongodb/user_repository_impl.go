package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cartline/user-service/internal/domain/entity"
	"github.com/cartline/user-service/internal/domain/errs"
	"github.com/cartline/user-service/internal/domain/repository"
)

// UserRepository is the Mongo-backed persistence adapter for the users
// collection. All operations are single-document and atomic at the store.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

// notDeleted scopes a filter to live documents. Soft-deleted users are
// invisible to every read path.
func notDeleted(filter bson.M) bson.M {
	filter["deleted"] = bson.M{"$ne": true}
	return filter
}

func (r *UserRepository) Insert(ctx context.Context, u *entity.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errs.ErrDuplicateKey
		}
		return errs.Wrap(errs.CodeInternal, "insert user failed", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	return r.findOne(ctx, notDeleted(bson.M{"_id": id}))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, notDeleted(bson.M{"email": email}))
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*entity.User, error) {
	u := &entity.User{}
	if err := r.coll.FindOne(ctx, filter).Decode(u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Wrap(errs.CodeInternal, "find user failed", err)
	}
	return u, nil
}

// Update applies a partial update to the mutable profile fields and refreshes
// updated_at. Returns the post-update document.
func (r *UserRepository) Update(ctx context.Context, id string, upd repository.UserUpdate) (*entity.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.AvatarURL != nil {
		set["avatar_url"] = *upd.AvatarURL
	}

	u := &entity.User{}
	err := r.coll.FindOneAndUpdate(ctx,
		notDeleted(bson.M{"_id": id}),
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Wrap(errs.CodeInternal, "update user failed", err)
	}
	return u, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	res, err := r.coll.UpdateOne(ctx,
		notDeleted(bson.M{"_id": id}),
		bson.M{"$set": bson.M{
			"password_hash": passwordHash,
			"updated_at":    time.Now().UTC(),
		}},
	)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "update password failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SoftDelete flags the user as deleted. The document is retained so other
// services keyed on the user id keep referential integrity.
func (r *UserRepository) SoftDelete(ctx context.Context, id string) error {
	res, err := r.coll.UpdateOne(ctx,
		notDeleted(bson.M{"_id": id}),
		bson.M{"$set": bson.M{
			"deleted":    true,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "delete user failed", err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
