package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/include-portal/users-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUserRepository implements UserRepository using MongoDB. Updates are
// conditional on an unchanged updated_date instead of row locks.
type MongoUserRepository struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

// NewMongoUserRepository uses the "users" and "counters" collections of db
// and ensures the unique keycloak_id index.
func NewMongoUserRepository(ctx context.Context, db *mongo.Database) (*MongoUserRepository, error) {
	col := db.Collection("users", options.Collection().SetRegistry(mongoRegistry()))
	idx := mongo.IndexModel{Keys: bson.D{{Key: "keycloak_id", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("ensure keycloak_id index: %w", err)
	}
	return &MongoUserRepository{col: col, counters: db.Collection("counters")}, nil
}

// nextID allocates the integer surrogate key from a counter document.
func (r *MongoUserRepository) nextID(ctx context.Context) (uint, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx, bson.M{"_id": "users"}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("allocate user id: %w", err)
	}
	return uint(doc.Seq), nil
}

func (r *MongoUserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}
	u.ID = id
	if _, err := r.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, alreadyExists()
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *MongoUserRepository) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"keycloak_id": sub, "deleted": false}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *MongoUserRepository) UpdateBySub(ctx context.Context, sub string, mutate MutateFunc) (*models.User, error) {
	u, err := r.GetBySub(ctx, sub)
	if err != nil {
		return nil, err
	}
	prev := u.UpdatedDate
	if err := mutate(u); err != nil {
		return nil, err
	}
	filter := bson.M{"keycloak_id": sub, "deleted": false, "updated_date": prev}
	res, err := r.col.ReplaceOne(ctx, filter, u)
	if err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("update %s: %w", sub, ErrConcurrentUpdate)
	}
	return u, nil
}

func (r *MongoUserRepository) DeleteBySub(ctx context.Context, sub string, soft bool, at time.Time) error {
	filter := bson.M{"keycloak_id": sub, "deleted": false}
	var matched int64
	if soft {
		set := bson.M{"$set": bson.M{"deleted": true, "updated_date": at}}
		res, err := r.col.UpdateOne(ctx, filter, set)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		matched = res.MatchedCount
	} else {
		res, err := r.col.DeleteOne(ctx, filter)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		matched = res.DeletedCount
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.col.Database().Client().Ping(ctx, nil)
}
