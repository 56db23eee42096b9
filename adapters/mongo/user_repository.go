package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/domain/repositories"
)

const usersCollection = "users"

type UserRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new MongoDB user repository
func NewUserRepository(db *mongo.Database, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		collection: db.Collection(usersCollection),
		logger:     logger,
	}
}

// EnsureIndexes creates the unique email index
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create email index: %w", err)
	}
	return nil
}

// Create implements repositories.UserRepository
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if err := user.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repositories.ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}

	r.logger.Info("User created", zap.String("user_id", user.ID.Hex()))
	return nil
}

// GetByID implements repositories.UserRepository
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": objectID})
}

// GetByEmail implements repositories.UserRepository
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	email = entities.NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("email cannot be empty")
	}
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*entities.User, error) {
	var user entities.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// UpdateProfile implements repositories.UserRepository
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update entities.ProfileUpdate) error {
	objectID, err := parseID(id)
	if err != nil {
		return err
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Avatar != nil {
		set["avatar"] = *update.Avatar
	}
	if update.Preferences != nil {
		set["preferences"] = *update.Preferences
	}
	if update.Profile != nil {
		set["profile"] = *update.Profile
	}

	return r.updateOne(ctx, objectID, bson.M{"$set": set})
}

// RecordLogin implements repositories.UserRepository
func (r *UserRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	objectID, err := parseID(id)
	if err != nil {
		return err
	}
	return r.updateOne(ctx, objectID, bson.M{"$set": bson.M{"lastLogin": at.UTC()}})
}

// IncrementGenerations implements repositories.UserRepository
func (r *UserRepository) IncrementGenerations(ctx context.Context, id string) error {
	objectID, err := parseID(id)
	if err != nil {
		return err
	}
	return r.updateOne(ctx, objectID, bson.M{
		"$inc": bson.M{"totalGenerations": 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *UserRepository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func parseID(id string) (primitive.ObjectID, error) {
	if id == "" {
		return primitive.NilObjectID, errors.New("user ID cannot be empty")
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid user ID format: %w", err)
	}
	return objectID, nil
}
