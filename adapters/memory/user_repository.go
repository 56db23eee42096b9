package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/domain/repositories"
)

// UserRepository keeps accounts in process memory. Accounts are lost on restart,
// so it only backs local runs where no MongoDB is configured.
type UserRepository struct {
	mu     sync.RWMutex
	users  map[primitive.ObjectID]*entities.User
	emails map[string]primitive.ObjectID
}

var _ repositories.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:  make(map[primitive.ObjectID]*entities.User),
		emails: make(map[string]primitive.ObjectID),
	}
}

// Create implements repositories.UserRepository
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if err := user.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	email := entities.NormalizeEmail(user.Email)
	if _, exists := r.emails[email]; exists {
		return repositories.ErrDuplicate
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}

	r.users[user.ID] = clone(user)
	r.emails[email] = user.ID
	return nil
}

// GetByID implements repositories.UserRepository
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repositories.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[objectID]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	return clone(user), nil
}

// GetByEmail implements repositories.UserRepository
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.emails[entities.NormalizeEmail(email)]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	return clone(r.users[id]), nil
}

// UpdateProfile implements repositories.UserRepository
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update entities.ProfileUpdate) error {
	return r.update(id, func(user *entities.User) {
		if update.Name != nil {
			user.Name = *update.Name
		}
		if update.Avatar != nil {
			user.Avatar = *update.Avatar
		}
		if update.Preferences != nil {
			user.Preferences = *update.Preferences
		}
		if update.Profile != nil {
			user.Profile = *update.Profile
		}
		user.UpdatedAt = time.Now().UTC()
	})
}

// RecordLogin implements repositories.UserRepository
func (r *UserRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(id, func(user *entities.User) {
		at := at.UTC()
		user.LastLogin = &at
	})
}

// IncrementGenerations implements repositories.UserRepository
func (r *UserRepository) IncrementGenerations(ctx context.Context, id string) error {
	return r.update(id, func(user *entities.User) {
		user.TotalGenerations++
		user.UpdatedAt = time.Now().UTC()
	})
}

// Count returns the number of stored accounts
func (r *UserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *UserRepository) update(id string, apply func(*entities.User)) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return repositories.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[objectID]
	if !exists {
		return repositories.ErrNotFound
	}
	apply(user)
	return nil
}

func clone(user *entities.User) *entities.User {
	copied := *user
	if user.LastLogin != nil {
		at := *user.LastLogin
		copied.LastLogin = &at
	}
	return &copied
}
