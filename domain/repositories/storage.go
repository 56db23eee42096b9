package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/aiverse/server/domain/entities"
)

var (
	// ErrNotFound is returned when no document matches the lookup
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique field is already taken
	ErrDuplicate = errors.New("duplicate")
)

// UserRepository defines data access methods for users
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	UpdateProfile(ctx context.Context, id string, update entities.ProfileUpdate) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
	IncrementGenerations(ctx context.Context, id string) error
}

// TrackCache memoizes music search lookups
type TrackCache interface {
	Get(ctx context.Context, query string) (string, bool)
	Set(ctx context.Context, query, trackURL string)
}
