package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/domain/repositories"
)

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// TokenIssuer signs session tokens for users
type TokenIssuer interface {
	GenerateUserToken(user *entities.User) (string, error)
}

// AccountService handles registration, login and profile management
type AccountService struct {
	users  repositories.UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	logger *zap.Logger
	now    func() time.Time
}

// NewAccountService creates a new account service
func NewAccountService(
	users repositories.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// Register creates a new account
func (s *AccountService) Register(ctx context.Context, name, email, password string) (*entities.User, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrInvalidInput)
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrUserExists
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := entities.NewUser(name, email, hash)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("userID", user.ID.Hex()))
	return user, nil
}

// Login verifies the credentials and returns the user with a signed session token
func (s *AccountService) Login(ctx context.Context, email, password string) (*entities.User, string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, "", fmt.Errorf("%w: missing email or password", ErrInvalidInput)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.RecordLogin(ctx, user.ID.Hex(), now); err != nil {
		s.logger.Warn("Failed to record login", zap.String("userID", user.ID.Hex()), zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	token, err := s.tokens.GenerateUserToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return user, token, nil
}

// Profile loads the account of userID
func (s *AccountService) Profile(ctx context.Context, userID string) (*entities.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies the editable fields of update
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, update entities.ProfileUpdate) error {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		update.Name = &name
	}

	if err := s.users.UpdateProfile(ctx, userID, update); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}
