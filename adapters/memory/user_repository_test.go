package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiverse/server/domain/entities"
	"github.com/aiverse/server/domain/repositories"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	user := entities.NewUser("Ada", "ada@example.com", "hash")
	require.NoError(t, repo.Create(ctx, user))
	require.False(t, user.ID.IsZero())

	t.Run("GetByEmailIgnoresCase", func(t *testing.T) {
		found, err := repo.GetByEmail(ctx, " ADA@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		err := repo.Create(ctx, entities.NewUser("Other", "ada@example.com", "hash"))
		assert.ErrorIs(t, err, repositories.ErrDuplicate)
		assert.Equal(t, 1, repo.Count())
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		found, err := repo.GetByID(ctx, user.ID.Hex())
		require.NoError(t, err)
		found.Name = "Mutated"

		again, err := repo.GetByID(ctx, user.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, "Ada", again.Name)
	})

	t.Run("UpdateProfile", func(t *testing.T) {
		name := "Ada Lovelace"
		prefs := entities.Preferences{DarkMode: false, UsageAlerts: true}
		require.NoError(t, repo.UpdateProfile(ctx, user.ID.Hex(), entities.ProfileUpdate{Name: &name, Preferences: &prefs}))

		found, err := repo.GetByID(ctx, user.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, name, found.Name)
		assert.Equal(t, prefs, found.Preferences)
		assert.Equal(t, "ada@example.com", found.Email)
	})

	t.Run("LoginAndGenerations", func(t *testing.T) {
		at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
		require.NoError(t, repo.RecordLogin(ctx, user.ID.Hex(), at))

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, repo.IncrementGenerations(ctx, user.ID.Hex()))
			}()
		}
		wg.Wait()

		found, err := repo.GetByID(ctx, user.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, int64(10), found.TotalGenerations)
		require.NotNil(t, found.LastLogin)
		assert.True(t, at.Equal(*found.LastLogin))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "not-an-id")
		assert.ErrorIs(t, err, repositories.ErrNotFound)

		_, err = repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, repositories.ErrNotFound)

		err = repo.IncrementGenerations(ctx, "507f1f77bcf86cd799439011")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}
