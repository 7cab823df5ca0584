package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webcli/webcli/pkg/models"
)

func TestStore_ActionHandlerUserConfig(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s)
	other := createTestUser(t, s)

	t.Run("missing config reads as empty", func(t *testing.T) {
		cfg, err := s.GetActionHandlerUserConfig(ctx, "system", user)
		require.NoError(t, err)
		assert.Empty(t, cfg)
	})

	t.Run("set then get round trips", func(t *testing.T) {
		stored, err := s.SetActionHandlerUserConfig(ctx, "system", user,
			models.JSONMap{"theme": "dark", "limit": float64(10)})
		require.NoError(t, err)
		assert.Equal(t, "system", stored.ActionHandlerName)
		assert.Equal(t, user.ID, stored.UserID)

		cfg, err := s.GetActionHandlerUserConfig(ctx, "system", user)
		require.NoError(t, err)
		assert.Equal(t, "dark", cfg["theme"])
		assert.Equal(t, float64(10), cfg["limit"])
	})

	t.Run("second set replaces and stamps updated_at", func(t *testing.T) {
		stored, err := s.SetActionHandlerUserConfig(ctx, "system", user,
			models.JSONMap{"theme": "light"})
		require.NoError(t, err)
		assert.NotNil(t, stored.UpdatedAt)

		cfg, err := s.GetActionHandlerUserConfig(ctx, "system", user)
		require.NoError(t, err)
		assert.Equal(t, "light", cfg["theme"])
		assert.NotContains(t, cfg, "limit")
	})

	t.Run("configs are per user", func(t *testing.T) {
		cfg, err := s.GetActionHandlerUserConfig(ctx, "system", other)
		require.NoError(t, err)
		assert.Empty(t, cfg)
	})
}
