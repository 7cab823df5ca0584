package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	t.Run("creates active user with password version 1", func(t *testing.T) {
		user, err := s.CreateUser(ctx, "alice@example.com", "hash-a")
		require.NoError(t, err)
		assert.True(t, user.IsActive)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, 1, user.PasswordVersion)
		assert.Equal(t, "hash-a", user.PasswordHash)

		got, err := s.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, got.Email)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		_, err := s.CreateUser(ctx, "bob@example.com", "hash-b")
		require.NoError(t, err)

		_, err = s.CreateUser(ctx, "bob@example.com", "hash-b2")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateEmail)

		var dup *DuplicateEmailError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "bob@example.com", dup.Email)
	})
}

func TestStore_GetUserByEmail(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "carol@example.com", "hash-c")
	require.NoError(t, err)

	got, err := s.GetUserByEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetActionUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, s)
	action, err := s.CreateAction(ctx, "system", nil, "title", "raw", user)
	require.NoError(t, err)

	got, err := s.GetActionUser(ctx, action.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = s.GetActionUser(ctx, action.ID+1000)
	assert.ErrorIs(t, err, ErrNotFound)
}
