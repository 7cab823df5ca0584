package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webcli/webcli/pkg/models"
)

func strPtr(s string) *string { return &s }

func TestStore_CreateAction(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s)

	action, err := s.CreateAction(ctx, "system", models.JSONMap{"type": "html"}, "my title", "%html%\n<b>x</b>", user)
	require.NoError(t, err)
	assert.Equal(t, user.ID, action.UserID)
	assert.Equal(t, "system", action.HandlerName)
	assert.False(t, action.IsCompleted)
	assert.Nil(t, action.CompletedAt)
	assert.Equal(t, "html", action.Request["type"])
	assert.Empty(t, action.ResponseChunks)
}

func TestStore_GetAction(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s)
	other := createTestUser(t, s)

	action, err := s.CreateAction(ctx, "system", nil, "t", "r", user)
	require.NoError(t, err)

	t.Run("owner reads the action", func(t *testing.T) {
		got, err := s.GetAction(ctx, action.ID, user)
		require.NoError(t, err)
		assert.Equal(t, action.ID, got.ID)
	})

	t.Run("foreign action is reported as missing", func(t *testing.T) {
		_, err := s.GetAction(ctx, action.ID, other)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)

		var nf *NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "Action", nf.ObjectType)
		assert.Equal(t, action.ID, nf.ObjectID)
	})
}

func TestStore_CompleteAction(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s)

	action, err := s.CreateAction(ctx, "system", nil, "t", "r", user)
	require.NoError(t, err)

	completed, err := s.CompleteAction(ctx, action.ID, user)
	require.NoError(t, err)
	assert.True(t, completed.IsCompleted)
	require.NotNil(t, completed.CompletedAt)

	t.Run("completion is one way", func(t *testing.T) {
		_, err := s.CompleteAction(ctx, action.ID, user)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("append after completion fails", func(t *testing.T) {
		_, err := s.AppendResponseToAction(ctx, action.ID, "text/plain", strPtr("late"), nil, user)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_AppendResponseToAction(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s)
	other := createTestUser(t, s)

	action, err := s.CreateAction(ctx, "system", nil, "t", "r", user)
	require.NoError(t, err)

	t.Run("chunk order is dense from one", func(t *testing.T) {
		for i, text := range []string{"first", "second", "third"} {
			chunk, err := s.AppendResponseToAction(ctx, action.ID, "text/plain", strPtr(text), nil, user)
			require.NoError(t, err)
			assert.Equal(t, i+1, chunk.Order)
			assert.Equal(t, action.ID, chunk.ActionID)
		}

		got, err := s.GetAction(ctx, action.ID, user)
		require.NoError(t, err)
		require.Len(t, got.ResponseChunks, 3)
		for i, chunk := range got.ResponseChunks {
			assert.Equal(t, i+1, chunk.Order)
		}
		assert.Equal(t, "first", *got.ResponseChunks[0].TextContent)
		assert.Equal(t, "third", *got.ResponseChunks[2].TextContent)
	})

	t.Run("binary chunk stores bytes", func(t *testing.T) {
		chunk, err := s.AppendResponseToAction(ctx, action.ID, "image/png", nil, []byte{0x89, 0x50, 0x4e, 0x47}, user)
		require.NoError(t, err)
		assert.Nil(t, chunk.TextContent)
		assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, chunk.BinaryContent)
	})

	t.Run("foreign action is reported as missing", func(t *testing.T) {
		_, err := s.AppendResponseToAction(ctx, action.ID, "text/plain", strPtr("x"), nil, other)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_PatchAction(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s)

	action, err := s.CreateAction(ctx, "system", nil, "old", "r", user)
	require.NoError(t, err)

	patched, err := s.PatchAction(ctx, action.ID, user, strPtr("new"))
	require.NoError(t, err)
	assert.Equal(t, "new", patched.Title)

	unchanged, err := s.PatchAction(ctx, action.ID, user, nil)
	require.NoError(t, err)
	assert.Equal(t, "new", unchanged.Title)
}
