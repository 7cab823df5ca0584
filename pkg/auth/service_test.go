package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webcli/webcli/pkg/store"
	testutil "github.com/webcli/webcli/test/util"
)

func setupTestService(t *testing.T) (*Service, *store.Store) {
	db := testutil.SetupTestDatabase(t)
	st := store.New(db)
	return NewService(st, newTestTokenService(t, time.Hour)), st
}

func TestService_Login(t *testing.T) {
	svc, st := setupTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)

	t.Run("valid credentials produce a usable token", func(t *testing.T) {
		token, err := svc.Login(ctx, "alice@example.com", "s3cret")
		require.NoError(t, err)

		got, err := svc.UserFromToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, user.Email, got.Email)
	})

	t.Run("wrong password and unknown email fail alike", func(t *testing.T) {
		_, err := svc.Login(ctx, "alice@example.com", "nope")
		assert.ErrorIs(t, err, ErrWrongPassword)

		_, err = svc.Login(ctx, "nobody@example.com", "s3cret")
		assert.ErrorIs(t, err, ErrWrongPassword)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		_, err := svc.UserFromToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token for a vanished user reports not found", func(t *testing.T) {
		doomed, err := svc.CreateUser(ctx, "gone@example.com", "s3cret")
		require.NoError(t, err)
		token, err := svc.Login(ctx, "gone@example.com", "s3cret")
		require.NoError(t, err)

		_, err = st.DB().ExecContext(ctx, "DELETE FROM users WHERE id = $1", doomed.ID)
		require.NoError(t, err)

		_, err = svc.UserFromToken(ctx, token)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}
