package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webcli/webcli/pkg/models"
	testutil "github.com/webcli/webcli/test/util"
)

// setupTestStore returns a Store backed by a fresh per-test schema.
func setupTestStore(t *testing.T) *Store {
	db := testutil.SetupTestDatabase(t)
	return New(db)
}

var testUserSeq int

// createTestUser inserts a user with a unique email.
func createTestUser(t *testing.T, s *Store) *models.User {
	testUserSeq++
	email := fmt.Sprintf("user%d@example.com", testUserSeq)
	user, err := s.CreateUser(context.Background(), email, "hash")
	require.NoError(t, err)
	return user
}
