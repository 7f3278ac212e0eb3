//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserAndAPIKeyRepositories(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)

	users := NewUserRepository(pool)
	keys := NewAPIKeyRepository(pool)

	user := createUser(ctx, t, pool, "ada@example.com")

	dup := domain.NewUser(uuid.NewString(), "ada@example.com", domain.UserRoleUser, domain.UserStatusActive, time.Now())
	assert.ErrorIs(t, users.Create(ctx, dup), domain.ErrUserAlreadyExists)

	byEmail, err := users.GetByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	require.NoError(t, users.UpdateStatus(ctx, user.ID, domain.UserStatusDisabled))
	got, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusDisabled, got.Status)

	_, err = users.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	key := domain.NewAPIKey(uuid.NewString(), user.ID, "laptop", "hash-1", time.Now().UTC().Truncate(time.Microsecond), nil)
	require.NoError(t, keys.Create(ctx, key))
	assert.ErrorIs(t, keys.Create(ctx, domain.NewAPIKey(uuid.NewString(), user.ID, "other", "hash-1", time.Now(), nil)), domain.ErrAPIKeyAlreadyExists)

	byHash, err := keys.GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, key.ID, byHash.ID)
	assert.Equal(t, user.ID, byHash.UserID)
	assert.Nil(t, byHash.RevokedAt)

	require.NoError(t, keys.Revoke(ctx, key.ID))
	assert.ErrorIs(t, keys.Revoke(ctx, key.ID), domain.ErrAPIKeyNotFound)

	revoked, err := keys.GetByID(ctx, key.ID)
	require.NoError(t, err)
	assert.True(t, revoked.IsRevoked())

	listed, err := keys.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
