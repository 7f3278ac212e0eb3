//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/cloo-solutions/mmrag/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func setupPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pc, testutil.MigrationsDir(t))
	t.Cleanup(pool.Close)
	return pool
}

func createUser(ctx context.Context, t *testing.T, pool *pgxpool.Pool, email string) *domain.User {
	t.Helper()
	u := domain.NewUser(uuid.NewString(), email, domain.UserRoleUser, domain.UserStatusActive,
		time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, NewUserRepository(pool).Create(ctx, u))
	return u
}

func createSession(ctx context.Context, t *testing.T, pool *pgxpool.Pool, userID, title string, at time.Time) *domain.ChatSession {
	t.Helper()
	s := domain.NewChatSession(uuid.NewString(), userID, title, at.UTC().Truncate(time.Microsecond))
	require.NoError(t, NewSessionRepository(pool).Create(ctx, s))
	return s
}
