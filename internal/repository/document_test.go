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

func TestDocumentRepository_CreateGetListDelete(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewDocumentRepository(pool)

	user := createUser(ctx, t, pool, "docs@example.com")
	session := createSession(ctx, t, pool, user.ID, "reports", time.Now())

	unitIDs := []string{uuid.NewString(), uuid.NewString()}
	report := &domain.IndexReport{Counts: domain.IndexCounts{Texts: 1, Images: 1}, UnitIDs: unitIDs}
	scoped := domain.NewDocument(uuid.NewString(), user.ID, session.ID, "q3.pdf", 4096, report, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, scoped))

	loose := domain.NewDocument(uuid.NewString(), user.ID, "", "notes.pdf", 10, &domain.IndexReport{}, time.Now().UTC().Add(time.Second).Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, loose))

	got, err := repo.GetForUser(ctx, scoped.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.SessionID)
	assert.ElementsMatch(t, unitIDs, got.UnitIDs)
	assert.Equal(t, 1, got.ImageCount)

	gotLoose, err := repo.GetForUser(ctx, loose.ID, user.ID)
	require.NoError(t, err)
	assert.Empty(t, gotLoose.SessionID)
	assert.Empty(t, gotLoose.UnitIDs)

	all, err := repo.ListByUser(ctx, user.ID, "", nil, 10)
	require.NoError(t, err)
	require.Len(t, all.Items, 2)
	assert.Equal(t, loose.ID, all.Items[0].ID)

	inSession, err := repo.ListByUser(ctx, user.ID, session.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, inSession.Items, 1)
	assert.Equal(t, scoped.ID, inSession.Items[0].ID)

	_, err = repo.GetForUser(ctx, scoped.ID, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	require.NoError(t, repo.Delete(ctx, scoped.ID, user.ID))
	assert.ErrorIs(t, repo.Delete(ctx, scoped.ID, user.ID), domain.ErrDocumentNotFound)
}
