package repository

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// SummaryVectorRepository is the summary tier backed by pgvector.
type SummaryVectorRepository struct {
	db dbtx
}

func NewSummaryVectorRepository(pool *pgxpool.Pool) *SummaryVectorRepository {
	return &SummaryVectorRepository{db: pool}
}

func (r *SummaryVectorRepository) Upsert(ctx context.Context, rec *domain.SummaryRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO summary_vectors (id, kind, owner_user_id, session_id, summary, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET kind = EXCLUDED.kind,
		     owner_user_id = EXCLUDED.owner_user_id,
		     session_id = EXCLUDED.session_id,
		     summary = EXCLUDED.summary,
		     embedding = EXCLUDED.embedding`,
		rec.ID, rec.Kind, rec.OwnerUserID, rec.SessionID, rec.SummaryText, pgvector.NewVector(rec.Embedding),
	)
	if err != nil {
		return fmt.Errorf("upsert summary %s: %w", rec.ID, err)
	}
	return nil
}

// Search returns the k nearest summaries by cosine distance among records
// matching every clause of filter. The session clause applies only when the
// filter names a session.
func (r *SummaryVectorRepository) Search(ctx context.Context, embedding []float32, filter domain.SummaryFilter, k int) ([]domain.SummaryHit, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, kind, summary, 1 - (embedding <=> $1) AS score
		 FROM summary_vectors
		 WHERE kind = $2 AND owner_user_id = $3 AND ($4::text = '' OR session_id = $4)
		 ORDER BY embedding <=> $1
		 LIMIT $5`,
		pgvector.NewVector(embedding), filter.Kind, filter.Scope.OwnerUserID, filter.Scope.SessionID, k,
	)
	if err != nil {
		return nil, fmt.Errorf("search summaries: %w", err)
	}
	defer rows.Close()

	var hits []domain.SummaryHit
	for rows.Next() {
		var h domain.SummaryHit
		var score float64
		if err := rows.Scan(&h.ID, &h.Kind, &h.SummaryText, &score); err != nil {
			return nil, err
		}
		h.Score = float32(score)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (r *SummaryVectorRepository) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM summary_vectors WHERE id = ANY($1::text[]::uuid[])`, ids)
	if err != nil {
		return fmt.Errorf("delete summaries: %w", err)
	}
	return nil
}
