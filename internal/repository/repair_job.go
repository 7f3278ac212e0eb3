package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRepairJobNotFound = errors.New("repair job not found")

// DefaultClaimBatch caps jobs claimed per poll.
const DefaultClaimBatch = 100

type RepairJobRepository struct {
	db dbtx
}

func NewRepairJobRepository(pool *pgxpool.Pool) *RepairJobRepository {
	return &RepairJobRepository{db: pool}
}

func NewRepairJobRepositoryWithTx(tx pgx.Tx) *RepairJobRepository {
	return &RepairJobRepository{db: tx}
}

const repairJobColumns = `id, unit_id, tier, status, retries, error, created_at, processed_at`

func scanRepairJob(row pgx.Row) (*domain.RepairJob, error) {
	var job domain.RepairJob
	var errMsg pgtype.Text
	if err := row.Scan(&job.ID, &job.UnitID, &job.Tier, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}

func (r *RepairJobRepository) Create(ctx context.Context, job *domain.RepairJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO repair_jobs (`+repairJobColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.UnitID, job.Tier, job.Status, job.Retries, nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *RepairJobRepository) GetByID(ctx context.Context, id string) (*domain.RepairJob, error) {
	job, err := scanRepairJob(r.db.QueryRow(ctx, `SELECT `+repairJobColumns+` FROM repair_jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRepairJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimPending moves up to limit pending jobs to processing. Concurrent
// workers never claim the same row.
func (r *RepairJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.RepairJob, error) {
	if limit <= 0 {
		limit = DefaultClaimBatch
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM repair_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE repair_jobs j
		 SET status = $3, error = NULL, processed_at = NULL
		 FROM cte
		 WHERE j.id = cte.id
		 RETURNING j.id, j.unit_id, j.tier, j.status, j.retries, j.error, j.created_at, j.processed_at`,
		domain.RepairJobStatusPending, limit, domain.RepairJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.RepairJob
	for rows.Next() {
		job, err := scanRepairJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *RepairJobRepository) UpdateStatus(ctx context.Context, id string, status domain.RepairJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.RepairJobStatusCompleted || status == domain.RepairJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE repair_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrRepairJobNotFound
	}
	return nil
}

func (r *RepairJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE repair_jobs SET retries = retries + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrRepairJobNotFound
	}
	return nil
}
