package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/cloo-solutions/mmrag/internal/telemetry"
)

// MaxRetries is how many attempts a repair job gets before it is marked failed.
const MaxRetries = 3

// RepairJobRepository claims and settles repair jobs.
type RepairJobRepository interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.RepairJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.RepairJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, id string) error
}

// VectorDeleter removes summary records by unit id.
type VectorDeleter interface {
	Delete(ctx context.Context, ids []string) error
}

// ContentDeleter removes full content by unit id.
type ContentDeleter interface {
	DeleteMany(ctx context.Context, ids []string) error
}

// RepairWorker deletes orphaned tier entries recorded by the indexer and by
// document deletion.
type RepairWorker struct {
	repo      RepairJobRepository
	vectors   VectorDeleter
	contents  ContentDeleter
	batchSize int
}

func NewRepairWorker(repo RepairJobRepository, vectors VectorDeleter, contents ContentDeleter, batchSize int) *RepairWorker {
	return &RepairWorker{repo: repo, vectors: vectors, contents: contents, batchSize: batchSize}
}

// ProcessJobs implements JobProcessor.
func (w *RepairWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim repair jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, "RepairWorker.ProcessJobs", telemetry.SpanAttributes{Operation: "repair"})
	defer span.End()
	span.SetData("jobs", len(jobs))

	log.Printf("processing %d repair jobs", len(jobs))
	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("repair job %s: %v", job.ID, err)
		}
	}
	return nil
}

func (w *RepairWorker) processJob(ctx context.Context, job *domain.RepairJob) error {
	var err error
	switch job.Tier {
	case domain.TierVector:
		err = w.vectors.Delete(ctx, []string{job.UnitID})
	case domain.TierDocument:
		err = w.contents.DeleteMany(ctx, []string{job.UnitID})
	default:
		return w.repo.UpdateStatus(ctx, job.ID, domain.RepairJobStatusFailed, fmt.Sprintf("unknown tier %q", job.Tier))
	}
	if err != nil {
		return w.handleFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.RepairJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to mark completed: %w", err)
	}
	log.Printf("repair job %s: removed unit %s from %s tier", job.ID, job.UnitID, job.Tier)
	return nil
}

func (w *RepairWorker) handleFailure(ctx context.Context, job *domain.RepairJob, jobErr error) error {
	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	attempt := job.Retries + 1
	if attempt >= MaxRetries {
		log.Printf("repair job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		telemetry.CaptureError(ctx, fmt.Errorf("repair job %s for unit %s (%s tier) abandoned: %w", job.ID, job.UnitID, job.Tier, jobErr))
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.RepairJobStatusFailed, fmt.Sprintf("max retries exceeded: %v", jobErr)); err != nil {
			return fmt.Errorf("failed to mark failed: %w", err)
		}
		return nil
	}

	log.Printf("repair job %s will be retried (attempt %d/%d): %v", job.ID, attempt, MaxRetries, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.RepairJobStatusPending, fmt.Sprintf("retry %d: %v", attempt, jobErr)); err != nil {
		return fmt.Errorf("failed to reset to pending: %w", err)
	}
	return nil
}
