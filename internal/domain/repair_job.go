package domain

import (
	"fmt"
	"time"
)

// RepairJobStatus represents the status of a repair job
type RepairJobStatus string

const (
	RepairJobStatusPending    RepairJobStatus = "pending"
	RepairJobStatusProcessing RepairJobStatus = "processing"
	RepairJobStatusCompleted  RepairJobStatus = "completed"
	RepairJobStatusFailed     RepairJobStatus = "failed"
)

// Tier names one half of the dual-tier index.
type Tier string

const (
	TierVector   Tier = "vector"
	TierDocument Tier = "document"
)

// RepairJob asks the worker to delete a unit's entry from one tier, either
// because the other half was never written or because the unit was deleted
// and that tier's delete failed.
type RepairJob struct {
	ID          string
	UnitID      string
	Tier        Tier
	Status      RepairJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewRepairJob creates a pending RepairJob
func NewRepairJob(id, unitID string, tier Tier, createdAt time.Time) *RepairJob {
	return &RepairJob{
		ID:        id,
		UnitID:    unitID,
		Tier:      tier,
		Status:    RepairJobStatusPending,
		CreatedAt: createdAt,
	}
}

// ValidateRepairJob validates a RepairJob instance
func ValidateRepairJob(j *RepairJob) error {
	if j == nil {
		return fmt.Errorf("repair job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("repair job ID is required")
	}

	if j.UnitID == "" {
		return fmt.Errorf("repair job UnitID is required")
	}

	if j.Tier != TierVector && j.Tier != TierDocument {
		return fmt.Errorf("repair job Tier is invalid: %s", j.Tier)
	}

	if !isValidRepairJobStatus(j.Status) {
		return fmt.Errorf("repair job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("repair job Retries cannot be negative")
	}

	return nil
}

func isValidRepairJobStatus(s RepairJobStatus) bool {
	switch s {
	case RepairJobStatusPending, RepairJobStatusProcessing,
		RepairJobStatusCompleted, RepairJobStatusFailed:
		return true
	}
	return false
}
