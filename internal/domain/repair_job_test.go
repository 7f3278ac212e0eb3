package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRepairJob(t *testing.T) {
	now := time.Now()
	job := NewRepairJob("job1", "unit1", TierVector, now)

	assert.Equal(t, RepairJobStatusPending, job.Status)
	assert.Equal(t, int32(0), job.Retries)
	assert.Nil(t, job.ProcessedAt)
	require.NoError(t, ValidateRepairJob(job))
}

func TestValidateRepairJob(t *testing.T) {
	job := NewRepairJob("job1", "unit1", "cache", time.Now())
	assert.ErrorContains(t, ValidateRepairJob(job), "Tier")

	job.Tier = TierDocument
	job.Status = "stuck"
	assert.ErrorContains(t, ValidateRepairJob(job), "Status")

	job.Status = RepairJobStatusFailed
	job.Retries = -1
	assert.ErrorContains(t, ValidateRepairJob(job), "Retries")
}

func TestDomainErrorIs(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("answer: %w", ErrGenerationFailed.Wrap(cause))

	assert.True(t, errors.Is(err, ErrGenerationFailed))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrStorageOperationFail))
	assert.Contains(t, err.Error(), "[UPSTREAM_FAILURE]")
}
