package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/cloo-solutions/mmrag/internal/pagination"
)

type SessionRepository interface {
	Create(ctx context.Context, s *domain.ChatSession) error
	GetForUser(ctx context.Context, id, userID string) (*domain.ChatSession, error)
	ListByUser(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.ChatSession], error)
	Touch(ctx context.Context, id string, added int, at time.Time) error
	Delete(ctx context.Context, id, userID string) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *domain.ChatMessage) error
	ListRecent(ctx context.Context, sessionID string, limit int) ([]*domain.ChatMessage, error)
}

type DocumentRepository interface {
	Create(ctx context.Context, d *domain.Document) error
	GetForUser(ctx context.Context, id, userID string) (*domain.Document, error)
	ListByUser(ctx context.Context, userID, sessionID string, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Document], error)
	Delete(ctx context.Context, id, userID string) error
}

type RepairJobRepository interface {
	Create(ctx context.Context, job *domain.RepairJob) error
	GetByID(ctx context.Context, id string) (*domain.RepairJob, error)
	ClaimPending(ctx context.Context, limit int) ([]*domain.RepairJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.RepairJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, id string) error
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Sessions() SessionRepository
	Messages() MessageRepository
	Documents() DocumentRepository
	RepairJobs() RepairJobRepository
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
