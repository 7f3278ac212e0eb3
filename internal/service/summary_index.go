package service

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/mmrag/internal/domain"
)

// Embedder turns text into a vector.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists summary records and answers filtered nearest-neighbour
// queries. Implemented by the pgvector repository and the Qdrant store.
type VectorStore interface {
	Upsert(ctx context.Context, rec *domain.SummaryRecord) error
	Search(ctx context.Context, embedding []float32, filter domain.SummaryFilter, k int) ([]domain.SummaryHit, error)
	Delete(ctx context.Context, ids []string) error
}

// DocumentStore holds full content units keyed by unit id.
type DocumentStore interface {
	GetMany(ctx context.Context, ids []string) (map[string]*domain.ContentUnit, error)
	SetMany(ctx context.Context, units []*domain.ContentUnit) error
	ListKeys(ctx context.Context, limit int) ([]string, error)
	DeleteMany(ctx context.Context, ids []string) error
}

// SummaryIndex is the searchable tier: it embeds summary text on write and
// query text on search.
type SummaryIndex struct {
	embedder Embedder
	store    VectorStore
}

func NewSummaryIndex(embedder Embedder, store VectorStore) *SummaryIndex {
	return &SummaryIndex{embedder: embedder, store: store}
}

// Record embeds the summary and builds the record for unit.
func (i *SummaryIndex) Record(ctx context.Context, unit *domain.ContentUnit, summary string) (*domain.SummaryRecord, error) {
	embedding, err := i.embedder.GenerateEmbedding(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("embed summary: %w", err)
	}
	return &domain.SummaryRecord{
		ID:          unit.ID,
		Embedding:   embedding,
		SummaryText: summary,
		Kind:        unit.Kind,
		OwnerUserID: unit.OwnerUserID,
		SessionID:   unit.SessionID,
	}, nil
}

func (i *SummaryIndex) Upsert(ctx context.Context, rec *domain.SummaryRecord) error {
	return i.store.Upsert(ctx, rec)
}

func (i *SummaryIndex) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return i.embedder.GenerateEmbedding(ctx, query)
}

func (i *SummaryIndex) Search(ctx context.Context, embedding []float32, filter domain.SummaryFilter, k int) ([]domain.SummaryHit, error) {
	return i.store.Search(ctx, embedding, filter, k)
}

func (i *SummaryIndex) Delete(ctx context.Context, ids []string) error {
	return i.store.Delete(ctx, ids)
}
