package storage

import (
	"context"
	"fmt"
	"slices"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/qdrant/go-client/qdrant"
)

// DefaultQdrantCollection holds summary vectors when none is configured.
const DefaultQdrantCollection = "mmrag_summaries"

// Payload keys stored alongside each summary vector.
const (
	payloadUnitID  = "unit_id"
	payloadKind    = "kind"
	payloadOwner   = "owner_user_id"
	payloadSession = "session_id"
	payloadSummary = "summary"
)

// QdrantConfig holds connection settings for QdrantVectorStore
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions int
}

// QdrantVectorStore is the summary tier backed by a Qdrant collection.
type QdrantVectorStore struct {
	client     *qdrant.Client
	collection string
	dimensions uint64
}

// NewQdrantVectorStore connects and makes sure the collection and its payload
// indexes exist.
func NewQdrantVectorStore(ctx context.Context, cfg QdrantConfig) (*QdrantVectorStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = DefaultQdrantCollection
	}
	store := &QdrantVectorStore{
		client:     client,
		collection: collection,
		dimensions: uint64(cfg.Dimensions),
	}
	if err := store.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return store, nil
}

func (s *QdrantVectorStore) ensureCollection(ctx context.Context) error {
	existing, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	if slices.Contains(existing, s.collection) {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}

	for _, field := range []string{payloadKind, payloadOwner, payloadSession} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to index payload field %s: %w", field, err)
		}
	}
	return nil
}

func (s *QdrantVectorStore) Close() error {
	return s.client.Close()
}

func (s *QdrantVectorStore) Upsert(ctx context.Context, rec *domain.SummaryRecord) error {
	payload := map[string]any{
		payloadUnitID:  rec.ID,
		payloadKind:    string(rec.Kind),
		payloadOwner:   rec.OwnerUserID,
		payloadSummary: rec.SummaryText,
	}
	if rec.SessionID != "" {
		payload[payloadSession] = rec.SessionID
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert summary %s: %w", rec.ID, err)
	}
	return nil
}

func (s *QdrantVectorStore) Search(ctx context.Context, embedding []float32, filter domain.SummaryFilter, k int) ([]domain.SummaryHit, error) {
	if k <= 0 {
		return nil, nil
	}
	limit := uint64(k)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		Filter:         buildQdrantFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	hits := make([]domain.SummaryHit, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		id := stringValue(payload[payloadUnitID])
		if id == "" {
			id = p.GetId().GetUuid()
		}
		hits = append(hits, domain.SummaryHit{
			ID:          id,
			Kind:        domain.Kind(stringValue(payload[payloadKind])),
			SummaryText: stringValue(payload[payloadSummary]),
			Score:       p.GetScore(),
		})
	}
	return hits, nil
}

func (s *QdrantVectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}
	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete summaries: %w", err)
	}
	return nil
}

func buildQdrantFilter(f domain.SummaryFilter) *qdrant.Filter {
	must := []*qdrant.Condition{
		qdrant.NewMatch(payloadKind, string(f.Kind)),
		qdrant.NewMatch(payloadOwner, f.Scope.OwnerUserID),
	}
	if f.Scope.SessionID != "" {
		must = append(must, qdrant.NewMatch(payloadSession, f.Scope.SessionID))
	}
	return &qdrant.Filter{Must: must}
}

func stringValue(v *qdrant.Value) string {
	if v == nil {
		return ""
	}
	return v.GetStringValue()
}
