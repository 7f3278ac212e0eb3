package service

import (
	"context"
	"strings"
	"sync"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt *domain.PromptPayload) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Upsert(ctx context.Context, rec *domain.SummaryRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockVectorStore) Search(ctx context.Context, embedding []float32, filter domain.SummaryFilter, k int) ([]domain.SummaryHit, error) {
	args := m.Called(ctx, embedding, filter, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SummaryHit), args.Error(1)
}

func (m *MockVectorStore) Delete(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) GetMany(ctx context.Context, ids []string) (map[string]*domain.ContentUnit, error) {
	args := m.Called(ctx, ids)
	if fn, ok := args.Get(0).(func(context.Context, []string) map[string]*domain.ContentUnit); ok {
		return fn(ctx, ids), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.ContentUnit), args.Error(1)
}

func (m *MockDocumentStore) SetMany(ctx context.Context, units []*domain.ContentUnit) error {
	args := m.Called(ctx, units)
	return args.Error(0)
}

func (m *MockDocumentStore) ListKeys(ctx context.Context, limit int) ([]string, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDocumentStore) DeleteMany(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

type MockRepairQueue struct {
	mock.Mock
}

func (m *MockRepairQueue) Create(ctx context.Context, job *domain.RepairJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockUUIDGenerator hands out the given ids in order, then "default-uuid".
type MockUUIDGenerator struct {
	mu        sync.Mutex
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.callCount < len(m.uuids) {
		id := m.uuids[m.callCount]
		m.callCount++
		return id
	}
	return "default-uuid"
}

// fakeVectorStore is an in-memory VectorStore that applies filters exactly
// and returns hits in insertion order.
type fakeVectorStore struct {
	mu      sync.Mutex
	records []*domain.SummaryRecord
}

func (f *fakeVectorStore) Upsert(_ context.Context, rec *domain.SummaryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records {
		if r.ID == rec.ID {
			f.records[i] = rec
			return nil
		}
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, _ []float32, filter domain.SummaryFilter, k int) ([]domain.SummaryHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var hits []domain.SummaryHit
	for _, r := range f.records {
		if r.Kind != filter.Kind {
			continue
		}
		if !filter.Scope.Allows(domain.Scope{OwnerUserID: r.OwnerUserID, SessionID: r.SessionID}) {
			continue
		}
		hits = append(hits, domain.SummaryHit{ID: r.ID, Kind: r.Kind, SummaryText: r.SummaryText, Score: 1})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (f *fakeVectorStore) Delete(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.records[:0]
	for _, r := range f.records {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

type constEmbedder struct{}

func (constEmbedder) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

// echoGenerator answers summary requests with the content's first line and
// questions with every context line mentioning "project".
type echoGenerator struct {
	mu      sync.Mutex
	prompts []*domain.PromptPayload
}

func (g *echoGenerator) Generate(_ context.Context, prompt *domain.PromptPayload) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	text := prompt.Text()
	if rest, ok := strings.CutPrefix(text, SummaryInstruction+" "); ok {
		first, _, _ := strings.Cut(rest, "\n")
		return first, nil
	}
	_, ctxText, _ := strings.Cut(text, "Context:\n")
	ctxText, _, _ = strings.Cut(ctxText, "\n\nQuestion:")
	var found []string
	for _, line := range strings.Split(ctxText, "\n") {
		if strings.Contains(strings.ToLower(line), "project") {
			found = append(found, line)
		}
	}
	if len(found) == 0 {
		return "The context does not contain the answer.", nil
	}
	return strings.Join(found, " "), nil
}

func (g *echoGenerator) last() *domain.PromptPayload {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return nil
	}
	return g.prompts[len(g.prompts)-1]
}
