package service

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/cloo-solutions/mmrag/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const DefaultRetrieveAllLimit = 200

// Retriever resolves queries to full content units under a scope. Content
// outside the scope is filtered silently, whatever the backing stores return.
type Retriever struct {
	summaries *SummaryIndex
	docs      DocumentStore
}

func NewRetriever(summaries *SummaryIndex, docs DocumentStore) *Retriever {
	return &Retriever{summaries: summaries, docs: docs}
}

// RetrieveByQuery runs one filtered similarity search per kind and resolves
// the hits from the document store. Ids are deduplicated in first-seen order
// across kinds; ids without resolvable content are dropped.
func (r *Retriever) RetrieveByQuery(ctx context.Context, query string, kinds []domain.Kind, scope domain.Scope, kPerKind int) ([]*domain.ContentUnit, error) {
	if len(kinds) == 0 || kPerKind <= 0 || scope.OwnerUserID == "" {
		return []*domain.ContentUnit{}, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "Retriever.RetrieveByQuery", telemetry.SpanAttributes{
		UserID:    scope.OwnerUserID,
		SessionID: scope.SessionID,
		Operation: "retrieve",
	})
	defer span.End()

	embedding, err := r.summaries.EmbedQuery(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("embed query: %w", err)
	}

	perKind := make([][]domain.SummaryHit, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			hits, err := r.summaries.Search(gctx, embedding, domain.SummaryFilter{Kind: kind, Scope: scope}, kPerKind)
			if err != nil {
				return fmt.Errorf("search %s summaries: %w", kind, err)
			}
			perKind[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, hits := range perKind {
		for _, h := range hits {
			if _, dup := seen[h.ID]; dup {
				continue
			}
			seen[h.ID] = struct{}{}
			ids = append(ids, h.ID)
		}
	}

	units, err := r.resolve(ctx, ids, kinds, scope)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetData("hits", len(ids))
	span.SetData("resolved", len(units))
	return units, nil
}

// RetrieveAll enumerates up to limit keys from the document store and keeps
// the units matching kinds and scope. limit caps the store scan, not the
// number of matches, so the result may be incomplete for large stores.
func (r *Retriever) RetrieveAll(ctx context.Context, kinds []domain.Kind, scope domain.Scope, limit int) ([]*domain.ContentUnit, error) {
	if len(kinds) == 0 || scope.OwnerUserID == "" {
		return []*domain.ContentUnit{}, nil
	}
	if limit <= 0 {
		limit = DefaultRetrieveAllLimit
	}

	ctx, span := telemetry.StartSpan(ctx, "Retriever.RetrieveAll", telemetry.SpanAttributes{
		UserID:    scope.OwnerUserID,
		SessionID: scope.SessionID,
		Operation: "retrieve_all",
	})
	defer span.End()

	keys, err := r.docs.ListKeys(ctx, limit)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("list document keys: %w", err)
	}
	units, err := r.resolve(ctx, keys, kinds, scope)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetData("scanned", len(keys))
	span.SetData("resolved", len(units))
	return units, nil
}

// resolve fetches ids in order and applies the kind and scope filter.
func (r *Retriever) resolve(ctx context.Context, ids []string, kinds []domain.Kind, scope domain.Scope) ([]*domain.ContentUnit, error) {
	out := []*domain.ContentUnit{}
	if len(ids) == 0 {
		return out, nil
	}
	found, err := r.docs.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve content: %w", err)
	}

	wanted := make(map[domain.Kind]struct{}, len(kinds))
	for _, k := range kinds {
		wanted[k] = struct{}{}
	}
	for _, id := range ids {
		u, ok := found[id]
		if !ok || u == nil {
			continue
		}
		if !scope.Allows(u.Scope()) {
			continue
		}
		if _, ok := wanted[u.DeclaredKind()]; !ok {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// MergeUnits appends the units of each batch to dst, skipping ids already
// present. Order of first occurrence is kept.
func MergeUnits(dst []*domain.ContentUnit, batches ...[]*domain.ContentUnit) []*domain.ContentUnit {
	seen := make(map[string]struct{}, len(dst))
	for _, u := range dst {
		seen[dedupeKey(u)] = struct{}{}
	}
	for _, batch := range batches {
		for _, u := range batch {
			key := dedupeKey(u)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			dst = append(dst, u)
		}
	}
	return dst
}

const dedupePrefixLen = 200

func dedupeKey(u *domain.ContentUnit) string {
	if u.ID != "" {
		return u.ID
	}
	p := u.Payload
	if len(p) > dedupePrefixLen {
		p = p[:dedupePrefixLen]
	}
	return "payload:" + p
}
