package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultUnitPrefix namespaces unit objects inside the bucket.
	DefaultUnitPrefix = "units/"
	unitSuffix        = ".json"
	defaultParallel   = 8
)

// ObjectStore is the subset of S3Client the document store needs.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	ListKeys(ctx context.Context, prefix string, limit int) ([]string, error)
	DeleteObjects(ctx context.Context, keys []string) error
}

// S3DocumentStore keeps full content units as JSON objects keyed by unit id.
type S3DocumentStore struct {
	objects  ObjectStore
	prefix   string
	parallel int
}

func NewS3DocumentStore(objects ObjectStore, prefix string) *S3DocumentStore {
	if prefix == "" {
		prefix = DefaultUnitPrefix
	}
	return &S3DocumentStore{objects: objects, prefix: prefix, parallel: defaultParallel}
}

func (s *S3DocumentStore) key(id string) string {
	return s.prefix + id + unitSuffix
}

func (s *S3DocumentStore) idFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, s.prefix) || !strings.HasSuffix(key, unitSuffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(key, s.prefix), unitSuffix), true
}

// GetMany resolves ids to units. Ids without an object are absent from the
// result map.
func (s *S3DocumentStore) GetMany(ctx context.Context, ids []string) (map[string]*domain.ContentUnit, error) {
	found := make([]*domain.ContentUnit, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i, id := range ids {
		g.Go(func() error {
			data, err := s.objects.GetObject(gctx, s.key(id))
			if errors.Is(err, ErrObjectNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			var unit domain.ContentUnit
			if err := json.Unmarshal(data, &unit); err != nil {
				return fmt.Errorf("decode unit %s: %w", id, err)
			}
			if unit.ID == "" {
				unit.ID = id
			}
			found[i] = &unit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*domain.ContentUnit, len(ids))
	for _, u := range found {
		if u != nil {
			out[u.ID] = u
		}
	}
	return out, nil
}

// SetMany writes every unit. Failures are collected per unit into a
// *domain.BatchError so callers can tell which ids landed.
func (s *S3DocumentStore) SetMany(ctx context.Context, units []*domain.ContentUnit) error {
	batch := domain.NewBatchError()
	errs := make([]error, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i, unit := range units {
		g.Go(func() error {
			data, err := json.Marshal(unit)
			if err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = s.objects.PutObject(gctx, s.key(unit.ID), data, "application/json")
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			batch.Add(units[i].ID, err)
		}
	}
	return batch.ErrOrNil()
}

func (s *S3DocumentStore) ListKeys(ctx context.Context, limit int) ([]string, error) {
	keys, err := s.objects.ListKeys(ctx, s.prefix, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id, ok := s.idFromKey(k); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *S3DocumentStore) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	return s.objects.DeleteObjects(ctx, keys)
}
