package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/cloo-solutions/mmrag/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const indexWriteParallel = 8

// RepairQueue records orphaned tier entries for the repair worker.
type RepairQueue interface {
	Create(ctx context.Context, job *domain.RepairJob) error
}

// Indexer writes content units into both tiers: full content into the
// document store, then the embedded summary into the vector index. Content
// is written first so a summary is never searchable without resolvable
// content.
type Indexer struct {
	summarizer *Summarizer
	summaries  *SummaryIndex
	docs       DocumentStore
	repairs    RepairQueue
	uuidGen    UUIDGenerator
}

// NewIndexer creates an Indexer. repairs may be nil, in which case orphaned
// content from a failed vector write is only logged.
func NewIndexer(summarizer *Summarizer, summaries *SummaryIndex, docs DocumentStore, repairs RepairQueue, uuidGen UUIDGenerator) *Indexer {
	if uuidGen == nil {
		uuidGen = &DefaultUUIDGenerator{}
	}
	return &Indexer{
		summarizer: summarizer,
		summaries:  summaries,
		docs:       docs,
		repairs:    repairs,
		uuidGen:    uuidGen,
	}
}

// pending tracks one unit through the pipeline.
type pending struct {
	index  int
	unit   *domain.ContentUnit
	record *domain.SummaryRecord
}

// Index summarizes and stores units under scope. Partial success is normal:
// the report counts only units present in both tiers and lists every failure.
// An error is returned only for invalid input.
func (x *Indexer) Index(ctx context.Context, units []*domain.ContentUnit, scope domain.Scope) (*domain.IndexReport, error) {
	if len(units) == 0 {
		return nil, domain.ErrNoUnits
	}
	if scope.OwnerUserID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "owner user id is required")
	}

	ctx, span := telemetry.StartSpan(ctx, "Indexer.Index", telemetry.SpanAttributes{
		UserID:    scope.OwnerUserID,
		SessionID: scope.SessionID,
		Operation: "index",
	})
	defer span.End()

	report := &domain.IndexReport{UnitIDs: []string{}}
	var mu sync.Mutex
	fail := func(p *pending, stage string, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Failures = append(report.Failures, domain.UnitFailure{
			Index: p.index, Kind: p.unit.Kind, Stage: stage, Reason: err.Error(),
		})
	}

	var work []*pending
	for i, in := range units {
		p := &pending{index: i, unit: x.prepare(in, scope)}
		if err := domain.ValidateContentUnit(p.unit); err != nil {
			fail(p, domain.StageValidate, err)
			continue
		}
		work = append(work, p)
	}

	work = x.summarize(ctx, work, fail)
	work = x.writeDocuments(ctx, work, fail)
	work = x.writeSummaries(ctx, work, fail)

	for _, p := range work {
		report.Counts.Add(p.unit.Kind)
		report.UnitIDs = append(report.UnitIDs, p.unit.ID)
	}
	slices.SortStableFunc(report.Failures, func(a, b domain.UnitFailure) int { return a.Index - b.Index })

	span.SetData("indexed", report.Counts.Total())
	span.SetData("failed", len(report.Failures))
	log.Printf("indexed %d/%d units for user %s (texts=%d tables=%d images=%d)",
		report.Counts.Total(), len(units), scope.OwnerUserID,
		report.Counts.Texts, report.Counts.Tables, report.Counts.Images)

	return report, nil
}

func (x *Indexer) prepare(in *domain.ContentUnit, scope domain.Scope) *domain.ContentUnit {
	u := *in
	u.ID = x.uuidGen.NewString()
	u.Kind = domain.Kind(strings.ToLower(strings.TrimSpace(string(u.Kind))))
	if u.Kind == "" {
		u.Kind = u.ResolvedKind()
	}
	u.OwnerUserID = scope.OwnerUserID
	u.SessionID = scope.SessionID
	return &u
}

// summarize produces and embeds summaries, dropping units that fail either step.
func (x *Indexer) summarize(ctx context.Context, work []*pending, fail func(*pending, string, error)) []*pending {
	units := make([]*domain.ContentUnit, len(work))
	for i, p := range work {
		units[i] = p.unit
	}
	results := x.summarizer.SummarizeBatch(ctx, units)

	var g errgroup.Group
	g.SetLimit(indexWriteParallel)
	for i, p := range work {
		if results[i].Err != nil {
			fail(p, domain.StageSummarize, results[i].Err)
			continue
		}
		g.Go(func() error {
			rec, err := x.summaries.Record(ctx, p.unit, results[i].Summary)
			if err != nil {
				fail(p, domain.StageEmbed, err)
				return nil
			}
			p.record = rec
			return nil
		})
	}
	_ = g.Wait()

	return keep(work, func(p *pending) bool { return p.record != nil })
}

func (x *Indexer) writeDocuments(ctx context.Context, work []*pending, fail func(*pending, string, error)) []*pending {
	if len(work) == 0 {
		return work
	}
	units := make([]*domain.ContentUnit, len(work))
	for i, p := range work {
		units[i] = p.unit
	}

	err := x.docs.SetMany(ctx, units)
	if err == nil {
		return work
	}

	var batch *domain.BatchError
	if !errors.As(err, &batch) {
		for _, p := range work {
			fail(p, domain.StageDocument, err)
		}
		// Some objects may have landed before the store gave up.
		x.enqueueRepairs(ctx, work, domain.TierDocument)
		return nil
	}
	return keep(work, func(p *pending) bool {
		if unitErr, failed := batch.Failed[p.unit.ID]; failed {
			fail(p, domain.StageDocument, unitErr)
			return false
		}
		return true
	})
}

func (x *Indexer) writeSummaries(ctx context.Context, work []*pending, fail func(*pending, string, error)) []*pending {
	written := make([]bool, len(work))

	var g errgroup.Group
	g.SetLimit(indexWriteParallel)
	for i, p := range work {
		g.Go(func() error {
			if err := x.summaries.Upsert(ctx, p.record); err != nil {
				fail(p, domain.StageVector, err)
				return nil
			}
			written[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var orphans, ok []*pending
	for i, p := range work {
		if written[i] {
			ok = append(ok, p)
		} else {
			orphans = append(orphans, p)
		}
	}
	x.enqueueRepairs(ctx, orphans, domain.TierDocument)
	return ok
}

// enqueueRepairs schedules deletion of the given units from tier. It runs
// detached from ctx so a cancelled request still records its orphans.
func (x *Indexer) enqueueRepairs(ctx context.Context, orphans []*pending, tier domain.Tier) {
	if len(orphans) == 0 {
		return
	}
	if x.repairs == nil {
		log.Printf("indexer: %d orphaned %s entries left without repair queue", len(orphans), tier)
		return
	}
	telemetry.AddBreadcrumb(ctx, "repair", fmt.Sprintf("queueing %d %s repairs", len(orphans), tier))
	bg := context.WithoutCancel(ctx)
	for _, p := range orphans {
		job := domain.NewRepairJob(x.uuidGen.NewString(), p.unit.ID, tier, time.Now().UTC())
		if err := x.repairs.Create(bg, job); err != nil {
			log.Printf("indexer: failed to enqueue repair for unit %s: %v", p.unit.ID, err)
		}
	}
}

func keep(work []*pending, pred func(*pending) bool) []*pending {
	out := work[:0]
	for _, p := range work {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}
