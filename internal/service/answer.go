package service

import (
	"context"
	"strings"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/cloo-solutions/mmrag/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// OrchestratorConfig sets the retrieval fan-out for one question.
type OrchestratorConfig struct {
	TextK            int
	ImageK           int
	RetrieveAllLimit int
}

// DefaultOrchestratorConfig returns the default per-kind k and enumeration limit.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{TextK: 12, ImageK: 2, RetrieveAllLimit: DefaultRetrieveAllLimit}
}

// Answer is a generated reply plus the image evidence that was shown to the
// model.
type Answer struct {
	Text   string   `json:"answer"`
	Images []string `json:"images"`
}

// Orchestrator runs one question through classify, retrieve, assemble and
// generate.
type Orchestrator struct {
	classifier *QueryClassifier
	retriever  *Retriever
	assembler  *ContextAssembler
	gen        Generator
	cfg        OrchestratorConfig
}

func NewOrchestrator(classifier *QueryClassifier, retriever *Retriever, assembler *ContextAssembler, gen Generator, cfg OrchestratorConfig) *Orchestrator {
	def := DefaultOrchestratorConfig()
	if cfg.TextK <= 0 {
		cfg.TextK = def.TextK
	}
	if cfg.ImageK <= 0 {
		cfg.ImageK = def.ImageK
	}
	if cfg.RetrieveAllLimit <= 0 {
		cfg.RetrieveAllLimit = def.RetrieveAllLimit
	}
	return &Orchestrator{
		classifier: classifier,
		retriever:  retriever,
		assembler:  assembler,
		gen:        gen,
		cfg:        cfg,
	}
}

// Answer answers query from content visible under scope. Missing content is
// not an error; failures of the stores or the generation service are
// reported as upstream failures.
func (o *Orchestrator) Answer(ctx context.Context, query string, history []domain.ConversationTurn, scope domain.Scope) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if scope.OwnerUserID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "owner user id is required")
	}

	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.Answer", telemetry.SpanAttributes{
		UserID:    scope.OwnerUserID,
		SessionID: scope.SessionID,
		Operation: "answer",
	})
	defer span.End()

	class := o.classifier.Classify(query)
	span.SetData("visual", class.Visual)
	span.SetData("exhaustive", class.Exhaustive)
	span.SetData("probes", len(class.Probes))

	units, err := o.gather(ctx, query, class, scope)
	if err != nil {
		span.SetError(err)
		return nil, domain.ErrStorageOperationFail.Wrap(err)
	}

	ev := o.assembler.Partition(units)
	prompt := o.assembler.AssembleEvidence(ev, history, query, IncludeImages(class.Visual, ev))
	span.SetData("texts", len(ev.Texts))
	span.SetData("images", len(prompt.Images))

	text, err := o.gen.Generate(ctx, prompt)
	if err != nil {
		span.SetError(err)
		return nil, domain.ErrGenerationFailed.Wrap(err)
	}

	return &Answer{Text: strings.TrimSpace(text), Images: prompt.Images}, nil
}

// gather collects the working set. The main search and topic probes run
// concurrently and merge in a fixed order; exhaustive enumeration replaces
// the set when it finds anything; image hits are appended last.
func (o *Orchestrator) gather(ctx context.Context, query string, class Classification, scope domain.Scope) ([]*domain.ContentUnit, error) {
	searches := append([]Probe{{Query: query, K: o.cfg.TextK}}, class.Probes...)
	results := make([][]*domain.ContentUnit, len(searches))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range searches {
		g.Go(func() error {
			units, err := o.retriever.RetrieveByQuery(gctx, s.Query, domain.TextualKinds, scope, s.K)
			if err != nil {
				return err
			}
			results[i] = units
			return nil
		})
	}

	var all, images []*domain.ContentUnit
	if class.Exhaustive {
		g.Go(func() error {
			units, err := o.retriever.RetrieveAll(gctx, domain.TextualKinds, scope, o.cfg.RetrieveAllLimit)
			if err != nil {
				return err
			}
			all = units
			return nil
		})
	}
	if class.Visual {
		g.Go(func() error {
			units, err := o.retriever.RetrieveByQuery(gctx, query, []domain.Kind{domain.KindImage}, scope, o.cfg.ImageK)
			if err != nil {
				return err
			}
			images = units
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	working := MergeUnits(nil, results...)
	if len(all) > 0 {
		working = all
	}
	return MergeUnits(working, images), nil
}
