package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	// SummaryInstruction prefixes every text and table summary request.
	SummaryInstruction = "Summarize the following content concisely for retrieval:"
	// ImageSummary stands in for image units, which are not summarized by the
	// model; their evidence reaches the prompt as attachments instead.
	ImageSummary = "Image content"

	DefaultSummaryConcurrency = 3
	DefaultSummaryMaxTokens   = 6000
)

var ErrEmptySummary = errors.New("generation service returned an empty summary")

// Generator produces text from an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt *domain.PromptPayload) (string, error)
}

// TokenTruncator clamps text to a token budget.
type TokenTruncator interface {
	Truncate(text string, maxTokens int) string
}

type SummarizerConfig struct {
	Concurrency int
	MaxTokens   int
}

// Summarizer turns content units into short retrieval-oriented summaries.
type Summarizer struct {
	gen         Generator
	tokens      TokenTruncator
	concurrency int
	maxTokens   int
}

// NewSummarizer creates a Summarizer. tokens may be nil, in which case unit
// payloads are sent unclamped.
func NewSummarizer(gen Generator, tokens TokenTruncator, cfg SummarizerConfig) *Summarizer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultSummaryConcurrency
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultSummaryMaxTokens
	}
	return &Summarizer{
		gen:         gen,
		tokens:      tokens,
		concurrency: cfg.Concurrency,
		maxTokens:   cfg.MaxTokens,
	}
}

// Summarize returns the retrieval summary for one unit.
func (s *Summarizer) Summarize(ctx context.Context, unit *domain.ContentUnit) (string, error) {
	if unit.ResolvedKind() == domain.KindImage {
		return ImageSummary, nil
	}

	content := unit.Payload
	if s.tokens != nil {
		content = s.tokens.Truncate(content, s.maxTokens)
	}

	out, err := s.gen.Generate(ctx, &domain.PromptPayload{
		Blocks: []string{SummaryInstruction + " " + content},
	})
	if err != nil {
		return "", fmt.Errorf("summarize %s unit: %w", unit.Kind, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptySummary
	}
	return out, nil
}

// SummaryResult pairs a unit's summary with its failure, if any.
type SummaryResult struct {
	Summary string
	Err     error
}

// SummarizeBatch summarizes every unit with at most the configured number of
// generation calls in flight. One unit failing never affects the others; the
// result slice is index-aligned with units.
func (s *Summarizer) SummarizeBatch(ctx context.Context, units []*domain.ContentUnit) []SummaryResult {
	results := make([]SummaryResult, len(units))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, unit := range units {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			summary, err := s.Summarize(ctx, unit)
			results[i] = SummaryResult{Summary: summary, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
