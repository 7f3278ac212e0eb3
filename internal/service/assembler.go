package service

import (
	"strings"

	"github.com/cloo-solutions/mmrag/internal/domain"
)

const (
	DefaultCharBudget   = 25000
	DefaultHistoryTurns = 6
	DefaultMaxImages    = 2

	// TruncationMarker separates the kept head and tail of clamped context.
	TruncationMarker = "\n\n...[truncated]...\n\n"

	headShare = 0.65
	tailShare = 0.30

	emptyContext = "No relevant context was found."
)

var systemInstructions = []string{
	"You are a helpful assistant answering questions using the provided context.",
	"Answer directly and concisely using only the context. If the context does not contain the answer, say so.",
	"If the user asks about projects, list all distinct projects you can find in the context.",
}

type AssemblerConfig struct {
	CharBudget   int
	HistoryTurns int
	MaxImages    int
}

// ContextAssembler turns retrieved units and recent dialogue into a prompt.
// It is stateless; one instance serves every request.
type ContextAssembler struct {
	charBudget   int
	historyTurns int
	maxImages    int
}

func NewContextAssembler(cfg AssemblerConfig) *ContextAssembler {
	if cfg.CharBudget <= 0 {
		cfg.CharBudget = DefaultCharBudget
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = DefaultHistoryTurns
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = DefaultMaxImages
	}
	return &ContextAssembler{
		charBudget:   cfg.CharBudget,
		historyTurns: cfg.HistoryTurns,
		maxImages:    cfg.MaxImages,
	}
}

// Evidence is the deduplicated projection of retrieved units.
type Evidence struct {
	Texts  []string
	Images []string
}

// Partition deduplicates units and splits them into text and image payloads.
func (a *ContextAssembler) Partition(units []*domain.ContentUnit) Evidence {
	var ev Evidence
	for _, u := range MergeUnits(nil, units) {
		if u.ResolvedKind() == domain.KindImage {
			ev.Images = append(ev.Images, u.Payload)
			continue
		}
		ev.Texts = append(ev.Texts, u.Payload)
	}
	return ev
}

// IncludeImages decides whether image evidence is attached: when the query
// asks for visuals, or when images are the only evidence.
func IncludeImages(visual bool, ev Evidence) bool {
	return visual || (len(ev.Texts) == 0 && len(ev.Images) > 0)
}

// Assemble builds the prompt for query. It never fails: empty evidence
// yields a prompt that asks the model to report that nothing was found.
func (a *ContextAssembler) Assemble(units []*domain.ContentUnit, history []domain.ConversationTurn, query string, includeImages bool) *domain.PromptPayload {
	return a.AssembleEvidence(a.Partition(units), history, query, includeImages)
}

func (a *ContextAssembler) AssembleEvidence(ev Evidence, history []domain.ConversationTurn, query string, includeImages bool) *domain.PromptPayload {
	blocks := []string{strings.Join(systemInstructions, "\n")}
	if h := a.RenderHistory(history); h != "" {
		blocks = append(blocks, "--- Previous conversation ---\n"+h+"\n--- End of previous conversation ---")
	}

	ctxText := a.Clamp(strings.Join(ev.Texts, "\n\n"))
	if strings.TrimSpace(ctxText) == "" {
		ctxText = emptyContext
	}
	blocks = append(blocks, "Context:\n"+ctxText+"\n\nQuestion: "+query)

	payload := &domain.PromptPayload{Blocks: blocks, Images: []string{}}
	if includeImages {
		n := min(len(ev.Images), a.maxImages)
		payload.Images = append(payload.Images, ev.Images[:n]...)
	}
	return payload
}

// Clamp keeps text within the character budget by joining its head and tail
// around TruncationMarker. Lengths are counted in runes.
func (a *ContextAssembler) Clamp(text string) string {
	runes := []rune(text)
	if len(runes) <= a.charBudget {
		return text
	}
	head := int(float64(a.charBudget) * headShare)
	tail := int(float64(a.charBudget) * tailShare)
	return string(runes[:head]) + TruncationMarker + string(runes[len(runes)-tail:])
}

// RenderHistory renders the last HistoryTurns exchanges as transcript lines.
func (a *ContextAssembler) RenderHistory(history []domain.ConversationTurn) string {
	window := a.historyTurns * 2
	if len(history) > window {
		history = history[len(history)-window:]
	}
	lines := make([]string, 0, len(history))
	for _, t := range history {
		if !t.Role.Valid() {
			continue
		}
		lines = append(lines, t.String())
	}
	return strings.Join(lines, "\n")
}
