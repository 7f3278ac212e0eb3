package service

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Probe is a supplementary similarity query issued to widen recall.
type Probe struct {
	Query string `yaml:"query" json:"query"`
	K     int    `yaml:"k" json:"k"`
}

// EnumerationRule flags a query as wanting a complete list when it mentions
// any topic term and any intent phrase.
type EnumerationRule struct {
	Topic   []string `yaml:"topic"`
	Phrases []string `yaml:"phrases"`
}

// TopicRule widens recall with probes whenever any keyword appears.
type TopicRule struct {
	Keywords []string `yaml:"keywords"`
	Probes   []Probe  `yaml:"probes"`
}

// Vocabulary is the rule table behind QueryClassifier. All matching is
// case-insensitive substring matching.
type Vocabulary struct {
	VisualTerms []string          `yaml:"visual_terms"`
	Enumeration []EnumerationRule `yaml:"enumeration"`
	Topics      []TopicRule       `yaml:"topics"`
}

// DefaultVocabulary returns the built-in rule table.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		VisualTerms: []string{
			"image", "photo", "picture", "figure", "diagram",
			"chart", "graph", "screenshot", "logo", "table",
		},
		Enumeration: []EnumerationRule{{
			Topic: []string{"project", "projects"},
			Phrases: []string{
				"list all", "all projects", "every project", "show all",
				"what are the projects", "projects included", "projects in",
				"what projects", "which projects",
			},
		}},
		Topics: []TopicRule{{
			Keywords: []string{"project"},
			Probes:   []Probe{{Query: "projects", K: 12}, {Query: "key projects", K: 8}},
		}},
	}
}

// LoadVocabulary reads a YAML rule table. Sections left out of the file keep
// their defaults.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary: %w", err)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary decodes a YAML rule table; sections it omits keep their
// defaults.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	var file Vocabulary
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary: %w", err)
	}

	v := DefaultVocabulary()
	if file.VisualTerms != nil {
		v.VisualTerms = file.VisualTerms
	}
	if file.Enumeration != nil {
		v.Enumeration = file.Enumeration
	}
	if file.Topics != nil {
		v.Topics = file.Topics
	}
	for _, t := range v.Topics {
		for _, p := range t.Probes {
			if strings.TrimSpace(p.Query) == "" || p.K <= 0 {
				return Vocabulary{}, fmt.Errorf("parse vocabulary: probe needs a query and positive k")
			}
		}
	}
	return v.normalized(), nil
}

func (v Vocabulary) normalized() Vocabulary {
	out := Vocabulary{VisualTerms: lowerAll(v.VisualTerms)}
	for _, r := range v.Enumeration {
		out.Enumeration = append(out.Enumeration, EnumerationRule{Topic: lowerAll(r.Topic), Phrases: lowerAll(r.Phrases)})
	}
	for _, t := range v.Topics {
		out.Topics = append(out.Topics, TopicRule{Keywords: lowerAll(t.Keywords), Probes: t.Probes})
	}
	return out
}

func lowerAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func containsAny(q string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

// Classification is the retrieval strategy chosen for one query.
type Classification struct {
	Visual     bool
	Exhaustive bool
	Probes     []Probe
}

// QueryClassifier is a pure, stateless rule engine over a Vocabulary.
type QueryClassifier struct {
	vocab Vocabulary
}

// NewQueryClassifier returns a classifier over a normalized copy of v.
func NewQueryClassifier(v Vocabulary) *QueryClassifier {
	return &QueryClassifier{vocab: v.normalized()}
}

func (c *QueryClassifier) WantsVisualContext(query string) bool {
	return containsAny(strings.ToLower(query), c.vocab.VisualTerms)
}

func (c *QueryClassifier) WantsExhaustiveEnumeration(query string) bool {
	q := strings.ToLower(query)
	for _, r := range c.vocab.Enumeration {
		if containsAny(q, r.Topic) && containsAny(q, r.Phrases) {
			return true
		}
	}
	return false
}

// WantsBroaderRecall reports whether the query mentions a topic whose
// similarity search should be widened with probes.
func (c *QueryClassifier) WantsBroaderRecall(query string) bool {
	return len(c.BroadeningProbes(query)) > 0
}

// BroadeningProbes returns the probes of every topic the query mentions, in
// rule order. Duplicate probe queries are kept once.
func (c *QueryClassifier) BroadeningProbes(query string) []Probe {
	q := strings.ToLower(query)
	var probes []Probe
	seen := make(map[string]struct{})
	for _, t := range c.vocab.Topics {
		if !containsAny(q, t.Keywords) {
			continue
		}
		for _, p := range t.Probes {
			if _, dup := seen[p.Query]; dup {
				continue
			}
			seen[p.Query] = struct{}{}
			probes = append(probes, p)
		}
	}
	return probes
}

func (c *QueryClassifier) Classify(query string) Classification {
	return Classification{
		Visual:     c.WantsVisualContext(query),
		Exhaustive: c.WantsExhaustiveEnumeration(query),
		Probes:     c.BroadeningProbes(query),
	}
}
