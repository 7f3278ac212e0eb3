package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryClassifier_WantsVisualContext(t *testing.T) {
	c := NewQueryClassifier(DefaultVocabulary())

	tests := []struct {
		query string
		want  bool
	}{
		{"show me the figure", true},
		{"What does the DIAGRAM on page 3 show?", true},
		{"summarize the revenue table", true},
		{"what is the refund policy", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, c.WantsVisualContext(tt.query))
		})
	}
}

func TestQueryClassifier_WantsExhaustiveEnumeration(t *testing.T) {
	c := NewQueryClassifier(DefaultVocabulary())

	tests := []struct {
		query string
		want  bool
	}{
		{"list all projects in this report", true},
		{"Show all the projects", true},
		{"What projects are mentioned?", true},
		{"what is project Alpha", false},
		{"list all employees", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, c.WantsExhaustiveEnumeration(tt.query))
		})
	}
}

func TestQueryClassifier_BroadeningProbes(t *testing.T) {
	c := NewQueryClassifier(DefaultVocabulary())

	t.Run("topic keyword widens recall", func(t *testing.T) {
		probes := c.BroadeningProbes("what is project Alpha")
		assert.Equal(t, []Probe{{Query: "projects", K: 12}, {Query: "key projects", K: 8}}, probes)
		assert.True(t, c.WantsBroaderRecall("what is project Alpha"))
	})

	t.Run("unrelated query has no probes", func(t *testing.T) {
		assert.Empty(t, c.BroadeningProbes("what is the refund policy"))
		assert.False(t, c.WantsBroaderRecall("what is the refund policy"))
	})

	t.Run("duplicate probes across topics are kept once", func(t *testing.T) {
		v := Vocabulary{Topics: []TopicRule{
			{Keywords: []string{"client"}, Probes: []Probe{{Query: "customers", K: 5}}},
			{Keywords: []string{"account"}, Probes: []Probe{{Query: "customers", K: 3}, {Query: "accounts", K: 4}}},
		}}
		probes := NewQueryClassifier(v).BroadeningProbes("client account owners")
		assert.Equal(t, []Probe{{Query: "customers", K: 5}, {Query: "accounts", K: 4}}, probes)
	})
}

func TestQueryClassifier_Deterministic(t *testing.T) {
	c := NewQueryClassifier(DefaultVocabulary())
	q := "List all projects and show the chart"

	first := c.Classify(q)
	for range 5 {
		assert.Equal(t, first, c.Classify(q))
	}
	assert.True(t, first.Visual)
	assert.True(t, first.Exhaustive)
	assert.Len(t, first.Probes, 2)
}

func TestParseVocabulary(t *testing.T) {
	t.Run("overrides only the given sections", func(t *testing.T) {
		v, err := ParseVocabulary([]byte(`
topics:
  - keywords: [Invoice]
    probes:
      - query: invoices
        k: 6
`))
		require.NoError(t, err)

		c := NewQueryClassifier(v)
		assert.True(t, c.WantsVisualContext("show the picture"))
		assert.Equal(t, []Probe{{Query: "invoices", K: 6}}, c.BroadeningProbes("unpaid INVOICE totals"))
		assert.Empty(t, c.BroadeningProbes("what is project Alpha"))
	})

	t.Run("rejects probe without k", func(t *testing.T) {
		_, err := ParseVocabulary([]byte("topics:\n  - keywords: [a]\n    probes:\n      - query: b\n"))
		assert.Error(t, err)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		_, err := ParseVocabulary([]byte("visual_terms: [unclosed"))
		assert.Error(t, err)
	})
}

func TestLoadVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("visual_terms: [Sketch]\n"), 0o600))

	v, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"sketch"}, v.VisualTerms)

	_, err = LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
