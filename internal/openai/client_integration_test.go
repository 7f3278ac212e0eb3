//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func realClient(t *testing.T) *Client {
	t.Helper()
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}
	return NewClient(apiKey)
}

func TestIntegration_GenerateEmbedding_RealAPI(t *testing.T) {
	client := realClient(t)

	embedding, err := client.GenerateEmbedding(context.Background(), "Project Alpha launched in 2023.")

	require.NoError(t, err)
	assert.Len(t, embedding, DefaultEmbeddingDimensions)
}

func TestIntegration_Generate_RealAPI(t *testing.T) {
	client := realClient(t)

	out, err := client.Generate(context.Background(), &domain.PromptPayload{
		Blocks: []string{"Answer with one word.", "Context:\nProject Alpha launched in 2023.", "Question: Which project launched in 2023?"},
	})

	require.NoError(t, err)
	assert.Contains(t, out, "Alpha")
}
