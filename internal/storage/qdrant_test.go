package storage

import (
	"testing"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQdrantFilter_SessionScoped(t *testing.T) {
	f := buildQdrantFilter(domain.SummaryFilter{
		Kind:  domain.KindImage,
		Scope: domain.Scope{OwnerUserID: "U1", SessionID: "S1"},
	})

	require.Len(t, f.Must, 3)
	assert.Empty(t, f.Should)
	keys := make([]string, 0, 3)
	for _, c := range f.Must {
		field := c.GetField()
		require.NotNil(t, field)
		keys = append(keys, field.GetKey())
	}
	assert.Equal(t, []string{payloadKind, payloadOwner, payloadSession}, keys)
	assert.Equal(t, "S1", f.Must[2].GetField().GetMatch().GetKeyword())
}

func TestBuildQdrantFilter_NoSessionSpansOwner(t *testing.T) {
	f := buildQdrantFilter(domain.SummaryFilter{
		Kind:  domain.KindText,
		Scope: domain.Scope{OwnerUserID: "U1"},
	})

	require.Len(t, f.Must, 2)
	for _, c := range f.Must {
		require.NotNil(t, c.GetField())
		assert.NotEqual(t, payloadSession, c.GetField().GetKey())
	}
}
