package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toneill57/innpilot-sub001/internal/embedding"
	"github.com/toneill57/innpilot-sub001/internal/model"
	"github.com/toneill57/innpilot-sub001/internal/vectorstore/chromem"
)

var dims = embedding.Dimensions{model.TierFast: 2, model.TierBalanced: 4, model.TierFull: 4}

func vec(v ...float32) embedding.Vectors {
	return embedding.FromFull(v, dims)
}

func TestIndex_SameSessionOnly(t *testing.T) {
	idx := New(chromem.New(), Options{Threshold: 0.5})
	ctx := context.Background()
	guest := model.Actor{Kind: model.ActorGuest}

	require.NoError(t, idx.Add(ctx, Exchange{TenantID: "t", SessionID: "s1", Actor: guest, Sequence: 1, User: "Is breakfast included?", Assistant: "Yes, until 10am.", Vectors: vec(1, 0, 0, 0)}))
	require.NoError(t, idx.Add(ctx, Exchange{TenantID: "t", SessionID: "s2", Actor: guest, Sequence: 1, User: "Is breakfast vegan?", Vectors: vec(1, 0, 0, 0)}))
	require.NoError(t, idx.Add(ctx, Exchange{TenantID: "t", SessionID: "s1", Actor: guest, Sequence: 3, User: "Where is the beach?", Vectors: vec(0, 0, 1, 0)}))

	recalls, err := idx.Search(ctx, Query{TenantID: "t", SessionID: "s1", Actor: guest, Vectors: vec(0.9, 0.1, 0, 0)})
	require.NoError(t, err)
	require.Len(t, recalls, 1)
	assert.Equal(t, "s1", recalls[0].SessionID)
	assert.Contains(t, recalls[0].Content, "User: Is breakfast included?")
	assert.Contains(t, recalls[0].Content, "Assistant: Yes, until 10am.")
}

func TestIndex_StaffTenantWide(t *testing.T) {
	idx := New(chromem.New(), Options{Threshold: 0.5, StaffTenantWide: true})
	ctx := context.Background()
	ana := model.Actor{Kind: model.ActorStaff, UserID: "ana"}
	guest := model.Actor{Kind: model.ActorGuest, UserID: "g1"}

	require.NoError(t, idx.Add(ctx, Exchange{TenantID: "t", SessionID: "old", Actor: ana, Sequence: 1, User: "Room 12 AC broken", Vectors: vec(1, 0, 0, 0)}))
	require.NoError(t, idx.Add(ctx, Exchange{TenantID: "t", SessionID: "guest", Actor: guest, Sequence: 1, User: "My AC is broken", Vectors: vec(1, 0, 0, 0)}))
	require.NoError(t, idx.Add(ctx, Exchange{TenantID: "other", SessionID: "x", Actor: ana, Sequence: 1, User: "AC", Vectors: vec(1, 0, 0, 0)}))

	recalls, err := idx.Search(ctx, Query{TenantID: "t", SessionID: "new", Actor: ana, Vectors: vec(1, 0, 0, 0)})
	require.NoError(t, err)
	require.Len(t, recalls, 1)
	assert.Equal(t, "old", recalls[0].SessionID)

	// Guests never get tenant-wide recall.
	recalls, err = idx.Search(ctx, Query{TenantID: "t", SessionID: "new", Actor: guest, Vectors: vec(1, 0, 0, 0)})
	require.NoError(t, err)
	assert.Empty(t, recalls)
}

func TestIndex_EmptyVectors(t *testing.T) {
	idx := New(chromem.New(), Options{})
	recalls, err := idx.Search(context.Background(), Query{TenantID: "t", SessionID: "s"})
	require.NoError(t, err)
	assert.Empty(t, recalls)
	assert.Error(t, idx.Add(context.Background(), Exchange{TenantID: "t", SessionID: "s"}))
}
