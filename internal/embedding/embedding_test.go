package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toneill57/innpilot-sub001/internal/model"
)

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return [][]float32{s.vec}, nil
}

var testDims = Dimensions{model.TierFast: 2, model.TierBalanced: 4, model.TierFull: 8}

func TestProvider_TiersArePrefixesOfFull(t *testing.T) {
	stub := &stubEmbedder{vec: []float32{3, 4, 0, 0, 1, 1, 1, 1, 9, 9}}
	p, err := NewProvider(stub, testDims)
	require.NoError(t, err)

	v, err := p.EmbedTiers(context.Background(), "sea view room")
	require.NoError(t, err)

	fast := v.At(model.TierFast)
	full := v.At(model.TierFull)
	require.Len(t, fast, 2)
	require.Len(t, v.At(model.TierBalanced), 4)
	require.Len(t, full, 8)

	assert.InDelta(t, 0.6, fast[0], 1e-6)
	assert.InDelta(t, 0.8, fast[1], 1e-6)
	assert.InDelta(t, 1.0, Cosine(fast, Normalize(full[:2])), 1e-6)
	assert.Equal(t, 1, stub.calls, "all tiers derive from one provider call")
}

func TestProvider_EmbedMatchesTier(t *testing.T) {
	stub := &stubEmbedder{vec: []float32{3, 4, 0, 0, 1, 1, 1, 1, 9, 9}}
	p, err := NewProvider(stub, testDims)
	require.NoError(t, err)
	ctx := context.Background()

	all, err := p.EmbedTiers(ctx, "sea view room")
	require.NoError(t, err)

	for _, tier := range []model.Tier{model.TierFast, model.TierBalanced, model.TierFull} {
		t.Run(string(tier), func(t *testing.T) {
			one, err := p.Embed(ctx, "sea view room", tier)
			require.NoError(t, err)
			assert.Equal(t, all.At(tier), one)
		})
	}

	_, err = p.Embed(ctx, "sea view room", model.Tier("huge"))
	assert.Error(t, err)
}

func TestProvider_RejectsShortVectors(t *testing.T) {
	p, err := NewProvider(&stubEmbedder{vec: []float32{1, 2, 3}}, testDims)
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "x", model.TierFast)
	assert.Error(t, err)
}

func TestProvider_PropagatesProviderError(t *testing.T) {
	boom := errors.New("provider down")
	p, err := NewProvider(&stubEmbedder{err: boom}, testDims)
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "x", model.TierFull)
	assert.ErrorIs(t, err, boom)
}

func TestDimensions_Validate(t *testing.T) {
	assert.NoError(t, testDims.Validate())
	assert.Error(t, Dimensions{model.TierFast: 8, model.TierBalanced: 4, model.TierFull: 16}.Validate())
	assert.Error(t, Dimensions{model.TierFast: 8}.Validate())
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 2}))
}
