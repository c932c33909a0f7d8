// Package embedding turns text into tiered vectors. A single full-length
// vector is requested per text and the smaller tiers are derived from it by
// prefix truncation, which is valid for nested (Matryoshka) embedding models.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/toneill57/innpilot-sub001/internal/llm"
	"github.com/toneill57/innpilot-sub001/internal/model"
)

// Dimensions maps each tier to its vector length.
type Dimensions map[model.Tier]int

// Validate checks that every tier has a length and lengths grow with precision.
func (d Dimensions) Validate() error {
	prev := 0
	for _, t := range model.Tiers {
		n, ok := d[t]
		if !ok || n <= 0 {
			return fmt.Errorf("embedding: missing dimension for tier %q", t)
		}
		if n < prev {
			return fmt.Errorf("embedding: tier %q shorter than the tier below it", t)
		}
		prev = n
	}
	return nil
}

// Vectors is one embedded text at every tier.
type Vectors struct {
	full []float32
	dims Dimensions
}

// FromFull wraps an already computed full-length vector.
func FromFull(full []float32, dims Dimensions) Vectors {
	return Vectors{full: full, dims: dims}
}

// At returns the unit-length vector for tier.
func (v Vectors) At(tier model.Tier) []float32 {
	n, ok := v.dims[tier]
	if !ok || n > len(v.full) {
		n = len(v.full)
	}
	return Normalize(v.full[:n])
}

// All returns the vector for every tier.
func (v Vectors) All() map[model.Tier][]float32 {
	out := make(map[model.Tier][]float32, len(model.Tiers))
	for _, t := range model.Tiers {
		out[t] = v.At(t)
	}
	return out
}

// Empty reports whether v holds no vector.
func (v Vectors) Empty() bool {
	return len(v.full) == 0
}

// Provider is the embedding adapter used by retrieval and memory.
type Provider struct {
	embedder llm.Embedder
	dims     Dimensions
}

// NewProvider creates a provider over e with the given tier lengths.
func NewProvider(e llm.Embedder, dims Dimensions) (*Provider, error) {
	if e == nil {
		return nil, errors.New("embedding: embedder is required")
	}
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	return &Provider{embedder: e, dims: dims}, nil
}

// Dims returns the configured tier lengths.
func (p *Provider) Dims() Dimensions {
	return p.dims
}

// EmbedTiers embeds text once and returns every tier.
func (p *Provider) EmbedTiers(ctx context.Context, text string) (Vectors, error) {
	out, err := p.embedder.Embed(ctx, []string{text})
	if err != nil {
		return Vectors{}, err
	}
	if len(out) != 1 {
		return Vectors{}, fmt.Errorf("embedding: expected 1 vector, got %d", len(out))
	}
	full := out[0]
	if len(full) < p.dims[model.TierFull] {
		return Vectors{}, fmt.Errorf("embedding: provider returned %d dimensions, full tier needs %d", len(full), p.dims[model.TierFull])
	}
	return Vectors{full: full[:p.dims[model.TierFull]], dims: p.dims}, nil
}

// Embed returns the vector for text at a single tier.
func (p *Provider) Embed(ctx context.Context, text string, tier model.Tier) ([]float32, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("embedding: unknown tier %q", tier)
	}
	v, err := p.EmbedTiers(ctx, text)
	if err != nil {
		return nil, err
	}
	return v.At(tier), nil
}

// Normalize returns a unit-length copy of vec. A zero vector is returned as is.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(vec))
	if sum == 0 {
		copy(out, vec)
		return out
	}
	norm := float32(math.Sqrt(sum))
	for i, x := range vec {
		out[i] = x / norm
	}
	return out
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
