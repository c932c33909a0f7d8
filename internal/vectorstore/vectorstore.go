// Package vectorstore defines the technology-agnostic contract for tenant
// scoped similarity search. Implementations live in subpackages.
package vectorstore

import (
	"context"
	"errors"
	"maps"
	"sort"

	"github.com/toneill57/innpilot-sub001/internal/model"
)

// Store is a vector store holding one vector per tier for every document.
type Store interface {
	// Search returns documents whose tier vector is at least Threshold
	// similar to the query, ranked by similarity and then by recency.
	// Visibility is enforced inside the store: documents whose tag is not
	// in Query.Visibility, or cannot be read, are never returned.
	Search(ctx context.Context, q Query) ([]Result, error)

	// Upsert stores or replaces documents.
	Upsert(ctx context.Context, docs []Document) error

	// Close releases any resources held by the vector store.
	Close() error
}

// Query describes one similarity search.
type Query struct {
	Vector     []float32
	Tier       model.Tier
	TenantID   string
	Collection string

	// Visibility lists the tags the caller may read. Empty means nothing.
	Visibility []model.Visibility

	// Metadata restricts results to exact key-value matches.
	Metadata map[string]string

	Threshold float32
	Limit     int
}

// Validate checks the fields every backend relies on.
func (q Query) Validate() error {
	switch {
	case q.TenantID == "":
		return ErrMissingTenant
	case q.Collection == "":
		return ErrMissingCollection
	case !q.Tier.Valid():
		return ErrUnknownTier
	case len(q.Vector) == 0:
		return ErrEmptyVector
	}
	return nil
}

// Document is a unit of knowledge to be stored.
type Document struct {
	ID         string
	TenantID   string
	Collection string
	Title      string
	Content    string
	Visibility model.Visibility
	Metadata   map[string]string
	Vectors    map[model.Tier][]float32
}

// Result is a single search hit.
type Result struct {
	ID         string
	Collection string
	Title      string
	Content    string
	Score      float32
	Visibility model.Visibility
	Metadata   map[string]string

	// Seq is the insertion order; larger is newer.
	Seq int64
}

// Payload keys reserved by the adapters.
const (
	KeyTenant     = "tenant_id"
	KeyCollection = "collection"
	KeyVisibility = "visibility"
	KeyTitle      = "title"
	KeySeq        = "seq"
	KeyDocID      = "doc_id"
	KeyContent    = "content"
)

var (
	ErrMissingTenant     = errors.New("vectorstore: tenant is required")
	ErrMissingCollection = errors.New("vectorstore: collection is required")
	ErrUnknownTier       = errors.New("vectorstore: unknown tier")
	ErrEmptyVector       = errors.New("vectorstore: query vector is empty")
	ErrMissingID         = errors.New("vectorstore: document id is required")
)

// ValidateDocument checks the fields every backend relies on.
func ValidateDocument(d Document) error {
	switch {
	case d.ID == "":
		return ErrMissingID
	case d.TenantID == "":
		return ErrMissingTenant
	case d.Collection == "":
		return ErrMissingCollection
	}
	return nil
}

// IsReserved reports whether key is owned by the adapters.
func IsReserved(key string) bool {
	switch key {
	case KeyTenant, KeyCollection, KeyVisibility, KeyTitle, KeySeq, KeyDocID, KeyContent:
		return true
	}
	return false
}

// UserMetadata strips reserved keys from a stored payload.
func UserMetadata(stored map[string]string) map[string]string {
	out := maps.Clone(stored)
	maps.DeleteFunc(out, func(k, _ string) bool { return IsReserved(k) })
	return out
}

// Rank applies the threshold, sorts by score then recency, and caps to limit.
func Rank(results []Result, threshold float32, limit int) []Result {
	kept := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Seq > kept[j].Seq
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}
