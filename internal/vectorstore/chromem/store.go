// Package chromem implements vectorstore.Store in process on chromem-go,
// for single-replica deployments and tests.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"sync"
	"sync/atomic"

	chromem "github.com/philippgille/chromem-go"

	"github.com/toneill57/innpilot-sub001/internal/model"
	"github.com/toneill57/innpilot-sub001/internal/vectorstore"
)

var errNoEmbedding = errors.New("chromem: documents must carry precomputed vectors")

// noEmbed stops chromem from calling out to a provider on its own.
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// Store wraps chromem-go with one collection per tenant, knowledge
// collection and tier.
type Store struct {
	mu  sync.RWMutex
	db  *chromem.DB
	seq atomic.Int64
}

// New creates an in-memory store.
func New() *Store {
	return &Store{db: chromem.NewDB()}
}

// NewPersistent creates (or opens) a store persisted under dir.
func NewPersistent(dir string) (*Store, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vectorstore: %w", err)
	}
	return &Store{db: db}, nil
}

func collectionName(tenantID, collection string, tier model.Tier) string {
	return tenantID + "/" + collection + "/" + string(tier)
}

// Upsert implements vectorstore.Store.
func (s *Store) Upsert(ctx context.Context, docs []vectorstore.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range docs {
		if err := vectorstore.ValidateDocument(d); err != nil {
			return err
		}
		seq := s.seq.Add(1)

		meta := maps.Clone(d.Metadata)
		if meta == nil {
			meta = make(map[string]string, 5)
		}
		meta[vectorstore.KeyTenant] = d.TenantID
		meta[vectorstore.KeyCollection] = d.Collection
		meta[vectorstore.KeyVisibility] = string(d.Visibility)
		meta[vectorstore.KeyTitle] = d.Title
		meta[vectorstore.KeySeq] = strconv.FormatInt(seq, 10)

		for tier, vec := range d.Vectors {
			if !tier.Valid() || len(vec) == 0 {
				continue
			}
			col, err := s.db.GetOrCreateCollection(collectionName(d.TenantID, d.Collection, tier), nil, noEmbed)
			if err != nil {
				return fmt.Errorf("chromem: collection: %w", err)
			}
			err = col.AddDocument(ctx, chromem.Document{
				ID:        d.ID,
				Content:   d.Content,
				Metadata:  meta,
				Embedding: vec,
			})
			if err != nil {
				return fmt.Errorf("chromem: add %s: %w", d.ID, err)
			}
		}
	}
	return nil
}

// Search implements vectorstore.Store.
func (s *Store) Search(ctx context.Context, q vectorstore.Query) ([]vectorstore.Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if len(q.Visibility) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.db.GetCollection(collectionName(q.TenantID, q.Collection, q.Tier), noEmbed)
	if col == nil {
		return nil, nil
	}
	count := col.Count()
	if count == 0 {
		return nil, nil
	}

	var results []vectorstore.Result
	// One filtered query per readable tag keeps restricted documents out
	// of the candidate set entirely.
	for _, vis := range q.Visibility {
		where := maps.Clone(q.Metadata)
		if where == nil {
			where = make(map[string]string, 2)
		}
		where[vectorstore.KeyTenant] = q.TenantID
		where[vectorstore.KeyVisibility] = string(vis)

		hits, err := col.QueryEmbedding(ctx, q.Vector, count, where, nil)
		if err != nil {
			return nil, fmt.Errorf("chromem: query: %w", err)
		}
		for _, h := range hits {
			r, ok := toResult(h, q)
			if ok {
				results = append(results, r)
			}
		}
	}

	return vectorstore.Rank(results, q.Threshold, q.Limit), nil
}

func toResult(h chromem.Result, q vectorstore.Query) (vectorstore.Result, bool) {
	vis, ok := model.ParseVisibility(h.Metadata[vectorstore.KeyVisibility])
	if !ok || h.Metadata[vectorstore.KeyTenant] != q.TenantID {
		return vectorstore.Result{}, false
	}
	seq, _ := strconv.ParseInt(h.Metadata[vectorstore.KeySeq], 10, 64)
	return vectorstore.Result{
		ID:         h.ID,
		Collection: q.Collection,
		Title:      h.Metadata[vectorstore.KeyTitle],
		Content:    h.Content,
		Score:      h.Similarity,
		Visibility: vis,
		Metadata:   vectorstore.UserMetadata(h.Metadata),
		Seq:        seq,
	}, true
}

// Close implements vectorstore.Store.
func (s *Store) Close() error {
	return nil
}

// Compile-time check that Store implements vectorstore.Store.
var _ vectorstore.Store = (*Store)(nil)
