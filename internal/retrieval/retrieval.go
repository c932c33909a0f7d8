// Package retrieval chooses embedding tiers, searches every knowledge
// collection of a tenant in parallel and merges the hits into a bounded
// context for completion.
package retrieval

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/toneill57/innpilot-sub001/internal/catalog"
	"github.com/toneill57/innpilot-sub001/internal/embedding"
	"github.com/toneill57/innpilot-sub001/internal/model"
	"github.com/toneill57/innpilot-sub001/internal/vectorstore"
	"github.com/toneill57/innpilot-sub001/pkg/logger"
	"github.com/toneill57/innpilot-sub001/pkg/metrics"
	"github.com/toneill57/innpilot-sub001/pkg/tracing"
)

// Config bounds retrieval.
type Config struct {
	Threshold          float32
	PerCollectionLimit int
	MaxDocs            int
	MaxChars           int
	CollectionTimeout  time.Duration

	// EscalateOnEmpty moves to the next tier when a tier finds nothing.
	EscalateOnEmpty bool
}

// DefaultConfig returns the retrieval defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:          0.3,
		PerCollectionLimit: 5,
		MaxDocs:            8,
		MaxChars:           12000,
		CollectionTimeout:  3 * time.Second,
		EscalateOnEmpty:    true,
	}
}

// Request is one retrieval for a turn.
type Request struct {
	TenantID string
	Actor    model.Actor
	Query    string
	Vectors  embedding.Vectors
}

// Result is the merged, capped context for a turn.
type Result struct {
	Documents []model.RetrievedDocument
	Tier      model.Tier
	Escalated bool

	// Degraded lists collections whose search failed or timed out.
	Degraded []string

	// Collections is the catalog used, in query order.
	Collections []catalog.Collection
}

// Orchestrator runs tiered retrieval.
type Orchestrator struct {
	store   vectorstore.Store
	catalog catalog.Catalog
	cfg     Config
	log     *logger.Logger
	tracer  trace.Tracer
}

// New creates an orchestrator.
func New(store vectorstore.Store, cat catalog.Catalog, cfg Config, log *logger.Logger) *Orchestrator {
	if cat == nil {
		cat = catalog.Default()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		store:   store,
		catalog: cat,
		cfg:     cfg,
		log:     log.Named("retrieval"),
		tracer:  tracing.Tracer("retrieval"),
	}
}

// Retrieve searches from the starting tier upwards until a tier yields
// documents or the tiers run out. Zero documents is not an error.
func (o *Orchestrator) Retrieve(ctx context.Context, req Request) (*Result, error) {
	if req.TenantID == "" {
		return nil, vectorstore.ErrMissingTenant
	}
	if req.Vectors.Empty() {
		return nil, errors.New("retrieval: query has no vectors")
	}

	cols, err := o.catalog.Collections(ctx, req.TenantID)
	if err != nil {
		o.log.Warn("catalog unavailable, using defaults", logger.Tenant(req.TenantID), zap.Error(err))
		cols, _ = catalog.Default().Collections(ctx, req.TenantID)
	}
	cols = Order(cols, req.Query)

	res := &Result{Collections: cols}
	tier := StartTier(req.Actor, req.Query)
	for {
		hits, degraded := o.searchTier(ctx, req, tier, cols)
		res.Tier = tier
		res.Degraded = appendUnique(res.Degraded, degraded...)

		if len(hits) > 0 {
			res.Documents = o.cap(hits)
			break
		}
		next, ok := tier.Next()
		if !o.cfg.EscalateOnEmpty || !ok {
			break
		}
		o.log.Debug("tier returned nothing, escalating",
			zap.String("from", string(tier)), zap.String("to", string(next)))
		tier = next
		res.Escalated = true
	}

	metrics.RecordRetrieval(string(res.Tier), res.Escalated)
	return res, nil
}

type hit struct {
	doc  model.RetrievedDocument
	rank int
	seq  int64
}

// searchTier queries every collection in parallel. A collection that fails
// or exceeds its timeout contributes nothing.
func (o *Orchestrator) searchTier(ctx context.Context, req Request, tier model.Tier, cols []catalog.Collection) ([]hit, []string) {
	ctx, span := o.tracer.Start(ctx, "retrieval.tier",
		trace.WithAttributes(attribute.String("tier", string(tier)), attribute.Int("collections", len(cols))))
	defer span.End()

	vec := req.Vectors.At(tier)
	visible := model.AllowedVisibilities(req.Actor.Clearance())

	var (
		mu       sync.Mutex
		hits     []hit
		degraded []string
		g        errgroup.Group
	)
	for rank, col := range cols {
		g.Go(func() error {
			cctx := ctx
			if o.cfg.CollectionTimeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(ctx, o.cfg.CollectionTimeout)
				defer cancel()
			}

			results, err := o.search(cctx, vectorstore.Query{
				Vector:     vec,
				Tier:       tier,
				TenantID:   req.TenantID,
				Collection: col.Name,
				Visibility: visible,
				Threshold:  o.cfg.Threshold,
				Limit:      o.cfg.PerCollectionLimit,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.log.Warn("collection search degraded",
					zap.String("collection", col.Name), zap.String("tier", string(tier)), zap.Error(err))
				metrics.CollectionDegraded.WithLabelValues(col.Name).Inc()
				degraded = append(degraded, col.Name)
				return nil
			}
			for _, r := range results {
				hits = append(hits, hit{doc: toDocument(r, col, tier), rank: rank, seq: r.Seq})
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].doc.Score != hits[j].doc.Score {
			return hits[i].doc.Score > hits[j].doc.Score
		}
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		return hits[i].seq > hits[j].seq
	})
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, degraded
}

// search returns when the store answers or ctx ends, whichever is first,
// so a store that ignores cancellation cannot stall the turn.
func (o *Orchestrator) search(ctx context.Context, q vectorstore.Query) ([]vectorstore.Result, error) {
	type outcome struct {
		results []vectorstore.Result
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := o.store.Search(ctx, q)
		done <- outcome{r, err}
	}()

	select {
	case out := <-done:
		return out.results, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func toDocument(r vectorstore.Result, col catalog.Collection, tier model.Tier) model.RetrievedDocument {
	title := r.Title
	if title == "" {
		title = col.DisplayName
	}
	return model.RetrievedDocument{
		ID:         r.ID,
		Collection: col.Name,
		Title:      title,
		Content:    r.Content,
		Score:      r.Score,
		Tier:       tier,
		Visibility: r.Visibility,
		Metadata:   r.Metadata,
	}
}

// cap applies the document count and character budgets. A first document
// larger than the whole budget is truncated rather than dropped.
func (o *Orchestrator) cap(hits []hit) []model.RetrievedDocument {
	out := make([]model.RetrievedDocument, 0, len(hits))
	used := 0
	for _, h := range hits {
		if o.cfg.MaxDocs > 0 && len(out) >= o.cfg.MaxDocs {
			break
		}
		doc := h.doc
		if o.cfg.MaxChars > 0 {
			n := len([]rune(doc.Content))
			if used+n > o.cfg.MaxChars {
				if len(out) > 0 {
					break
				}
				doc.Content = string([]rune(doc.Content)[:o.cfg.MaxChars])
				n = o.cfg.MaxChars
			}
			used += n
		}
		out = append(out, doc)
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
