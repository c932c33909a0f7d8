// Package memory indexes conversation exchanges and searches them as a
// secondary corpus, separate from the tenant knowledge base.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/toneill57/innpilot-sub001/internal/embedding"
	"github.com/toneill57/innpilot-sub001/internal/model"
	"github.com/toneill57/innpilot-sub001/internal/vectorstore"
)

// Collection is the vector store collection holding conversation memory.
const Collection = "conversation_memory"

// Metadata keys on memory documents.
const (
	KeySession  = "session_id"
	KeyActor    = "actor_kind"
	KeyUser     = "user_id"
	KeySequence = "turn_sequence"
)

// Options configure memory search.
type Options struct {
	// Tier is the vector length used for memory. Defaults to balanced.
	Tier model.Tier

	Limit     int
	Threshold float32

	// StaffTenantWide lets staff recall their own exchanges from other
	// sessions of the same tenant.
	StaffTenantWide bool
}

// Exchange is one answered user turn.
type Exchange struct {
	TenantID  string
	SessionID string
	Actor     model.Actor
	Sequence  uint64
	User      string
	Assistant string

	// Vectors embed the user text. They are reused from retrieval so that
	// indexing costs no extra provider call.
	Vectors embedding.Vectors
}

// Query searches memory for one turn.
type Query struct {
	TenantID  string
	SessionID string
	Actor     model.Actor
	Vectors   embedding.Vectors
}

// Index stores and searches conversation memory.
type Index struct {
	store vectorstore.Store
	opts  Options
}

// New creates a memory index over store.
func New(store vectorstore.Store, opts Options) *Index {
	if !opts.Tier.Valid() {
		opts.Tier = model.TierBalanced
	}
	if opts.Limit <= 0 {
		opts.Limit = 3
	}
	return &Index{store: store, opts: opts}
}

// visibility tags memory by the clearance of the actor who wrote it.
func visibility(a model.Actor) model.Visibility {
	switch a.Kind {
	case model.ActorStaff:
		return model.VisibilityStaff
	case model.ActorGuest:
		return model.VisibilityGuest
	default:
		return model.VisibilityPublic
	}
}

// Add indexes an exchange.
func (i *Index) Add(ctx context.Context, ex Exchange) error {
	if ex.Vectors.Empty() {
		return fmt.Errorf("memory: exchange has no vectors")
	}

	var b strings.Builder
	b.WriteString("User: ")
	b.WriteString(ex.User)
	if ex.Assistant != "" {
		b.WriteString("\nAssistant: ")
		b.WriteString(ex.Assistant)
	}

	meta := map[string]string{
		KeySession:  ex.SessionID,
		KeyActor:    string(ex.Actor.Kind),
		KeySequence: strconv.FormatUint(ex.Sequence, 10),
	}
	if ex.Actor.UserID != "" {
		meta[KeyUser] = ex.Actor.UserID
	}

	return i.store.Upsert(ctx, []vectorstore.Document{{
		ID:         ex.SessionID + ":" + strconv.FormatUint(ex.Sequence, 10),
		TenantID:   ex.TenantID,
		Collection: Collection,
		Content:    b.String(),
		Visibility: visibility(ex.Actor),
		Metadata:   meta,
		Vectors:    ex.Vectors.All(),
	}})
}

// Search returns prior exchanges similar to the query, most similar first.
func (i *Index) Search(ctx context.Context, q Query) ([]model.Recall, error) {
	if q.Vectors.Empty() {
		return nil, nil
	}

	filter := map[string]string{KeySession: q.SessionID}
	if i.opts.StaffTenantWide && q.Actor.Kind == model.ActorStaff && q.Actor.UserID != "" {
		filter = map[string]string{
			KeyActor: string(model.ActorStaff),
			KeyUser:  q.Actor.UserID,
		}
	}

	results, err := i.store.Search(ctx, vectorstore.Query{
		Vector:     q.Vectors.At(i.opts.Tier),
		Tier:       i.opts.Tier,
		TenantID:   q.TenantID,
		Collection: Collection,
		Visibility: model.AllowedVisibilities(q.Actor.Clearance()),
		Metadata:   filter,
		Threshold:  i.opts.Threshold,
		Limit:      i.opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}

	recalls := make([]model.Recall, 0, len(results))
	for _, r := range results {
		recalls = append(recalls, model.Recall{
			SessionID: r.Metadata[KeySession],
			Content:   r.Content,
			Score:     r.Score,
		})
	}
	return recalls, nil
}
