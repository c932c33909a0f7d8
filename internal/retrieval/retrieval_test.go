package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toneill57/innpilot-sub001/internal/catalog"
	"github.com/toneill57/innpilot-sub001/internal/embedding"
	"github.com/toneill57/innpilot-sub001/internal/model"
	"github.com/toneill57/innpilot-sub001/internal/vectorstore"
)

type fakeStore struct {
	mu      sync.Mutex
	results map[string]map[model.Tier][]vectorstore.Result
	block   map[string]bool
	fail    map[string]error
	queries []vectorstore.Query
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		results: make(map[string]map[model.Tier][]vectorstore.Result),
		block:   make(map[string]bool),
		fail:    make(map[string]error),
	}
}

func (f *fakeStore) add(collection string, tier model.Tier, rs ...vectorstore.Result) {
	if f.results[collection] == nil {
		f.results[collection] = make(map[model.Tier][]vectorstore.Result)
	}
	f.results[collection][tier] = append(f.results[collection][tier], rs...)
}

func (f *fakeStore) Search(ctx context.Context, q vectorstore.Query) ([]vectorstore.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	blocked, err := f.block[q.Collection], f.fail[q.Collection]
	rs := f.results[q.Collection][q.Tier]
	f.mu.Unlock()

	if blocked {
		// Ignores cancellation on purpose.
		time.Sleep(time.Second)
	}
	if err != nil {
		return nil, err
	}
	return vectorstore.Rank(append([]vectorstore.Result(nil), rs...), q.Threshold, q.Limit), nil
}

func (f *fakeStore) Upsert(context.Context, []vectorstore.Document) error { return nil }
func (f *fakeStore) Close() error                                         { return nil }

func (f *fakeStore) tiersQueried() []model.Tier {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Tier
	for _, q := range f.queries {
		if len(out) == 0 || out[len(out)-1] != q.Tier {
			out = append(out, q.Tier)
		}
	}
	return out
}

var testDims = embedding.Dimensions{model.TierFast: 2, model.TierBalanced: 3, model.TierFull: 4}

func request(actor model.ActorKind, query string) Request {
	return Request{
		TenantID: "hotel-a",
		Actor:    model.Actor{Kind: actor},
		Query:    query,
		Vectors:  embedding.FromFull([]float32{1, 0, 0, 0}, testDims),
	}
}

func res(id string, score float32, content string) vectorstore.Result {
	return vectorstore.Result{ID: id, Score: score, Content: content, Visibility: model.VisibilityPublic}
}

func TestRetrieve_EscalatesOnlyOnEmpty(t *testing.T) {
	store := newFakeStore()
	store.add(catalog.Policy, model.TierBalanced, res("wifi", 0.8, "WiFi is free"))
	store.add(catalog.Policy, model.TierFull, res("wifi-full", 0.9, "WiFi is free"))

	o := New(store, catalog.Default(), DefaultConfig(), nil)
	out, err := o.Retrieve(context.Background(), request(model.ActorGuest, "What about WiFi?"))
	require.NoError(t, err)

	assert.Equal(t, model.TierBalanced, out.Tier)
	assert.True(t, out.Escalated)
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "wifi", out.Documents[0].ID)
	assert.Equal(t, model.TierBalanced, out.Documents[0].Tier)
	assert.Equal(t, []model.Tier{model.TierFast, model.TierBalanced}, store.tiersQueried())
}

func TestRetrieve_ZeroResultsEverywhere(t *testing.T) {
	store := newFakeStore()
	o := New(store, catalog.Default(), DefaultConfig(), nil)

	out, err := o.Retrieve(context.Background(), request(model.ActorGuest, "anything"))
	require.NoError(t, err)
	assert.Empty(t, out.Documents)
	assert.Equal(t, model.TierFull, out.Tier)
	assert.Equal(t, model.Tiers, store.tiersQueried())
}

func TestRetrieve_EscalationDisabled(t *testing.T) {
	store := newFakeStore()
	cfg := DefaultConfig()
	cfg.EscalateOnEmpty = false
	o := New(store, catalog.Default(), cfg, nil)

	out, err := o.Retrieve(context.Background(), request(model.ActorGuest, "anything"))
	require.NoError(t, err)
	assert.Equal(t, model.TierFast, out.Tier)
	assert.False(t, out.Escalated)
}

func TestRetrieve_ComplianceStaffStartsAtFullTier(t *testing.T) {
	store := newFakeStore()
	o := New(store, catalog.Default(), DefaultConfig(), nil)

	_, err := o.Retrieve(context.Background(), request(model.ActorStaff, "What are the SIRE migration reporting rules?"))
	require.NoError(t, err)
	assert.Equal(t, []model.Tier{model.TierFull}, store.tiersQueried())

	guestStore := newFakeStore()
	o = New(guestStore, catalog.Default(), DefaultConfig(), nil)
	_, err = o.Retrieve(context.Background(), request(model.ActorGuest, "What are the SIRE migration reporting rules?"))
	require.NoError(t, err)
	assert.Equal(t, model.TierFast, guestStore.tiersQueried()[0])
}

func TestRetrieve_VisibilityFollowsActor(t *testing.T) {
	store := newFakeStore()
	o := New(store, catalog.Default(), DefaultConfig(), nil)

	_, err := o.Retrieve(context.Background(), request(model.ActorAnonymous, "hi"))
	require.NoError(t, err)
	for _, q := range store.queries {
		assert.Equal(t, []model.Visibility{model.VisibilityPublic}, q.Visibility)
		assert.Equal(t, "hotel-a", q.TenantID)
	}
}

func TestRetrieve_MergeTiesByCollectionPriority(t *testing.T) {
	store := newFakeStore()
	store.add(catalog.Tourism, model.TierFast, res("boat-tour", 0.7, "Boat tours leave at 9"))
	store.add(catalog.Accommodation, model.TierFast, res("suite-view", 0.7, "The suite has a sea view"))
	store.add(catalog.Policy, model.TierFast, res("checkin", 0.9, "Check-in from 3pm"))
	o := New(store, catalog.Default(), DefaultConfig(), nil)

	out, err := o.Retrieve(context.Background(), request(model.ActorGuest, "Tell me more"))
	require.NoError(t, err)
	require.Len(t, out.Documents, 3)
	assert.Equal(t, "checkin", out.Documents[0].ID)
	assert.Equal(t, "suite-view", out.Documents[1].ID, "accommodation outranks tourism on equal score")
	assert.Equal(t, "boat-tour", out.Documents[2].ID)

	// A tourism-flavoured query lifts tourism above accommodation.
	out, err = o.Retrieve(context.Background(), request(model.ActorGuest, "Any boat tour tomorrow?"))
	require.NoError(t, err)
	assert.Equal(t, "boat-tour", out.Documents[1].ID)
}

func TestRetrieve_CollectionFailuresDegrade(t *testing.T) {
	store := newFakeStore()
	store.add(catalog.Policy, model.TierFast, res("wifi", 0.8, "WiFi is free"))
	store.block[catalog.Tourism] = true
	store.fail[catalog.Accommodation] = errors.New("connection refused")

	cfg := DefaultConfig()
	cfg.CollectionTimeout = 50 * time.Millisecond
	o := New(store, catalog.Default(), cfg, nil)

	start := time.Now()
	out, err := o.Retrieve(context.Background(), request(model.ActorGuest, "wifi"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond, "a stuck collection must not hold the turn")

	require.Len(t, out.Documents, 1)
	assert.Equal(t, "wifi", out.Documents[0].ID)
	assert.ElementsMatch(t, []string{catalog.Tourism, catalog.Accommodation}, out.Degraded)
}

func TestRetrieve_Caps(t *testing.T) {
	store := newFakeStore()
	for i, id := range []string{"a", "b", "c", "d"} {
		store.add(catalog.Policy, model.TierFast, res(id, 0.9-float32(i)*0.1, strings.Repeat("x", 40)))
	}

	cfg := DefaultConfig()
	cfg.MaxDocs = 3
	cfg.MaxChars = 100
	o := New(store, catalog.Default(), cfg, nil)

	out, err := o.Retrieve(context.Background(), request(model.ActorGuest, "x"))
	require.NoError(t, err)
	require.Len(t, out.Documents, 2, "third document would exceed the character budget")

	cfg.MaxChars = 10
	o = New(store, catalog.Default(), cfg, nil)
	out, err = o.Retrieve(context.Background(), request(model.ActorGuest, "x"))
	require.NoError(t, err)
	require.Len(t, out.Documents, 1)
	assert.Len(t, out.Documents[0].Content, 10)
}

func TestRetrieve_Validation(t *testing.T) {
	o := New(newFakeStore(), nil, DefaultConfig(), nil)
	_, err := o.Retrieve(context.Background(), Request{Vectors: embedding.FromFull([]float32{1}, testDims)})
	assert.ErrorIs(t, err, vectorstore.ErrMissingTenant)

	_, err = o.Retrieve(context.Background(), Request{TenantID: "t"})
	assert.Error(t, err)
}

func TestIsComplianceSensitive(t *testing.T) {
	assert.True(t, IsComplianceSensitive("How do we file the tourism tax?"))
	assert.True(t, IsComplianceSensitive("TRA registration deadline"))
	assert.False(t, IsComplianceSensitive("Is there an extra bed?"))
	assert.False(t, IsComplianceSensitive("What's the best restaurant?"))
}
