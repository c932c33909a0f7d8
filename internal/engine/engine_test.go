package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toneill57/innpilot-sub001/internal/cache"
	"github.com/toneill57/innpilot-sub001/internal/catalog"
	"github.com/toneill57/innpilot-sub001/internal/completion"
	"github.com/toneill57/innpilot-sub001/internal/embedding"
	"github.com/toneill57/innpilot-sub001/internal/intent"
	"github.com/toneill57/innpilot-sub001/internal/llm"
	"github.com/toneill57/innpilot-sub001/internal/memory"
	"github.com/toneill57/innpilot-sub001/internal/model"
	"github.com/toneill57/innpilot-sub001/internal/retrieval"
	"github.com/toneill57/innpilot-sub001/internal/session"
	"github.com/toneill57/innpilot-sub001/internal/vectorstore"
	"github.com/toneill57/innpilot-sub001/internal/vectorstore/chromem"
)

const tenant = "T"

var (
	dims  = embedding.Dimensions{model.TierFast: 2, model.TierBalanced: 4, model.TierFull: 4}
	guest = model.Actor{Kind: model.ActorGuest, UserID: "g-1"}
)

func fixedClock() time.Time {
	return time.Date(2025, 5, 20, 9, 30, 0, 0, time.UTC)
}

// topicEmbedder maps a few topics to fixed directions.
type topicEmbedder struct {
	calls atomic.Int32
	err   error
}

func (e *topicEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = topicVector(t)
	}
	return out, nil
}

func topicVector(text string) []float32 {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "check-out"):
		return []float32{1, 0, 0, 0}
	case strings.Contains(lower, "wifi"):
		return []float32{0, 1, 0, 0}
	case strings.Contains(lower, "rooms"):
		return []float32{0.6, 0.8, 0, 1}
	}
	return []float32{-1, -1, 0, 0}
}

// scriptedClient answers completions with a fixed text and extraction
// requests with an empty object.
type scriptedClient struct {
	mu          sync.Mutex
	completions int
	extractions int
	last        *llm.CompletionRequest
	err         error
}

func (c *scriptedClient) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req.JSON {
		c.extractions++
		return &llm.CompletionResponse{Content: "{}", Model: "extract"}, nil
	}
	c.completions++
	c.last = req
	if c.err != nil {
		return nil, c.err
	}
	return &llm.CompletionResponse{Content: "Here is what I found.", Model: "test-model", TokensIn: 200, TokensOut: 12}, nil
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completions, c.extractions
}

func (c *scriptedClient) lastSystem() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.System
}

type fakeTurnLog struct {
	mu      sync.Mutex
	turns   []model.TurnRecord
	events  []model.SessionEvent
	failing bool
}

func (l *fakeTurnLog) PublishTurn(_ context.Context, rec *model.TurnRecord) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failing {
		return 0, errors.New("log down")
	}
	l.turns = append(l.turns, *rec)
	return uint64(len(l.turns)), nil
}

func (l *fakeTurnLog) PublishEvent(_ context.Context, event *model.SessionEvent) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, *event)
	return uint64(len(l.events)), nil
}

func (l *fakeTurnLog) ReadTurns(_ context.Context, tenantID, sessionID string, after uint64, limit int) ([]model.TurnRecord, uint64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.TurnRecord
	for _, r := range l.turns {
		if r.TenantID == tenantID && r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, uint64(len(out)), false, nil
}

func (l *fakeTurnLog) eventTypes() []model.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.EventType
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}

func (brokenCache) Put(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}

func (brokenCache) Delete(context.Context, string) error { return nil }
func (brokenCache) Close() error { return nil }

type harness struct {
	engine   *Engine
	embedder *topicEmbedder
	client   *scriptedClient
	sessions *session.Memory
	guard    *session.MemoryGuard
	turnLog  *fakeTurnLog
}

func newHarness(t *testing.T, mutate ...func(*Deps)) *harness {
	t.Helper()

	store := chromem.New()
	seed(t, store, "checkout-policy", catalog.Policy, "Check-out policy", "Check-out is at 11:00.", 1, 0, 0, 0)
	seed(t, store, "wifi", catalog.Accommodation, "Internet", "WiFi is free in every room; the network is CasaMar.", 0, 1, 0, 0)

	h := &harness{
		embedder: &topicEmbedder{},
		client:   &scriptedClient{},
		sessions: session.NewMemory(session.Options{}),
		guard:    session.NewMemoryGuard(),
		turnLog:  &fakeTurnLog{},
	}

	provider, err := embedding.NewProvider(h.embedder, dims)
	require.NoError(t, err)

	rcfg := retrieval.DefaultConfig()
	rcfg.Threshold = 0.5

	deps := Deps{
		Sessions:  h.sessions,
		Guard:     h.guard,
		Cache:     cache.NewMemory(0),
		Extractor: intent.NewFastPath(intent.NewKeyword(fixedClock), intent.NewLLM(h.client, "extract", fixedClock, nil)),
		Embedder:  provider,
		Retriever: retrieval.New(store, catalog.Default(), rcfg, nil),
		Memory:    memory.New(store, memory.Options{Threshold: 0.5}),
		Completer: completion.New(h.client, completion.Config{Model: "test-model"}, nil),
		TurnLog:   h.turnLog,
	}
	for _, m := range mutate {
		m(&deps)
	}

	h.engine, err = New(deps, Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Cache.Close() })
	return h
}

func seed(t *testing.T, store vectorstore.Store, id, collection, title, content string, vec ...float32) {
	t.Helper()
	err := store.Upsert(context.Background(), []vectorstore.Document{{
		ID:         id,
		TenantID:   tenant,
		Collection: collection,
		Title:      title,
		Content:    content,
		Visibility: model.VisibilityPublic,
		Vectors:    embedding.FromFull(vec, dims).All(),
	}})
	require.NoError(t, err)
}

func (h *harness) turn(t *testing.T, sessionID, message string) *model.TurnResponse {
	t.Helper()
	resp, err := h.engine.HandleTurn(context.Background(), model.TurnRequest{
		SessionID: sessionID,
		TenantID:  tenant,
		Actor:     guest,
		Message:   message,
	})
	require.NoError(t, err)
	return resp
}

func TestHandleTurn_BookingThenFollowUp(t *testing.T) {
	h := newHarness(t)

	first := h.turn(t, "", "Do you have rooms for 4 guests from June 10 to June 15?")
	require.NotEmpty(t, first.SessionID)
	assert.True(t, first.Intent.CapturedThisMessage)
	require.NotNil(t, first.Intent.StartDate)
	require.NotNil(t, first.Intent.EndDate)
	require.NotNil(t, first.Intent.PartySize)
	assert.Equal(t, "2025-06-10", *first.Intent.StartDate)
	assert.Equal(t, "2025-06-15", *first.Intent.EndDate)
	assert.Equal(t, 4, *first.Intent.PartySize)
	assert.True(t, first.Intent.Complete)
	assert.False(t, first.Cached)

	second := h.turn(t, first.SessionID, "What about WiFi?")
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.False(t, second.Intent.CapturedThisMessage)
	assert.Equal(t, first.Intent.StartDate, second.Intent.StartDate)
	assert.Equal(t, first.Intent.EndDate, second.Intent.EndDate)
	assert.Equal(t, first.Intent.PartySize, second.Intent.PartySize)
	assert.True(t, second.Intent.Complete)
	require.NotEmpty(t, second.Sources)
	assert.Equal(t, "wifi", second.Sources[0].ID)
	assert.True(t, second.Grounded)
	assert.Contains(t, h.client.lastSystem(), "- Arrival: 2025-06-10")

	completions, extractions := h.client.counts()
	assert.Equal(t, 2, completions)
	assert.Equal(t, 0, extractions, "keyword fast path covers both messages")

	sess, err := h.engine.Session(context.Background(), tenant, guest, first.SessionID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, sess.TurnCount)
	require.Len(t, sess.Turns, 4)
	assert.Equal(t, model.RoleUser, sess.Turns[2].Role)
	assert.Equal(t, "What about WiFi?", sess.Turns[2].Content)
}

func TestHandleTurn_ZeroResultsStillAnswers(t *testing.T) {
	h := newHarness(t)

	resp := h.turn(t, "", "Tell me about the moon landing")
	assert.NotEmpty(t, resp.ResponseText)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	assert.False(t, resp.Grounded)
	assert.Contains(t, resp.ResponseText, completion.UngroundedCaveat)
}

func TestHandleTurn_CacheHitEquivalence(t *testing.T) {
	h := newHarness(t)

	first := h.turn(t, "", "What time is check-out?")
	second := h.turn(t, "", "  what time is CHECK-OUT?  ")

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.ResponseText, second.ResponseText)
	assert.Equal(t, first.Sources, second.Sources)
	assert.Equal(t, first.Grounded, second.Grounded)

	completions, extractions := h.client.counts()
	assert.Equal(t, 1, completions+extractions)
	assert.EqualValues(t, 1, h.embedder.calls.Load())

	sess, err := h.engine.Session(context.Background(), tenant, guest, second.SessionID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, sess.TurnCount, "cache hits are still recorded on the session")
}

func TestHandleTurn_CacheScopedByActorClass(t *testing.T) {
	h := newHarness(t)

	h.turn(t, "", "What time is check-out?")
	resp, err := h.engine.HandleTurn(context.Background(), model.TurnRequest{
		TenantID: tenant,
		Actor:    model.Actor{Kind: model.ActorStaff, UserID: "ana"},
		Message:  "What time is check-out?",
	})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.EqualValues(t, 2, h.embedder.calls.Load())
}

func TestHandleTurn_CapturingTurnsAreNotCached(t *testing.T) {
	h := newHarness(t)

	h.turn(t, "", "Do you have rooms for 4 guests from June 10 to June 15?")
	resp := h.turn(t, "", "Do you have rooms for 4 guests from June 10 to June 15?")
	assert.False(t, resp.Cached)
	assert.EqualValues(t, 2, h.embedder.calls.Load())
}

func TestHandleTurn_SessionWithIntentSkipsCache(t *testing.T) {
	h := newHarness(t)

	h.turn(t, "", "What time is check-out?")
	booking := h.turn(t, "", "Do you have rooms for 4 guests from June 10 to June 15?")

	resp := h.turn(t, booking.SessionID, "What time is check-out?")
	assert.False(t, resp.Cached)
	assert.True(t, resp.Intent.Complete)
}

func TestHandleTurn_CacheFailureIsAbsorbed(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Cache = brokenCache{} })

	first := h.turn(t, "", "What time is check-out?")
	second := h.turn(t, "", "What time is check-out?")
	assert.False(t, first.Cached)
	assert.False(t, second.Cached)
	assert.Equal(t, first.ResponseText, second.ResponseText)
}

func TestHandleTurn_RecallFromSameSession(t *testing.T) {
	h := newHarness(t)

	first := h.turn(t, "", "What time is check-out?")
	h.turn(t, first.SessionID, "Is a late check-out possible?")

	assert.Contains(t, h.client.lastSystem(), "User: What time is check-out?")
}

func TestHandleTurn_PublishesTurns(t *testing.T) {
	h := newHarness(t)

	resp := h.turn(t, "", "What time is check-out?")

	h.turnLog.mu.Lock()
	defer h.turnLog.mu.Unlock()
	require.Len(t, h.turnLog.turns, 2)
	assert.Equal(t, resp.SessionID, h.turnLog.turns[0].SessionID)
	assert.Equal(t, model.RoleUser, h.turnLog.turns[0].Turn.Role)
	assert.EqualValues(t, 1, h.turnLog.turns[0].Turn.Sequence)
	assert.Equal(t, model.RoleAssistant, h.turnLog.turns[1].Turn.Role)
	assert.EqualValues(t, 2, h.turnLog.turns[1].Turn.Sequence)
	assert.Equal(t, 200, h.turnLog.turns[1].Turn.TokensIn)
	require.Len(t, h.turnLog.turns[1].Turn.Sources, 1)
	assert.Equal(t, "checkout-policy", h.turnLog.turns[1].Turn.Sources[0].ID)
}

func TestHandleTurn_TurnLogFailureIsAbsorbed(t *testing.T) {
	h := newHarness(t)
	h.turnLog.failing = true

	resp := h.turn(t, "", "What time is check-out?")
	assert.NotEmpty(t, resp.ResponseText)
}

func TestHandleTurn_Busy(t *testing.T) {
	h := newHarness(t)

	release, err := h.guard.Acquire(context.Background(), "s-busy")
	require.NoError(t, err)
	defer release()

	_, err = h.engine.HandleTurn(context.Background(), model.TurnRequest{
		SessionID: "s-busy",
		TenantID:  tenant,
		Actor:     guest,
		Message:   "What time is check-out?",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, KindBusy, KindOf(err))
	assert.EqualValues(t, 0, h.embedder.calls.Load())
	assert.Contains(t, h.turnLog.eventTypes(), model.EventTypeBusy)
}

func TestHandleTurn_ConcurrentTurnsOnOneSession(t *testing.T) {
	h := newHarness(t)
	first := h.turn(t, "", "What time is check-out?")

	var (
		wg   sync.WaitGroup
		ok   atomic.Int32
		busy atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.HandleTurn(context.Background(), model.TurnRequest{
				SessionID: first.SessionID,
				TenantID:  tenant,
				Actor:     guest,
				Message:   "Is a late check-out possible?",
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrBusy):
				busy.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 8, ok.Load()+busy.Load())
	assert.GreaterOrEqual(t, ok.Load(), int32(1))

	sess, err := h.engine.Session(context.Background(), tenant, guest, first.SessionID)
	require.NoError(t, err)
	assert.EqualValues(t, 2+2*int(ok.Load()), sess.TurnCount)
	for i, turn := range sess.Turns {
		assert.EqualValues(t, i+1, turn.Sequence)
	}
}

func TestHandleTurn_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		req  model.TurnRequest
	}{
		{"missing tenant", model.TurnRequest{Actor: guest, Message: "hi"}},
		{"blank message", model.TurnRequest{TenantID: tenant, Actor: guest, Message: "   "}},
		{"unknown actor", model.TurnRequest{TenantID: tenant, Actor: model.Actor{Kind: "robot"}, Message: "hi"}},
		{"long message", model.TurnRequest{TenantID: tenant, Actor: guest, Message: strings.Repeat("a", 4001)}},
		{"malformed session", model.TurnRequest{SessionID: "has space", TenantID: tenant, Actor: guest, Message: "hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.HandleTurn(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	completions, extractions := h.client.counts()
	assert.Zero(t, completions+extractions)
	assert.Zero(t, h.embedder.calls.Load())
}

func TestHandleTurn_ForeignSession(t *testing.T) {
	h := newHarness(t)
	resp := h.turn(t, "", "What time is check-out?")

	_, err := h.engine.HandleTurn(context.Background(), model.TurnRequest{
		SessionID: resp.SessionID,
		TenantID:  "other-tenant",
		Actor:     guest,
		Message:   "What time is check-out?",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestHandleTurn_AnotherGuestCannotContinue(t *testing.T) {
	h := newHarness(t)
	resp := h.turn(t, "", "What time is check-out?")

	_, err := h.engine.HandleTurn(context.Background(), model.TurnRequest{
		SessionID: resp.SessionID,
		TenantID:  tenant,
		Actor:     model.Actor{Kind: model.ActorGuest, UserID: "g-OTHER"},
		Message:   "What did I ask before?",
	})
	assert.ErrorIs(t, err, ErrValidation)

	sess, err := h.engine.Session(context.Background(), tenant, guest, resp.SessionID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, sess.TurnCount, "foreign turn left no trace")
}

func TestHandleTurn_ProviderFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"transient", &llm.ProviderError{Provider: "scripted", Op: "complete", StatusCode: 503, Transient: true, Err: errors.New("overloaded")}, KindUnavailable},
		{"permanent", &llm.ProviderError{Provider: "scripted", Op: "complete", StatusCode: 401, Err: errors.New("bad key")}, KindFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.client.err = tt.err

			_, err := h.engine.HandleTurn(context.Background(), model.TurnRequest{TenantID: tenant, Actor: guest, Message: "What time is check-out?"})
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))

			var pe *llm.ProviderError
			assert.ErrorAs(t, err, &pe)
			assert.NotContains(t, err.(*Error).Message, "bad key")
			assert.Contains(t, h.turnLog.eventTypes(), model.EventTypeError)

			h.client.mu.Lock()
			h.client.err = nil
			h.client.mu.Unlock()
			resp := h.turn(t, "", "What time is check-out?")
			assert.False(t, resp.Cached, "failed turns are never cached")
		})
	}
}

func TestHandleTurn_EmbeddingFailure(t *testing.T) {
	h := newHarness(t)
	h.embedder.err = &llm.ProviderError{Provider: "openai", Op: "embed", StatusCode: 502, Transient: true, Err: errors.New("bad gateway")}

	_, err := h.engine.HandleTurn(context.Background(), model.TurnRequest{TenantID: tenant, Actor: guest, Message: "What time is check-out?"})
	assert.ErrorIs(t, err, ErrUnavailable)

	completions, _ := h.client.counts()
	assert.Zero(t, completions)
}

func TestHandleTurn_SurvivesCallerCancellation(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := h.engine.HandleTurn(ctx, model.TurnRequest{TenantID: tenant, Actor: guest, Message: "What time is check-out?"})
	require.NoError(t, err)

	sess, err := h.engine.Session(context.Background(), tenant, guest, resp.SessionID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, sess.TurnCount)
}

func TestEndSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	resp := h.turn(t, "", "What time is check-out?")

	assert.ErrorIs(t, h.engine.EndSession(ctx, "other-tenant", guest, resp.SessionID), ErrNotFound)

	require.NoError(t, h.engine.EndSession(ctx, tenant, guest, resp.SessionID))
	_, err := h.engine.Session(ctx, tenant, guest, resp.SessionID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, h.turnLog.eventTypes(), model.EventTypeLogout)

	assert.ErrorIs(t, h.engine.EndSession(ctx, tenant, guest, resp.SessionID), ErrNotFound)
}

func TestSessionReads_RequireSameActor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := model.Actor{Kind: model.ActorStaff, UserID: "s-1"}

	resp, err := h.engine.HandleTurn(ctx, model.TurnRequest{TenantID: tenant, Actor: staff, Message: "What time is check-out?"})
	require.NoError(t, err)

	others := map[string]model.Actor{
		"guest":       guest,
		"other staff": {Kind: model.ActorStaff, UserID: "s-2"},
		"anonymous":   {Kind: model.ActorAnonymous},
	}
	for name, actor := range others {
		t.Run(name, func(t *testing.T) {
			_, err := h.engine.Session(ctx, tenant, actor, resp.SessionID)
			assert.ErrorIs(t, err, ErrNotFound)
			_, _, _, err = h.engine.History(ctx, tenant, actor, resp.SessionID, 0, 50)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, h.engine.EndSession(ctx, tenant, actor, resp.SessionID), ErrNotFound)
		})
	}

	sess, err := h.engine.Session(ctx, tenant, staff, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "s-1", sess.UserID)
}

func TestHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	resp := h.turn(t, "", "What time is check-out?")

	records, _, _, err := h.engine.History(ctx, tenant, guest, resp.SessionID, 0, 50)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, guest.UserID, records[0].UserID)

	// The log outlives the session; records still answer only their owner.
	require.NoError(t, h.engine.EndSession(ctx, tenant, guest, resp.SessionID))
	records, _, _, err = h.engine.History(ctx, tenant, guest, resp.SessionID, 0, 50)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	_, _, _, err = h.engine.History(ctx, tenant, model.Actor{Kind: model.ActorGuest, UserID: "g-OTHER"}, resp.SessionID, 0, 50)
	assert.ErrorIs(t, err, ErrNotFound)

	noLog := newHarness(t, func(d *Deps) { d.TurnLog = nil })
	_, _, _, err = noLog.engine.History(ctx, tenant, guest, resp.SessionID, 0, 50)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Deps{}, Config{}, nil)
	assert.Error(t, err)
}

func TestErrorKinds(t *testing.T) {
	err := wrapped(&Error{Kind: KindBusy, Message: "busy"})
	assert.ErrorIs(t, err, ErrBusy)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, KindBusy, KindOf(err))
	assert.Equal(t, KindFailed, KindOf(errors.New("plain")))
	assert.Equal(t, "not_found", (&Error{Kind: KindNotFound}).Error())
}

func wrapped(err error) error {
	return errors.Join(errors.New("context"), err)
}
