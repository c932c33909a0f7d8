// Package engine handles one conversational turn end to end: cache,
// intent, tiered retrieval, conversation memory, completion and the
// session update.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/toneill57/innpilot-sub001/internal/cache"
	"github.com/toneill57/innpilot-sub001/internal/completion"
	"github.com/toneill57/innpilot-sub001/internal/embedding"
	"github.com/toneill57/innpilot-sub001/internal/intent"
	"github.com/toneill57/innpilot-sub001/internal/llm"
	"github.com/toneill57/innpilot-sub001/internal/memory"
	"github.com/toneill57/innpilot-sub001/internal/model"
	"github.com/toneill57/innpilot-sub001/internal/retrieval"
	"github.com/toneill57/innpilot-sub001/internal/session"
	"github.com/toneill57/innpilot-sub001/pkg/logger"
	"github.com/toneill57/innpilot-sub001/pkg/metrics"
	"github.com/toneill57/innpilot-sub001/pkg/tracing"
)

// Embedder embeds a query once at the full tier and derives the others.
type Embedder interface {
	EmbedTiers(ctx context.Context, text string) (embedding.Vectors, error)
}

// Retriever runs tiered retrieval over the knowledge collections.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error)
}

// Memory searches and indexes conversational recall.
type Memory interface {
	Search(ctx context.Context, q memory.Query) ([]model.Recall, error)
	Add(ctx context.Context, ex memory.Exchange) error
}

// Completer produces the grounded answer.
type Completer interface {
	Complete(ctx context.Context, in completion.Input) (*completion.Output, error)
}

// TurnLog is the durable log of turns and session events.
type TurnLog interface {
	PublishTurn(ctx context.Context, rec *model.TurnRecord) (uint64, error)
	PublishEvent(ctx context.Context, event *model.SessionEvent) (uint64, error)
	ReadTurns(ctx context.Context, tenantID, sessionID string, afterSequence uint64, limit int) ([]model.TurnRecord, uint64, bool, error)
}

// Deps are the collaborators of the engine. Cache, Memory and TurnLog are
// optional.
type Deps struct {
	Sessions  session.Store
	Guard     session.Guard
	Cache     cache.Cache
	Extractor intent.Extractor
	Embedder  Embedder
	Retriever Retriever
	Memory    Memory
	Completer Completer
	TurnLog   TurnLog
}

// Config tunes turn handling.
type Config struct {
	CacheTTL        time.Duration
	TurnTimeout     time.Duration
	MaxMessageRunes int
	MaxIDLength     int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:        cache.DefaultTTL,
		TurnTimeout:     60 * time.Second,
		MaxMessageRunes: 4000,
		MaxIDLength:     128,
	}
}

// Engine handles conversational turns.
type Engine struct {
	deps   Deps
	cfg    Config
	log    *logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// New creates an engine.
func New(deps Deps, cfg Config, log *logger.Logger) (*Engine, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errors.New("engine: session store is required")
	case deps.Embedder == nil:
		return nil, errors.New("engine: embedder is required")
	case deps.Retriever == nil:
		return nil, errors.New("engine: retriever is required")
	case deps.Completer == nil:
		return nil, errors.New("engine: completer is required")
	}
	if deps.Guard == nil {
		deps.Guard = session.NewMemoryGuard()
	}
	if deps.Extractor == nil {
		deps.Extractor = intent.NewKeyword(nil)
	}

	def := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = def.TurnTimeout
	}
	if cfg.MaxMessageRunes <= 0 {
		cfg.MaxMessageRunes = def.MaxMessageRunes
	}
	if cfg.MaxIDLength <= 0 {
		cfg.MaxIDLength = def.MaxIDLength
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Engine{
		deps:   deps,
		cfg:    cfg,
		log:    log.Named("engine"),
		tracer: tracing.Tracer("engine"),
		now:    time.Now,
	}, nil
}

// cachedAnswer is the response cache payload.
type cachedAnswer struct {
	Text     string         `json:"text"`
	Sources  []model.Source `json:"sources"`
	Grounded bool           `json:"grounded"`
	Model    string         `json:"model,omitempty"`
}

// HandleTurn answers one message. A missing session id starts a new
// session. The turn runs to completion even if ctx is cancelled, bounded
// by the turn timeout, so its session and cache effects are not lost when
// the caller goes away.
func (e *Engine) HandleTurn(ctx context.Context, req model.TurnRequest) (*model.TurnResponse, error) {
	start := time.Now()
	req.Message = strings.TrimSpace(req.Message)

	if err := e.validate(req); err != nil {
		metrics.RecordTurn(req.TenantID, string(req.Actor.Kind), string(KindValidation), time.Since(start).Seconds())
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.TurnTimeout)
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "engine.handle_turn", trace.WithAttributes(
		attribute.String("tenant_id", req.TenantID),
		attribute.String("actor", string(req.Actor.Kind)),
	))
	defer span.End()

	resp, err := e.handle(ctx, req)

	outcome := "answered"
	switch {
	case err != nil:
		outcome = string(KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	case resp.Cached:
		outcome = "cached"
	case !resp.Grounded:
		outcome = "ungrounded"
	}
	metrics.RecordTurn(req.TenantID, string(req.Actor.Kind), outcome, time.Since(start).Seconds())
	return resp, err
}

func (e *Engine) validate(req model.TurnRequest) error {
	switch {
	case req.TenantID == "":
		return validationError("tenant is required")
	case !validID(req.TenantID, e.cfg.MaxIDLength):
		return validationError("tenant id is malformed")
	case !req.Actor.Kind.Valid():
		return validationError("unknown actor kind %q", req.Actor.Kind)
	case req.SessionID != "" && !validID(req.SessionID, e.cfg.MaxIDLength):
		return validationError("session id is malformed")
	case req.Message == "":
		return validationError("message is required")
	case utf8.RuneCountInString(req.Message) > e.cfg.MaxMessageRunes:
		return validationError("message exceeds %d characters", e.cfg.MaxMessageRunes)
	}
	return nil
}

func validID(id string, limit int) bool {
	if len(id) > limit {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func (e *Engine) handle(ctx context.Context, req model.TurnRequest) (*model.TurnResponse, error) {
	id := req.SessionID
	if id == "" {
		id = session.NewID()
	}
	log := e.log.ForTurn(req.CorrelationID, req.TenantID, id, string(req.Actor.Kind))

	release, err := e.deps.Guard.Acquire(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			metrics.BusyRejections.Inc()
			log.Info("session busy, turn rejected")
			e.publishEvent(ctx, log, req.TenantID, id, model.EventTypeBusy, "turn already in progress")
			return nil, &Error{Kind: KindBusy, Message: "conversation busy, please resubmit", Err: err}
		}
		return nil, unavailable(fmt.Errorf("acquire session: %w", err))
	}
	defer release()

	sess, err := e.deps.Sessions.GetOrCreate(ctx, id, req.TenantID, req.Actor)
	if err != nil {
		if errors.Is(err, session.ErrOwnerMismatch) {
			return nil, &Error{Kind: KindValidation, Message: "session id is not valid for this caller", Err: err}
		}
		return nil, unavailable(fmt.Errorf("load session: %w", err))
	}

	// Sessions with accumulated intent get answers that depend on it.
	cacheable := e.deps.Cache != nil && sess.Intent.Empty()
	key := cache.Key(req.TenantID, actorClass(req.Actor), req.Message)
	if cacheable {
		if ans, ok := e.lookup(ctx, log, key); ok {
			e.record(ctx, log, sess, req, ans.Text, sourceRefs(ans.Sources), model.Usage{}, embedding.Vectors{})
			return &model.TurnResponse{
				SessionID:    sess.ID,
				ResponseText: ans.Text,
				Sources:      ans.Sources,
				Intent:       model.IntentView{Intent: sess.Intent},
				Grounded:     ans.Grounded,
				Cached:       true,
			}, nil
		}
	}

	partial := e.extract(ctx, req.Message)
	merged, captured, err := e.deps.Sessions.MergeIntent(ctx, sess.ID, partial)
	if err != nil {
		return nil, unavailable(fmt.Errorf("merge intent: %w", err))
	}

	vectors, err := e.embed(ctx, req.Message)
	if err != nil {
		log.Warn("embedding failed", zap.Error(err))
		e.publishEvent(ctx, log, req.TenantID, sess.ID, model.EventTypeError, "embedding failed")
		return nil, providerFailure(err)
	}

	found, recalls, err := e.gather(ctx, log, req, sess.ID, vectors)
	if err != nil {
		return nil, failed(err)
	}
	if len(found.Degraded) > 0 {
		log.Warn("collections degraded", zap.Strings("collections", found.Degraded))
	}

	out, err := e.deps.Completer.Complete(ctx, completion.Input{
		Actor:     req.Actor,
		Message:   req.Message,
		Documents: found.Documents,
		Recalls:   recalls,
		Intent:    merged,
		History:   sess.Turns,
	})
	if err != nil {
		e.publishEvent(ctx, log, req.TenantID, sess.ID, model.EventTypeError, "completion failed")
		return nil, providerFailure(err)
	}

	if cacheable && !captured {
		e.store(ctx, log, key, cachedAnswer{
			Text:     out.Text,
			Sources:  out.Sources,
			Grounded: out.Grounded,
			Model:    out.Usage.Model,
		})
	}

	e.record(ctx, log, sess, req, out.Text, sourceRefs(out.Sources), out.Usage, vectors)

	log.Debug("turn answered",
		zap.String("tier", string(found.Tier)),
		zap.Bool("escalated", found.Escalated),
		zap.Int("documents", len(found.Documents)),
		zap.Int("recalls", len(recalls)),
		zap.Bool("captured", captured),
	)

	return &model.TurnResponse{
		SessionID:    sess.ID,
		ResponseText: out.Text,
		Sources:      out.Sources,
		Intent:       model.IntentView{Intent: merged, CapturedThisMessage: captured},
		Grounded:     out.Grounded,
		Usage:        out.Usage,
	}, nil
}

func (e *Engine) extract(ctx context.Context, text string) model.Intent {
	ctx, span := e.tracer.Start(ctx, "engine.extract_intent")
	defer span.End()
	return e.deps.Extractor.Extract(ctx, text)
}

func (e *Engine) embed(ctx context.Context, text string) (embedding.Vectors, error) {
	ctx, span := e.tracer.Start(ctx, "engine.embed")
	defer span.End()

	vectors, err := e.deps.Embedder.EmbedTiers(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed failed")
	}
	return vectors, err
}

// gather runs knowledge retrieval and memory search in parallel. Memory
// failures degrade to no recall.
func (e *Engine) gather(ctx context.Context, log *logger.Logger, req model.TurnRequest, sessionID string, vectors embedding.Vectors) (*retrieval.Result, []model.Recall, error) {
	var (
		found   *retrieval.Result
		recalls []model.Recall
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := e.deps.Retriever.Retrieve(gctx, retrieval.Request{
			TenantID: req.TenantID,
			Actor:    req.Actor,
			Query:    req.Message,
			Vectors:  vectors,
		})
		if err != nil {
			return fmt.Errorf("retrieve: %w", err)
		}
		found = res
		return nil
	})
	if e.deps.Memory != nil {
		g.Go(func() error {
			res, err := e.deps.Memory.Search(gctx, memory.Query{
				TenantID:  req.TenantID,
				SessionID: sessionID,
				Actor:     req.Actor,
				Vectors:   vectors,
			})
			if err != nil {
				log.Warn("memory search failed", zap.Error(err))
				return nil
			}
			recalls = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return found, recalls, nil
}

func (e *Engine) lookup(ctx context.Context, log *logger.Logger, key string) (cachedAnswer, bool) {
	var ans cachedAnswer

	payload, ok, err := e.deps.Cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		log.Warn("cache read failed", zap.Error(err))
		return ans, false
	case !ok:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return ans, false
	}

	if err := json.Unmarshal(payload, &ans); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		log.Warn("cache entry unreadable", zap.Error(err))
		return ans, false
	}
	if ans.Sources == nil {
		ans.Sources = []model.Source{}
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return ans, true
}

func (e *Engine) store(ctx context.Context, log *logger.Logger, key string, ans cachedAnswer) {
	payload, err := json.Marshal(ans)
	if err == nil {
		err = e.deps.Cache.Put(ctx, key, payload, e.cfg.CacheTTL)
	}
	if err != nil {
		metrics.CacheWriteErrors.Inc()
		log.Warn("cache write failed", zap.Error(err))
	}
}

// record appends the exchange to the session, indexes it as memory when
// vectors are available and publishes it to the turn log. Failures here
// are logged; the answer has already been produced.
func (e *Engine) record(ctx context.Context, log *logger.Logger, sess *model.Session, req model.TurnRequest, answer string, refs []model.SourceRef, usage model.Usage, vectors embedding.Vectors) {
	now := e.now()
	turns, err := e.deps.Sessions.Append(ctx, sess.ID,
		model.Turn{Role: model.RoleUser, Content: req.Message, CreatedAt: now},
		model.Turn{Role: model.RoleAssistant, Content: answer, CreatedAt: now, Sources: refs, TokensIn: usage.TokensIn, TokensOut: usage.TokensOut},
	)
	if err != nil {
		log.Error("session append failed", zap.Error(err))
		return
	}

	if e.deps.Memory != nil && !vectors.Empty() {
		err := e.deps.Memory.Add(ctx, memory.Exchange{
			TenantID:  req.TenantID,
			SessionID: sess.ID,
			Actor:     req.Actor,
			Sequence:  turns[0].Sequence,
			User:      req.Message,
			Assistant: answer,
			Vectors:   vectors,
		})
		if err != nil {
			log.Warn("memory indexing failed", zap.Error(err))
		}
	}

	if e.deps.TurnLog != nil {
		for _, t := range turns {
			_, err := e.deps.TurnLog.PublishTurn(ctx, &model.TurnRecord{
				SessionID: sess.ID,
				TenantID:  req.TenantID,
				Actor:     req.Actor.Kind,
				UserID:    req.Actor.UserID,
				Turn:      t,
			})
			if err != nil {
				log.Warn("turn log publish failed", zap.Uint64("sequence", t.Sequence), zap.Error(err))
			}
		}
	}
}

func (e *Engine) publishEvent(ctx context.Context, log *logger.Logger, tenantID, sessionID string, typ model.EventType, reason string) {
	if e.deps.TurnLog == nil {
		return
	}
	_, err := e.deps.TurnLog.PublishEvent(ctx, &model.SessionEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SessionID: sessionID,
		TenantID:  tenantID,
		Type:      typ,
		Reason:    reason,
		CreatedAt: e.now(),
	})
	if err != nil {
		log.Warn("event publish failed", zap.String("event", string(typ)), zap.Error(err))
	}
}

// Session returns a snapshot of a session owned by actor within tenantID.
// A session owned by anyone else reads as not found.
func (e *Engine) Session(ctx context.Context, tenantID string, actor model.Actor, sessionID string) (*model.Session, error) {
	sess, err := e.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, notFound()
		}
		return nil, unavailable(fmt.Errorf("load session: %w", err))
	}
	if session.CheckOwner(sess, tenantID, actor) != nil {
		return nil, notFound()
	}
	return sess, nil
}

// EndSession removes a session on explicit logout.
func (e *Engine) EndSession(ctx context.Context, tenantID string, actor model.Actor, sessionID string) error {
	if _, err := e.Session(ctx, tenantID, actor, sessionID); err != nil {
		return err
	}
	if err := e.deps.Sessions.Delete(ctx, sessionID); err != nil {
		return unavailable(fmt.Errorf("delete session: %w", err))
	}
	log := e.log.ForSession(tenantID, sessionID)
	log.Info("session ended")
	e.publishEvent(ctx, log, tenantID, sessionID, model.EventTypeLogout, "logout")
	return nil
}

// History replays a session's turns from the durable log. The log outlives
// the session, so once the session has expired every record must carry the
// caller's identity.
func (e *Engine) History(ctx context.Context, tenantID string, actor model.Actor, sessionID string, afterSequence uint64, limit int) ([]model.TurnRecord, uint64, bool, error) {
	if e.deps.TurnLog == nil {
		return nil, 0, false, &Error{Kind: KindUnavailable, Message: "turn history is not enabled"}
	}
	if !validID(sessionID, e.cfg.MaxIDLength) {
		return nil, 0, false, validationError("session id is malformed")
	}
	live := true
	sess, err := e.deps.Sessions.Get(ctx, sessionID)
	switch {
	case err == nil:
		if session.CheckOwner(sess, tenantID, actor) != nil {
			return nil, 0, false, notFound()
		}
	case errors.Is(err, session.ErrNotFound):
		live = false
	default:
		return nil, 0, false, unavailable(fmt.Errorf("load session: %w", err))
	}
	records, last, more, err := e.deps.TurnLog.ReadTurns(ctx, tenantID, sessionID, afterSequence, limit)
	if err != nil {
		return nil, 0, false, unavailable(fmt.Errorf("read turn log: %w", err))
	}
	if !live {
		for _, r := range records {
			if r.Actor != actor.Kind || r.UserID != actor.UserID {
				return nil, 0, false, notFound()
			}
		}
	}
	return records, last, more, nil
}

// Expired is a session.ExpiredFunc that logs sessions removed by the sweep.
func (e *Engine) Expired(_ context.Context, ids []string) {
	e.log.Info("sessions expired", zap.Int("count", len(ids)), zap.Strings("session_ids", ids))
}

// actorClass scopes cache entries to what the actor may see and how it is
// addressed.
func actorClass(a model.Actor) string {
	return string(a.Kind) + ":" + string(a.Clearance())
}

func sourceRefs(sources []model.Source) []model.SourceRef {
	if len(sources) == 0 {
		return nil
	}
	refs := make([]model.SourceRef, len(sources))
	for i, s := range sources {
		refs[i] = model.SourceRef{ID: s.ID, Collection: s.Collection}
	}
	return refs
}

// providerFailure maps an error that survived provider retries.
func providerFailure(err error) *Error {
	var pe *llm.ProviderError
	if errors.As(err, &pe) && !pe.Transient {
		return failed(err)
	}
	return unavailable(err)
}
