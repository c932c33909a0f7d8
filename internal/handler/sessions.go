package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/toneill57/innpilot-sub001/internal/middleware"
	"github.com/toneill57/innpilot-sub001/internal/model"
	"github.com/toneill57/innpilot-sub001/pkg/logger"
	"github.com/toneill57/innpilot-sub001/pkg/metrics"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// Sessions exposes session state and durable history.
type Sessions interface {
	Session(ctx context.Context, tenantID string, actor model.Actor, sessionID string) (*model.Session, error)
	EndSession(ctx context.Context, tenantID string, actor model.Actor, sessionID string) error
	History(ctx context.Context, tenantID string, actor model.Actor, sessionID string, afterSequence uint64, limit int) ([]model.TurnRecord, uint64, bool, error)
}

// SessionHandler handles session endpoints.
type SessionHandler struct {
	sessions Sessions
	logger   *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions Sessions, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   log,
	}
}

// ReplayCompleteEvent marks the end of a history replay.
type ReplayCompleteEvent struct {
	LastSequence uint64 `json:"last_sequence"`
	TurnCount    int    `json:"turn_count"`
}

// Get handles GET /api/v1/chat/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")
	if err := middleware.ValidateSessionID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	actor, ok := middleware.GetActor(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	sess, err := h.sessions.Session(ctx, middleware.GetTenantID(ctx), actor, sessionID)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	turns := sess.Turns
	if turns == nil {
		turns = []model.Turn{}
	}
	writeJSON(w, http.StatusOK, &model.SessionSnapshot{
		ID:           sess.ID,
		Actor:        string(sess.Actor),
		TurnCount:    sess.TurnCount,
		Intent:       sess.Intent,
		Turns:        turns,
		LastActivity: sess.LastActivity.UTC().Format(time.RFC3339),
	})
}

// Delete handles DELETE /api/v1/chat/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")
	if err := middleware.ValidateSessionID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	actor, ok := middleware.GetActor(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	if err := h.sessions.EndSession(ctx, middleware.GetTenantID(ctx), actor, sessionID); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /api/v1/chat/sessions/{id}/history
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")
	if err := middleware.ValidateSessionID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	actor, ok := middleware.GetActor(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	afterSequence, limit := pageParams(r)
	records, last, more, err := h.sessions.History(ctx, middleware.GetTenantID(ctx), actor, sessionID, afterSequence, limit)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	if records == nil {
		records = []model.TurnRecord{}
	}

	writeJSON(w, http.StatusOK, &model.ListTurnsResponse{
		Turns:        records,
		HasMore:      more,
		LastSequence: last,
	})
}

// Stream handles GET /api/v1/chat/sessions/{id}/history/stream
// It replays the durable history as server-sent events, starting after
// ?after_sequence=N, and closes once the log is drained.
func (h *SessionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	sessionID := chi.URLParam(r, "id")
	if err := middleware.ValidateSessionID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	actor, ok := middleware.GetActor(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "streaming not supported")
		return
	}

	afterSequence, _ := pageParams(r)

	// The first page is read before the stream starts.
	records, last, more, err := h.sessions.History(ctx, tenantID, actor, sessionID, afterSequence, maxHistoryLimit)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.HistoryStreams.Inc()
	defer metrics.HistoryStreams.Dec()

	sendSSEEvent(w, flusher, "connected", map[string]string{"session_id": sessionID})

	var replayed int
	lastSequence := afterSequence
	for {
		for _, rec := range records {
			if ctx.Err() != nil {
				return
			}
			sendSSEEvent(w, flusher, "turn", rec)
			replayed++
		}
		if last > lastSequence {
			lastSequence = last
		}
		if !more {
			break
		}

		records, last, more, err = h.sessions.History(ctx, tenantID, actor, sessionID, lastSequence, maxHistoryLimit)
		if err != nil {
			h.logger.Warn("history replay interrupted", logger.Session(sessionID), zap.Error(err))
			sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
				Code:    "replay_error",
				Message: "failed to replay history",
			})
			return
		}
	}

	sendSSEEvent(w, flusher, "replay_complete", &ReplayCompleteEvent{
		LastSequence: lastSequence,
		TurnCount:    replayed,
	})

	h.logger.Debug("history replay complete",
		logger.Session(sessionID),
		zap.Int("turns_replayed", replayed),
		zap.Uint64("last_sequence", lastSequence),
	)
}

// pageParams reads after_sequence and limit, ignoring malformed values.
func pageParams(r *http.Request) (uint64, int) {
	var afterSequence uint64
	limit := defaultHistoryLimit

	if seq := r.URL.Query().Get("after_sequence"); seq != "" {
		if parsed, err := strconv.ParseUint(seq, 10, 64); err == nil {
			afterSequence = parsed
		}
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxHistoryLimit {
			limit = parsed
		}
	}

	return afterSequence, limit
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
