// Package handler provides HTTP handlers for the chat API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/toneill57/innpilot-sub001/internal/middleware"
	"github.com/toneill57/innpilot-sub001/internal/model"
	"github.com/toneill57/innpilot-sub001/pkg/logger"
)

// Turner handles one conversational turn.
type Turner interface {
	HandleTurn(ctx context.Context, req model.TurnRequest) (*model.TurnResponse, error)
}

// ChatHandler handles chat turn endpoints.
type ChatHandler struct {
	engine Turner
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(engine Turner, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		engine: engine,
		logger: log,
	}
}

// Send handles POST /api/v1/chat/turns and POST /public/v1/{tenant}/turns.
// Tenant and actor come from the auth middleware mounted on the route.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	var req model.SendTurnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, middleware.MaxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	if err := middleware.ValidateMessage(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	if req.SessionID != "" {
		if err := middleware.ValidateSessionID(req.SessionID); err != nil {
			writeError(w, http.StatusBadRequest, "validation", err.Error())
			return
		}
	}

	resp, err := h.engine.HandleTurn(ctx, model.TurnRequest{
		SessionID:     req.SessionID,
		TenantID:      middleware.GetTenantID(ctx),
		Actor:         actor,
		Message:       req.Message,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
