package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/toneill57/innpilot-sub001/internal/engine"
	"github.com/toneill57/innpilot-sub001/internal/model"
	"github.com/toneill57/innpilot-sub001/pkg/logger"
)

// Retry hints, in seconds.
const (
	busyRetryAfter        = 1
	unavailableRetryAfter = 5
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, &model.ErrorEvent{Code: code, Message: message})
}

// writeEngineError maps an engine error kind onto an HTTP status.
func writeEngineError(w http.ResponseWriter, log *logger.Logger, err error) {
	kind := engine.KindOf(err)
	body := &model.ErrorEvent{Code: string(kind)}
	status := http.StatusInternalServerError
	switch kind {
	case engine.KindValidation:
		status = http.StatusBadRequest
	case engine.KindNotFound:
		status = http.StatusNotFound
	case engine.KindBusy:
		status = http.StatusConflict
		body.RetryAfter = busyRetryAfter
	case engine.KindUnavailable:
		status = http.StatusServiceUnavailable
		body.RetryAfter = unavailableRetryAfter
	case engine.KindFailed:
		status = http.StatusBadGateway
	}

	var e *engine.Error
	if errors.As(err, &e) && e.Message != "" {
		body.Message = e.Message
	} else {
		body.Message = http.StatusText(status)
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	if body.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	}
	writeJSON(w, status, body)
}
