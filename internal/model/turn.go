package model

// TurnRequest is one inbound conversational turn.
type TurnRequest struct {
	SessionID string `json:"session_id,omitempty"`
	TenantID  string `json:"tenant_id"`
	Actor     Actor  `json:"actor"`
	Message   string `json:"message"`

	// CorrelationID ties engine logs to the inbound request.
	CorrelationID string `json:"-"`
}

// Usage reports provider token counts for one turn.
type Usage struct {
	TokensIn  int    `json:"tokens_in"`
	TokensOut int    `json:"tokens_out"`
	Model     string `json:"model,omitempty"`
}

// TurnResponse is the assembled answer for one turn.
type TurnResponse struct {
	SessionID    string     `json:"session_id"`
	ResponseText string     `json:"response_text"`
	Sources      []Source   `json:"sources"`
	Intent       IntentView `json:"intent"`
	Grounded     bool       `json:"grounded"`
	Cached       bool       `json:"cached"`
	Usage        Usage      `json:"usage"`
}

// SendTurnRequest is the HTTP body for posting a turn.
type SendTurnRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// SessionSnapshot is the HTTP view of a session.
type SessionSnapshot struct {
	ID           string `json:"id"`
	Actor        string `json:"actor"`
	TurnCount    uint64 `json:"turn_count"`
	Intent       Intent `json:"intent"`
	Turns        []Turn `json:"turns"`
	LastActivity string `json:"last_activity"`
}

// ListTurnsResponse is the response for replaying durable turn history.
type ListTurnsResponse struct {
	Turns        []TurnRecord `json:"turns"`
	HasMore      bool         `json:"has_more"`
	LastSequence uint64       `json:"last_sequence"`
}

// ErrorEvent is the JSON error body.
type ErrorEvent struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}
