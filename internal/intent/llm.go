package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/toneill57/innpilot-sub001/internal/llm"
	"github.com/toneill57/innpilot-sub001/internal/model"
	"github.com/toneill57/innpilot-sub001/pkg/logger"
	"github.com/toneill57/innpilot-sub001/pkg/metrics"
)

const extractionInstruction = `You extract booking details from one guest message.
Today is %s. Reply with a single JSON object and nothing else:
{"start_date": "YYYY-MM-DD" or null, "end_date": "YYYY-MM-DD" or null, "party_size": integer or null, "category": string or null}
Use null for anything the message does not state. category is one of: room, suite, apartment, cabin, villa.`

// LLM extracts slots by delegating to a completion provider.
type LLM struct {
	client llm.Client
	model  string
	now    func() time.Time
	log    *logger.Logger
}

// NewLLM creates a provider-backed extractor.
func NewLLM(client llm.Client, model string, now func() time.Time, log *logger.Logger) *LLM {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &LLM{client: client, model: model, now: now, log: log.Named("intent")}
}

type extraction struct {
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	PartySize *int    `json:"party_size"`
	Category  *string `json:"category"`
}

// Extract implements Extractor. Provider and parse failures yield an empty
// intent.
func (e *LLM) Extract(ctx context.Context, text string) model.Intent {
	resp, err := e.client.Complete(ctx, &llm.CompletionRequest{
		Model:       e.model,
		System:      fmt.Sprintf(extractionInstruction, e.now().Format(DateLayout)),
		Messages:    []llm.ChatMessage{{Role: string(model.RoleUser), Content: text}},
		MaxTokens:   200,
		Temperature: 0,
		JSON:        true,
	})
	if err != nil {
		e.log.Warn("intent extraction call failed", zap.Error(err))
		metrics.IntentExtractions.WithLabelValues("failed").Inc()
		return model.Intent{}
	}

	out, err := Parse(resp.Content)
	if err != nil {
		e.log.Warn("intent extraction output unparseable", zap.Error(err))
		metrics.IntentExtractions.WithLabelValues("failed").Inc()
		return model.Intent{}
	}
	if out.Empty() {
		metrics.IntentExtractions.WithLabelValues("empty").Inc()
	} else {
		metrics.IntentExtractions.WithLabelValues("captured").Inc()
	}
	return out
}

// Parse decodes a provider reply into a partial intent. Surrounding prose
// and code fences are tolerated; malformed slots are dropped.
func Parse(content string) (model.Intent, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return model.Intent{}, fmt.Errorf("no JSON object in extraction output")
	}

	var raw extraction
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return model.Intent{}, fmt.Errorf("decode extraction: %w", err)
	}
	return normalize(model.Intent{
		StartDate: raw.StartDate,
		EndDate:   raw.EndDate,
		PartySize: raw.PartySize,
		Category:  raw.Category,
	}), nil
}

var _ Extractor = (*LLM)(nil)
