// Package completion assembles a grounded prompt for a turn, calls the
// completion provider once and shapes the answer for callers.
package completion

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/toneill57/innpilot-sub001/internal/llm"
	"github.com/toneill57/innpilot-sub001/internal/model"
	"github.com/toneill57/innpilot-sub001/pkg/logger"
	"github.com/toneill57/innpilot-sub001/pkg/tracing"
)

// UngroundedCaveat is appended to answers produced without any retrieved
// knowledge.
const UngroundedCaveat = "I couldn't confirm this in our records, so please check the details with the property directly."

// fallbackAnswer replaces an empty provider reply.
const fallbackAnswer = "I'm sorry, I don't have an answer for that right now."

const excerptRunes = 240

// Config holds model settings and prompt budgets.
type Config struct {
	Model            string
	MaxTokens        int
	Temperature      float64
	PromptTokenLimit int
	RecentTurns      int
}

// Input is everything the completion needs for one turn.
type Input struct {
	Actor     model.Actor
	Message   string
	Documents []model.RetrievedDocument
	Recalls   []model.Recall
	Intent    model.Intent

	// History is the session's retained turns, oldest first, excluding the
	// current message.
	History []model.Turn
}

// Output is the shaped answer.
type Output struct {
	Text     string
	Sources  []model.Source
	Grounded bool
	Usage    model.Usage
}

// Orchestrator calls the completion provider. Retries belong to the client
// (see llm.WithRetry).
type Orchestrator struct {
	client llm.Client
	cfg    Config
	log    *logger.Logger
	tracer trace.Tracer
}

// New creates a completion orchestrator.
func New(client llm.Client, cfg Config, log *logger.Logger) *Orchestrator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.PromptTokenLimit <= 0 {
		cfg.PromptTokenLimit = 6000
	}
	if cfg.RecentTurns <= 0 {
		cfg.RecentTurns = 8
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		client: client,
		cfg:    cfg,
		log:    log.Named("completion"),
		tracer: tracing.Tracer("completion"),
	}
}

// Complete runs one completion. Provider errors are returned as
// *llm.ProviderError after the client's retries are exhausted.
func (o *Orchestrator) Complete(ctx context.Context, in Input) (*Output, error) {
	ctx, span := o.tracer.Start(ctx, "completion.complete",
		trace.WithAttributes(attribute.Int("documents", len(in.Documents)), attribute.Int("recalls", len(in.Recalls))))
	defer span.End()

	prompt := BuildPrompt(in, o.cfg.PromptTokenLimit, o.cfg.RecentTurns)

	resp, err := o.client.Complete(ctx, &llm.CompletionRequest{
		Model:       o.cfg.Model,
		System:      prompt.System,
		Messages:    prompt.Messages,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		o.log.Warn("completion failed", zap.String("provider", o.client.Name()), zap.Error(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("tokens_in", resp.TokensIn), attribute.Int("tokens_out", resp.TokensOut))

	grounded := len(in.Documents) > 0
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		text = fallbackAnswer
	}
	if !grounded {
		text += "\n\n" + UngroundedCaveat
	}

	return &Output{
		Text:     text,
		Sources:  Sources(in.Documents),
		Grounded: grounded,
		Usage: model.Usage{
			TokensIn:  resp.TokensIn,
			TokensOut: resp.TokensOut,
			Model:     resp.Model,
		},
	}, nil
}

// Sources turns retrieved documents into citations. The result is never nil.
func Sources(docs []model.RetrievedDocument) []model.Source {
	out := make([]model.Source, 0, len(docs))
	for _, d := range docs {
		name := d.Title
		if name == "" {
			name = d.Collection
		}
		out = append(out, model.Source{
			ID:          d.ID,
			Collection:  d.Collection,
			DisplayName: name,
			Excerpt:     Excerpt(d.Content, excerptRunes),
			Score:       d.Score,
		})
	}
	return out
}

// Excerpt shortens text to at most n runes on a word boundary.
func Excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}
