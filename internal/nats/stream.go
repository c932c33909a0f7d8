package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/toneill57/innpilot-sub001/internal/model"
)

const (
	// StreamName is the name of the conversation turn log stream.
	StreamName = "CHAT_TURNS"

	// SubjectPrefix is the prefix for all conversation subjects.
	SubjectPrefix = "conv"

	maxReadLimit = 200
)

// TurnLog publishes turns and session events to JetStream and replays
// them per session.
type TurnLog struct {
	client *Client
	maxAge time.Duration
}

// NewTurnLog creates a turn log. maxAge bounds how long turns are kept;
// zero keeps them for a year.
func NewTurnLog(client *Client, maxAge time.Duration) *TurnLog {
	if maxAge <= 0 {
		maxAge = 365 * 24 * time.Hour
	}
	return &TurnLog{client: client, maxAge: maxAge}
}

// EnsureStream ensures the turn log stream exists with proper configuration.
func (l *TurnLog) EnsureStream(ctx context.Context) error {
	js := l.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      l.maxAge,
		MaxBytes:    100 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "Conversation turns and session events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Token makes an id safe to use as a single subject token.
func Token(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '.', r == '*', r == '>', r <= ' ', r == 0x7f:
			return '_'
		}
		return r
	}, id)
}

// TurnSubject returns the subject for a turn.
func TurnSubject(tenantID, sessionID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.%s.turn.%s", SubjectPrefix, Token(tenantID), Token(sessionID), role)
}

// EventSubject returns the subject for a session event.
func EventSubject(tenantID, sessionID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.event.%s", SubjectPrefix, Token(tenantID), Token(sessionID), eventType)
}

// SessionTurnsFilter returns the filter subject for every turn of a session.
func SessionTurnsFilter(tenantID, sessionID string) string {
	return fmt.Sprintf("%s.%s.%s.turn.>", SubjectPrefix, Token(tenantID), Token(sessionID))
}

// PublishTurn appends a turn to the log and returns its stream sequence.
func (l *TurnLog) PublishTurn(ctx context.Context, rec *model.TurnRecord) (uint64, error) {
	subject := TurnSubject(rec.TenantID, rec.SessionID, rec.Turn.Role)

	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal turn: %w", err)
	}

	ack, err := l.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish turn: %w", err)
	}
	return ack.Sequence, nil
}

// PublishEvent publishes a session event.
func (l *TurnLog) PublishEvent(ctx context.Context, event *model.SessionEvent) (uint64, error) {
	subject := EventSubject(event.TenantID, event.SessionID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := l.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}
	return ack.Sequence, nil
}

// ReadTurns replays up to limit turns of a session with a stream sequence
// greater than afterSequence. It returns the turns, the last sequence read
// and whether more may follow.
func (l *TurnLog) ReadTurns(ctx context.Context, tenantID, sessionID string, afterSequence uint64, limit int) ([]model.TurnRecord, uint64, bool, error) {
	if limit <= 0 || limit > maxReadLimit {
		limit = maxReadLimit
	}

	cfg := jetstream.OrderedConsumerConfig{
		FilterSubjects:    []string{SessionTurnsFilter(tenantID, sessionID)},
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		InactiveThreshold: 30 * time.Second,
	}
	if afterSequence > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = afterSequence + 1
	}

	consumer, err := l.client.JetStream().OrderedConsumer(ctx, StreamName, cfg)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch turns: %w", err)
	}

	var (
		records []model.TurnRecord
		lastSeq uint64
	)
	for msg := range batch.Messages() {
		var rec model.TurnRecord
		if err := json.Unmarshal(msg.Data(), &rec); err != nil {
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			rec.Sequence = meta.Sequence.Stream
			lastSeq = meta.Sequence.Stream
		}
		records = append(records, rec)
	}
	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, jetstream.ErrNoMessages) {
		return nil, 0, false, fmt.Errorf("batch error: %w", err)
	}

	return records, lastSeq, len(records) == limit, nil
}
