package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/toneill57/innpilot-sub001/pkg/metrics"
)

// RetryPolicy bounds exponential backoff for transient provider errors.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used when a zero policy is supplied.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      3,
	InitialInterval: 250 * time.Millisecond,
	MaxInterval:     4 * time.Second,
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultRetryPolicy.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = DefaultRetryPolicy.MaxInterval
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

// Retry runs fn until it succeeds, fails permanently, or retries run out.
// Only errors classified transient by IsTransient are retried.
func Retry(ctx context.Context, policy RetryPolicy, op string, fn func() error) error {
	return backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy.backOff(ctx), func(error, time.Duration) {
		metrics.ProviderRetries.WithLabelValues(op).Inc()
	})
}

// RetryingClient wraps a Client with bounded retries.
type RetryingClient struct {
	Client
	policy RetryPolicy
}

// WithRetry wraps c so transient failures are retried under policy.
func WithRetry(c Client, policy RetryPolicy) *RetryingClient {
	return &RetryingClient{Client: c, policy: policy}
}

// Complete implements Client.
func (c *RetryingClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var resp *CompletionResponse
	err := Retry(ctx, c.policy, "complete", func() error {
		var err error
		resp, err = c.Client.Complete(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// RetryingEmbedder wraps an Embedder with bounded retries.
type RetryingEmbedder struct {
	Embedder
	policy RetryPolicy
}

// EmbedderWithRetry wraps e so transient failures are retried under policy.
func EmbedderWithRetry(e Embedder, policy RetryPolicy) *RetryingEmbedder {
	return &RetryingEmbedder{Embedder: e, policy: policy}
}

// Embed implements Embedder.
func (e *RetryingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := Retry(ctx, e.policy, "embed", func() error {
		var err error
		out, err = e.Embedder.Embed(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
