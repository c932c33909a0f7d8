package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/toneill57/innpilot-sub001/pkg/logger"
	"github.com/toneill57/innpilot-sub001/pkg/metrics"
)

// ExpiredFunc is notified of sessions removed by a sweep.
type ExpiredFunc func(ctx context.Context, ids []string)

// Janitor periodically sweeps idle sessions from a Store.
type Janitor struct {
	store     Store
	interval  time.Duration
	log       *logger.Logger
	onExpired ExpiredFunc
	now       func() time.Time
}

// NewJanitor creates a janitor. onExpired may be nil.
func NewJanitor(store Store, interval time.Duration, log *logger.Logger, onExpired ExpiredFunc) *Janitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Janitor{
		store:     store,
		interval:  interval,
		log:       log.Named("session-janitor"),
		onExpired: onExpired,
		now:       time.Now,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep and returns the number of sessions removed.
func (j *Janitor) SweepOnce(ctx context.Context) int {
	ids, err := j.store.Sweep(ctx, j.now())
	if err != nil {
		j.log.Warn("session sweep failed", zap.Error(err))
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	metrics.SessionsSwept.Add(float64(len(ids)))
	j.log.Debug("swept idle sessions", zap.Int("count", len(ids)))
	if j.onExpired != nil {
		j.onExpired(ctx, ids)
	}
	return len(ids)
}
