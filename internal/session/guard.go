package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Guard admits at most one in-flight turn per session.
type Guard interface {
	// Acquire claims the session or returns ErrBusy. The returned release
	// must be called exactly once when the turn finishes.
	Acquire(ctx context.Context, sessionID string) (release func(), err error)
}

// MemoryGuard is an in-process Guard.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryGuard creates an in-process guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]struct{})}
}

// Acquire implements Guard.
func (g *MemoryGuard) Acquire(_ context.Context, sessionID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[sessionID]; busy {
		return nil, ErrBusy
	}
	g.held[sessionID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, sessionID)
			g.mu.Unlock()
		})
	}, nil
}

const guardKeyPrefix = "chat:turnlock:"

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard is a Guard shared across replicas, built on SET NX PX leases.
// The lease bounds how long a crashed holder can block a session.
type RedisGuard struct {
	client *redis.Client
	lease  time.Duration
}

// NewRedisGuard creates a guard whose locks expire after lease.
func NewRedisGuard(client *redis.Client, lease time.Duration) *RedisGuard {
	if lease <= 0 {
		lease = 2 * time.Minute
	}
	return &RedisGuard{client: client, lease: lease}
}

// Acquire implements Guard.
func (g *RedisGuard) Acquire(ctx context.Context, sessionID string) (func(), error) {
	key := guardKeyPrefix + sessionID
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.lease).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			// A failed release is covered by lease expiry.
			_ = releaseScript.Run(rctx, g.client, []string{key}, token).Err()
		})
	}, nil
}

var (
	_ Guard = (*MemoryGuard)(nil)
	_ Guard = (*RedisGuard)(nil)
)
