package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/toneill57/innpilot-sub001/internal/model"
)

const (
	// Redis key prefix for sessions
	sessionKeyPrefix = "chat:session:"

	// maxTxRetries bounds optimistic WATCH/MULTI attempts per operation.
	maxTxRetries = 8
)

// RedisStore implements Store using Redis with optimistic locking. Keys
// expire natively after the TTL, so Sweep has nothing to do.
type RedisStore struct {
	client *redis.Client
	opts   Options
}

// NewRedisStore creates a new Redis-based session store.
func NewRedisStore(client *redis.Client, opts Options) *RedisStore {
	return &RedisStore{
		client: client,
		opts:   opts.withDefaults(),
	}
}

// key constructs the Redis key for a session ID.
func (s *RedisStore) key(id string) string {
	return sessionKeyPrefix + id
}

func decode(val []byte) (*model.Session, error) {
	var data model.Session
	if err := json.Unmarshal(val, &data); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &data, nil
}

// update runs fn inside a WATCH/MULTI/EXEC transaction on the session key.
// fn receives nil when the key does not exist and returns the session to
// write, or nil to leave it untouched.
func (s *RedisStore) update(ctx context.Context, id string, fn func(cur *model.Session) (*model.Session, error)) error {
	key := s.key(id)

	txf := func(tx *redis.Tx) error {
		var cur *model.Session
		val, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if cur, err = decode(val); err != nil {
				return err
			}
		}

		next, err := fn(cur)
		if err != nil || next == nil {
			return err
		}
		newVal, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, s.opts.TTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

// live reports ErrNotFound for a missing session.
func live(cur *model.Session) error {
	if cur == nil {
		return ErrNotFound
	}
	return nil
}

// GetOrCreate implements Store.
func (s *RedisStore) GetOrCreate(ctx context.Context, id, tenantID string, actor model.Actor) (*model.Session, error) {
	if id == "" {
		id = NewID()
	}
	var out *model.Session
	err := s.update(ctx, id, func(cur *model.Session) (*model.Session, error) {
		now := s.opts.Now()
		if cur == nil {
			out = newSession(id, tenantID, actor, now)
			return out, nil
		}
		if err := CheckOwner(cur, tenantID, actor); err != nil {
			return nil, err
		}
		cur.LastActivity = now
		out = cur
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*model.Session, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decode(val)
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, id string, turns ...model.Turn) ([]model.Turn, error) {
	var stored []model.Turn
	err := s.update(ctx, id, func(cur *model.Session) (*model.Session, error) {
		if err := live(cur); err != nil {
			return nil, err
		}
		stored = appendTurns(cur, turns, s.opts.RetainedTurns, s.opts.Now())
		return cur, nil
	})
	return stored, err
}

// MergeIntent implements Store.
func (s *RedisStore) MergeIntent(ctx context.Context, id string, partial model.Intent) (model.Intent, bool, error) {
	var (
		merged   model.Intent
		captured bool
	)
	err := s.update(ctx, id, func(cur *model.Session) (*model.Session, error) {
		if err := live(cur); err != nil {
			return nil, err
		}
		merged, captured = mergeIntent(cur, partial, s.opts.Now())
		return cur, nil
	})
	return merged, captured, err
}

// Touch implements Store.
func (s *RedisStore) Touch(ctx context.Context, id string) error {
	return s.update(ctx, id, func(cur *model.Session) (*model.Session, error) {
		if err := live(cur); err != nil {
			return nil, err
		}
		cur.LastActivity = s.opts.Now()
		return cur, nil
	})
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Sweep implements Store.
func (s *RedisStore) Sweep(context.Context, time.Time) ([]string, error) {
	return nil, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
