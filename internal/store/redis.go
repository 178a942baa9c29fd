package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/palinopr/leadrouter/internal/identity"
)

const (
	stateKeyPrefix = "thread_state:"

	// DefaultOpTimeout bounds every Redis round trip. The engine treats a
	// timeout as transient and retries the whole turn.
	DefaultOpTimeout = 3 * time.Second
)

// RedisStore persists thread state as one JSON value per thread key, with
// optimistic concurrency via WATCH on the state version.
type RedisStore struct {
	redis   *redis.Client
	tracer  trace.Tracer
	timeout time.Duration
	// ttl of 0 keeps states forever; retention is an external policy.
	ttl time.Duration
}

// RedisOption customizes the store.
type RedisOption func(*RedisStore)

// WithOpTimeout overrides the per-operation deadline.
func WithOpTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithStateTTL sets an expiry on persisted states. Zero disables expiry.
func WithStateTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore creates a Redis-backed conversation store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	if client == nil {
		panic("store: redis client cannot be nil")
	}
	s := &RedisStore{
		redis:   client,
		tracer:  otel.Tracer("leadrouter.internal.store"),
		timeout: DefaultOpTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func stateKey(key identity.ThreadKey) string {
	return stateKeyPrefix + string(key)
}

// Load fetches the state for a thread key.
func (s *RedisStore) Load(ctx context.Context, key identity.ThreadKey) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "store.load")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.redis.Get(ctx, stateKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, s.wrap("load", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store: decode state for %s: %w", key, err)
	}
	return &state, nil
}

// Save writes the state back, failing with ErrConflict if another writer
// advanced the version since this state was loaded. On success the state's
// version is incremented.
func (s *RedisStore) Save(ctx context.Context, state *State) error {
	if state == nil {
		return errors.New("store: state cannot be nil")
	}

	ctx, span := s.tracer.Start(ctx, "store.save")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := stateKey(state.ThreadKey)
	expected := state.Version

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if expected != 0 {
				return ErrConflict
			}
		case err != nil:
			return err
		default:
			var persisted State
			if decodeErr := json.Unmarshal(current, &persisted); decodeErr != nil {
				return fmt.Errorf("store: decode persisted state: %w", decodeErr)
			}
			if persisted.Version != expected {
				return ErrConflict
			}
		}

		next := state.Clone()
		next.Version = expected + 1
		next.UpdatedAt = time.Now().UTC()

		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("store: encode state: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		state.Version = next.Version
		state.UpdatedAt = next.UpdatedAt
		return nil
	}, key)

	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return ErrConflict
		}
		if errors.Is(err, ErrConflict) {
			return ErrConflict
		}
		span.RecordError(err)
		return s.wrap("save", err)
	}
	return nil
}

func (s *RedisStore) wrap(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("store: %s: %w", op, ErrTimeout)
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
