package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/palinopr/leadrouter/internal/identity"
)

// DefaultWindow bounds how long an admitted fingerprint blocks replays.
// Transport retries arrive within minutes; the window keeps the recency set
// from growing without bound.
const DefaultWindow = 15 * time.Minute

// Gate decides whether a delivery is processed or suppressed as a replay.
type Gate interface {
	// Admit records fp for the thread and reports whether it was first
	// seen. A false result means the delivery is a duplicate and must be
	// acknowledged without side effects.
	Admit(ctx context.Context, key identity.ThreadKey, fp string) (bool, error)

	// Revoke forgets an admitted fingerprint. Callers use it when the
	// admitted turn could not be applied, so the transport's redelivery
	// is processed instead of suppressed.
	Revoke(ctx context.Context, key identity.ThreadKey, fp string) error
}

// RedisGate keeps the per-thread recency set in Redis, one SET NX key per
// fingerprint with the window as TTL.
type RedisGate struct {
	redis  *redis.Client
	tracer trace.Tracer
	window time.Duration
}

// NewRedisGate creates a gate with the given replay window. window <= 0
// falls back to DefaultWindow.
func NewRedisGate(client *redis.Client, window time.Duration) *RedisGate {
	if client == nil {
		panic("dedup: redis client cannot be nil")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisGate{
		redis:  client,
		tracer: otel.Tracer("leadrouter.internal.dedup"),
		window: window,
	}
}

func gateKey(key identity.ThreadKey, fp string) string {
	return fmt.Sprintf("dedup:%s:%s", key, fp)
}

// Admit implements Gate.
func (g *RedisGate) Admit(ctx context.Context, key identity.ThreadKey, fp string) (bool, error) {
	ctx, span := g.tracer.Start(ctx, "dedup.admit")
	defer span.End()

	ok, err := g.redis.SetNX(ctx, gateKey(key, fp), 1, g.window).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("dedup: admit: %w", err)
	}
	return ok, nil
}

// Revoke implements Gate.
func (g *RedisGate) Revoke(ctx context.Context, key identity.ThreadKey, fp string) error {
	ctx, span := g.tracer.Start(ctx, "dedup.revoke")
	defer span.End()

	if err := g.redis.Del(ctx, gateKey(key, fp)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("dedup: revoke: %w", err)
	}
	return nil
}

// MemoryGate is an in-process Gate with the same window semantics, used in
// tests and the simulator.
type MemoryGate struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

// NewMemoryGate creates an in-memory gate.
func NewMemoryGate(window time.Duration) *MemoryGate {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryGate{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// Admit implements Gate.
func (g *MemoryGate) Admit(ctx context.Context, key identity.ThreadKey, fp string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.sweep(now)

	k := gateKey(key, fp)
	if _, dup := g.seen[k]; dup {
		return false, nil
	}
	g.seen[k] = now.Add(g.window)
	return true, nil
}

// Revoke implements Gate.
func (g *MemoryGate) Revoke(ctx context.Context, key identity.ThreadKey, fp string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.seen, gateKey(key, fp))
	return nil
}

func (g *MemoryGate) sweep(now time.Time) {
	for k, expiry := range g.seen {
		if now.After(expiry) {
			delete(g.seen, k)
		}
	}
}
