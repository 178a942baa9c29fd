// Package engine runs the inbound pipeline: resolve the thread, admit the
// delivery, fold new evidence into the profile, re-score, route, and hand
// the turn to the tier handler, persisting the whole mutation atomically.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/palinopr/leadrouter/internal/dedup"
	"github.com/palinopr/leadrouter/internal/extract"
	"github.com/palinopr/leadrouter/internal/handlers"
	"github.com/palinopr/leadrouter/internal/identity"
	"github.com/palinopr/leadrouter/internal/lead"
	"github.com/palinopr/leadrouter/internal/observability/metrics"
	"github.com/palinopr/leadrouter/internal/routing"
	"github.com/palinopr/leadrouter/internal/scoring"
	"github.com/palinopr/leadrouter/internal/store"
	"github.com/palinopr/leadrouter/pkg/logging"
)

// DefaultMaxLog bounds the persisted message log per thread.
const DefaultMaxLog = 250

const (
	defaultMaxAttempts = 3
	defaultRetryBase   = 50 * time.Millisecond
)

// Inbound status labels reported to metrics.
const (
	statusAccepted  = "accepted"
	statusDuplicate = "duplicate"
	statusRejected  = "rejected"
	statusDegraded  = "degraded"
	statusFailed    = "failed"
)

// InboundMessage is one normalized inbound delivery from any channel.
type InboundMessage struct {
	ContactID      string    `json:"contact_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	// DeliveryID is the provider's delivery identifier when it sends one.
	DeliveryID string `json:"delivery_id,omitempty"`
	// Sequence is the provider's logical ordering hint, zero when absent.
	Sequence int64 `json:"sequence,omitempty"`
}

// Outcome is the result of processing one inbound message.
type Outcome struct {
	ThreadKey        identity.ThreadKey `json:"thread_key"`
	Tier             routing.Tier       `json:"tier"`
	Score            int                `json:"score"`
	Profile          lead.Profile       `json:"profile"`
	MissingMandatory []string           `json:"missing_mandatory,omitempty"`
	Reply            handlers.Reply     `json:"reply"`
	Duplicate        bool               `json:"duplicate,omitempty"`
	Degraded         bool               `json:"degraded,omitempty"`
}

// HistoryLoader supplies a thread's prior transcript from an external system
// the first time the engine sees the thread. Evidence extracted from it only
// seeds fields the live conversation has not covered.
type HistoryLoader interface {
	Load(ctx context.Context, key identity.ThreadKey) ([]store.Message, error)
}

// Engine coordinates one turn end to end. Turns for the same thread are
// serialized; turns for different threads run concurrently.
type Engine struct {
	store     store.Store
	gate      dedup.Gate
	extractor extract.Extractor
	merger    *lead.Merger
	scorer    *scoring.Engine
	machine   *routing.Machine
	handlers  *handlers.Set
	delivery  Delivery
	history   HistoryLoader
	metrics   *metrics.EngineMetrics
	logger    *logging.Logger
	locks     *keyedMutex

	cfg engineConfig
}

type engineConfig struct {
	maxAttempts int
	retryBase   time.Duration
	maxLog      int
	dedupBucket time.Duration
}

// Option customizes engine behavior.
type Option func(*Engine)

// WithExtractor replaces the default pattern extractor.
func WithExtractor(x extract.Extractor) Option {
	return func(e *Engine) {
		if x != nil {
			e.extractor = x
		}
	}
}

// WithMergeSettings replaces the evidence merge thresholds.
func WithMergeSettings(settings lead.MergeSettings) Option {
	return func(e *Engine) {
		e.merger = lead.NewMerger(settings)
	}
}

// WithScoringConfig replaces the scoring rubric.
func WithScoringConfig(cfg scoring.Config) Option {
	return func(e *Engine) {
		e.scorer = scoring.NewEngine(cfg)
	}
}

// WithHandlers replaces the tier handler set.
func WithHandlers(set *handlers.Set) Option {
	return func(e *Engine) {
		if set != nil {
			e.handlers = set
		}
	}
}

// WithDelivery wires an outbound reply dispatcher.
func WithDelivery(d Delivery) Option {
	return func(e *Engine) {
		if d != nil {
			e.delivery = d
		}
	}
}

// WithHistoryLoader wires a transcript backfill source for first contact.
func WithHistoryLoader(h HistoryLoader) Option {
	return func(e *Engine) {
		e.history = h
	}
}

// WithMetrics wires pipeline metrics.
func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxAttempts bounds retries on store conflicts and timeouts.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cfg.maxAttempts = n
		}
	}
}

// WithRetryBase sets the first backoff delay; each retry doubles it.
func WithRetryBase(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cfg.retryBase = d
		}
	}
}

// WithMaxLog bounds the persisted message log per thread.
func WithMaxLog(n int) Option {
	return func(e *Engine) {
		e.cfg.maxLog = n
	}
}

// New creates an engine over the given store and dedup gate. The routing
// machine is required because its policy carries the qualification rules;
// everything else has working defaults.
func New(st store.Store, gate dedup.Gate, machine *routing.Machine, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, errors.New("engine: store is required")
	}
	if gate == nil {
		return nil, errors.New("engine: dedup gate is required")
	}
	if machine == nil {
		return nil, errors.New("engine: routing machine is required")
	}

	e := &Engine{
		store:     st,
		gate:      gate,
		extractor: extract.NewPatternExtractor(),
		merger:    lead.NewMerger(lead.DefaultMergeSettings()),
		scorer:    scoring.NewEngine(scoring.DefaultConfig()),
		machine:   machine,
		handlers:  handlers.DefaultSet(),
		logger:    logging.Default(),
		locks:     newKeyedMutex(),
		cfg: engineConfig{
			maxAttempts: defaultMaxAttempts,
			retryBase:   defaultRetryBase,
			maxLog:      DefaultMaxLog,
			dedupBucket: dedup.DefaultBucket,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.delivery == nil {
		e.delivery = NewLogDelivery(e.logger)
	}
	return e, nil
}

// HandleInbound processes one delivery and returns the turn outcome.
// Duplicates succeed idempotently with the thread's current shape. Identity
// failures are returned to the caller so the boundary can flag the payload
// for manual triage instead of dropping it.
func (e *Engine) HandleInbound(ctx context.Context, msg InboundMessage) (*Outcome, error) {
	key, err := identity.Resolve(identity.ExternalRefs{
		ContactID:      msg.ContactID,
		Phone:          msg.Phone,
		ConversationID: msg.ConversationID,
	})
	if err != nil {
		e.metrics.ObserveInbound(statusRejected)
		return nil, err
	}

	unlock := e.locks.Lock(key)
	defer unlock()

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	fp := dedup.Fingerprint(msg.DeliveryID, msg.Text, ts, e.cfg.dedupBucket)

	admitted, err := e.gate.Admit(ctx, key, fp)
	recorded := err == nil && admitted
	if err != nil {
		// An unanswerable gate must not drop the message; process it and
		// accept the small duplicate risk.
		e.logger.Warn("dedup gate unavailable, admitting", "thread_key", key.String(), "error", err)
		admitted = true
	}
	if !admitted {
		e.metrics.ObserveDuplicate()
		e.metrics.ObserveInbound(statusDuplicate)
		return e.duplicateOutcome(ctx, key)
	}

	// A turn that errors out of this loop was never persisted. The
	// admission must not outlive it, or the transport's redelivery would
	// be suppressed as a duplicate and the message lost with no state
	// mutation at all.
	backoff := e.cfg.retryBase
	for attempt := 1; ; attempt++ {
		outcome, err := e.processTurn(ctx, key, msg, ts)
		if err == nil {
			return outcome, nil
		}
		if !errors.Is(err, store.ErrConflict) && !errors.Is(err, store.ErrTimeout) {
			e.metrics.ObserveInbound(statusFailed)
			e.revokeAdmission(key, fp, recorded)
			return nil, err
		}
		if attempt >= e.cfg.maxAttempts {
			e.metrics.ObserveInbound(statusFailed)
			e.revokeAdmission(key, fp, recorded)
			return nil, fmt.Errorf("engine: turn not persisted after %d attempts: %w", attempt, err)
		}
		e.metrics.ObserveStoreRetry()
		e.logger.Warn("retrying turn after store error",
			"thread_key", key.String(), "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			e.revokeAdmission(key, fp, recorded)
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// revokeAdmission releases a fingerprint this call recorded, so the failed
// delivery can be replayed. Runs on a fresh context: the caller's may
// already be canceled, and the revoke must still reach the gate.
func (e *Engine) revokeAdmission(key identity.ThreadKey, fp string, recorded bool) {
	if !recorded {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.gate.Revoke(ctx, key, fp); err != nil {
		e.logger.Error("failed to revoke dedup admission",
			"thread_key", key.String(), "fingerprint", fp, "error", err)
	}
}

func (e *Engine) duplicateOutcome(ctx context.Context, key identity.ThreadKey) (*Outcome, error) {
	out := &Outcome{ThreadKey: key, Tier: routing.TierCold, Profile: lead.Profile{}, Duplicate: true}
	state, err := e.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("duplicate outcome without state", "thread_key", key.String(), "error", err)
		}
		return out, nil
	}
	out.Tier = state.Tier
	out.Score = state.Score
	out.Profile = state.Profile.Clone()
	out.MissingMandatory = e.machine.Policy().MissingMandatory(state.Profile)
	return out, nil
}

// processTurn runs one full read-modify-write cycle. Store conflicts and
// timeouts bubble up so the caller can retry the whole cycle against fresh
// state.
func (e *Engine) processTurn(ctx context.Context, key identity.ThreadKey, msg InboundMessage, ts time.Time) (*Outcome, error) {
	state, err := e.store.Load(ctx, key)
	firstContact := false
	switch {
	case errors.Is(err, store.ErrNotFound):
		state = store.NewState(key)
		firstContact = true
	case err != nil:
		return nil, err
	default:
		state = state.Clone()
	}

	if firstContact && e.history != nil {
		e.seedFromHistory(ctx, key, state)
	}

	degraded := false
	candidates, err := e.extractor.Extract(msg.Text, state.Profile)
	if err != nil {
		e.logger.Error("evidence extraction failed, serving degraded turn",
			"thread_key", key.String(), "error", err)
		degraded = true
		candidates = nil
	}

	e.appendInbound(state, msg, ts)

	if !degraded {
		state.Profile = e.merger.Merge(state.Profile, candidates)
		state.Exchanges++

		computed, breakdown := e.scorer.Score(state.Profile, state.Exchanges)
		state.Score = scoring.Combine(state.Score, computed)
		e.logger.Debug("score computed",
			"thread_key", key.String(),
			"fields", breakdown.Fields(),
			"field_count", state.Profile.FieldCount(),
			"engagement_bonus", breakdown.EngagementBonus,
			"raw", breakdown.Raw,
			"capped", breakdown.Capped,
			"score", state.Score)
	}

	previousTier := state.Tier
	decision := routing.Decision{
		Tier:             state.Tier,
		NextMissingField: state.Profile.NextToAsk(),
		MissingMandatory: e.machine.Policy().MissingMandatory(state.Profile),
		Reason:           "degraded turn, tier held",
	}
	if !degraded {
		decision, err = e.machine.Decide(state.Score, state.Profile, state.Tier)
		if err != nil {
			// A routing invariant violation is a bug in the policy wiring.
			// Hold the previous tier and degrade rather than guess.
			e.logger.Error("routing decision rejected",
				"thread_key", key.String(), "error", err)
			degraded = true
			decision = routing.Decision{
				Tier:             previousTier,
				NextMissingField: state.Profile.NextToAsk(),
				MissingMandatory: e.machine.Policy().MissingMandatory(state.Profile),
				Reason:           "invariant violation, tier held",
			}
		}
	}
	state.Tier = decision.Tier

	reply := e.respond(ctx, state, decision, degraded)

	// A handler may signal that its own turn completed the mandatory set.
	// Re-evaluate at most once so the promotion lands in the same turn.
	if reply.EscalationRequested && !degraded {
		escalated, err := e.machine.Decide(state.Score, state.Profile, state.Tier)
		if err != nil {
			e.logger.Error("escalation decision rejected", "thread_key", key.String(), "error", err)
		} else if escalated.Tier != state.Tier {
			state.Tier = escalated.Tier
			decision = escalated
			reply = e.respond(ctx, state, decision, degraded)
		}
	}

	state.Append(store.Message{
		ID:        uuid.NewString(),
		Role:      store.RoleAssistant,
		Content:   reply.Text,
		Timestamp: time.Now().UTC(),
		Source:    store.SourceLive,
	}, e.cfg.maxLog)
	state.UpdatedAt = time.Now().UTC()

	if err := e.store.Save(ctx, state); err != nil {
		return nil, err
	}

	if previousTier != state.Tier {
		e.metrics.ObserveTierTransition(string(previousTier), string(state.Tier))
		e.logger.Info("tier transition",
			"thread_key", key.String(), "from", previousTier, "to", state.Tier,
			"score", state.Score, "reason", decision.Reason)
	}
	if degraded {
		e.metrics.ObserveInbound(statusDegraded)
	} else {
		e.metrics.ObserveInbound(statusAccepted)
	}

	if err := e.delivery.Send(ctx, key, reply.Text); err != nil {
		e.logger.Error("reply delivery failed", "thread_key", key.String(), "error", err)
	}

	return &Outcome{
		ThreadKey:        key,
		Tier:             state.Tier,
		Score:            state.Score,
		Profile:          state.Profile.Clone(),
		MissingMandatory: decision.MissingMandatory,
		Reply:            reply,
		Degraded:         degraded,
	}, nil
}

// respond invokes the tier handler, timing it and falling back to a safe
// degraded reply if the handler itself fails.
func (e *Engine) respond(ctx context.Context, state *store.State, decision routing.Decision, degraded bool) handlers.Reply {
	turn := handlers.Turn{
		ThreadKey:        state.ThreadKey,
		Tier:             state.Tier,
		Profile:          state.Profile,
		NextMissingField: decision.NextMissingField,
		MissingMandatory: decision.MissingMandatory,
		Messages:         state.Messages,
		Degraded:         degraded,
	}
	if degraded {
		turn.Tier = routing.TierCold
	}

	start := time.Now()
	reply, err := e.handlers.For(turn.Tier).Respond(ctx, turn)
	e.metrics.ObserveHandlerLatency(string(turn.Tier), time.Since(start).Seconds())
	if err != nil {
		e.logger.Error("handler failed, serving degraded reply",
			"thread_key", state.ThreadKey.String(), "tier", turn.Tier, "error", err)
		turn.Degraded = true
		fallback, ferr := e.handlers.For(routing.TierCold).Respond(ctx, turn)
		if ferr != nil {
			return handlers.Reply{Text: "¡Gracias por escribirnos! En un momento te atendemos."}
		}
		return fallback
	}
	return reply
}

// appendInbound records the user message, honoring the provider's sequence
// hint: a late delivery with a lower sequence is inserted before later ones
// so the transcript reads in logical order. Evidence merging is order
// independent, so only the transcript cares.
func (e *Engine) appendInbound(state *store.State, msg InboundMessage, ts time.Time) {
	entry := store.Message{
		ID:         uuid.NewString(),
		Role:       store.RoleUser,
		Content:    msg.Text,
		Timestamp:  ts,
		Source:     store.SourceLive,
		DeliveryID: msg.DeliveryID,
		Sequence:   msg.Sequence,
	}
	if entry.Sequence <= 0 {
		state.Append(entry, e.cfg.maxLog)
		return
	}

	pos := len(state.Messages)
	for i, existing := range state.Messages {
		if existing.Sequence > entry.Sequence {
			pos = i
			break
		}
	}
	if pos == len(state.Messages) {
		state.Append(entry, e.cfg.maxLog)
		return
	}
	state.Messages = append(state.Messages, store.Message{})
	copy(state.Messages[pos+1:], state.Messages[pos:])
	state.Messages[pos] = entry
	if e.cfg.maxLog > 0 && len(state.Messages) > e.cfg.maxLog {
		state.Messages = state.Messages[len(state.Messages)-e.cfg.maxLog:]
	}
}

// seedFromHistory backfills the transcript and lets historical evidence seed
// profile fields the live conversation has not covered. Failures only log:
// history is an enrichment, never a dependency.
func (e *Engine) seedFromHistory(ctx context.Context, key identity.ThreadKey, state *store.State) {
	messages, err := e.history.Load(ctx, key)
	if err != nil {
		e.logger.Warn("history backfill failed", "thread_key", key.String(), "error", err)
		return
	}

	var seeded []lead.EvidenceField
	for _, m := range messages {
		m.Source = store.SourceHistory
		state.Append(m, e.cfg.maxLog)
		if m.Role != store.RoleUser {
			continue
		}
		candidates, err := e.extractor.Extract(m.Content, state.Profile)
		if err != nil {
			continue
		}
		for _, c := range candidates {
			c.Source = lead.SourceHistorical
			seeded = append(seeded, c)
		}
	}
	if len(seeded) > 0 {
		state.Profile = e.merger.Merge(state.Profile, seeded)
	}
}
