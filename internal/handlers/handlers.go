// Package handlers holds the conversational handlers bound to each routing
// tier. The shipped implementations are deterministic; an LLM-backed handler
// plugs in behind the same interface and receives the same turn context.
package handlers

import (
	"context"
	"fmt"

	"github.com/palinopr/leadrouter/internal/identity"
	"github.com/palinopr/leadrouter/internal/lead"
	"github.com/palinopr/leadrouter/internal/routing"
	"github.com/palinopr/leadrouter/internal/store"
)

// Turn is everything a handler may know about the conversation. Handlers
// never see rejected deliveries or unmerged candidate evidence.
type Turn struct {
	ThreadKey        identity.ThreadKey
	Tier             routing.Tier
	Profile          lead.Profile
	NextMissingField string
	MissingMandatory []string
	Messages         []store.Message
	// Degraded marks a turn where extraction or scoring failed and the
	// engine fell back to prior state.
	Degraded bool
}

// Reply is a handler's response for one turn.
type Reply struct {
	Text string
	// EscalationRequested asks the state machine to re-evaluate the tier
	// within the same turn, honored at most once per inbound message.
	EscalationRequested bool
}

// Handler produces the reply for one conversation turn.
type Handler interface {
	Respond(ctx context.Context, turn Turn) (Reply, error)
}

// Set binds one handler to each tier.
type Set struct {
	cold Handler
	warm Handler
	hot  Handler
}

// NewSet builds a handler set. All three handlers are required.
func NewSet(cold, warm, hot Handler) (*Set, error) {
	if cold == nil || warm == nil || hot == nil {
		return nil, fmt.Errorf("handlers: all tiers need a handler (cold=%v warm=%v hot=%v)",
			cold != nil, warm != nil, hot != nil)
	}
	return &Set{cold: cold, warm: warm, hot: hot}, nil
}

// DefaultSet returns the deterministic built-in handlers.
func DefaultSet() *Set {
	set, _ := NewSet(NewColdHandler(), NewWarmHandler(), NewHotHandler())
	return set
}

// For returns the handler serving the given tier.
func (s *Set) For(tier routing.Tier) Handler {
	switch tier {
	case routing.TierHot:
		return s.hot
	case routing.TierWarm:
		return s.warm
	default:
		return s.cold
	}
}
