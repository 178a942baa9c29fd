// Package store persists conversation state keyed by thread key. The engine
// checks out a copy, mutates it, and writes it back atomically per thread;
// adapters must reject concurrent writes that would lose an update.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/palinopr/leadrouter/internal/identity"
	"github.com/palinopr/leadrouter/internal/lead"
	"github.com/palinopr/leadrouter/internal/routing"
)

var (
	// ErrNotFound means no state exists yet for the thread key.
	ErrNotFound = errors.New("store: thread state not found")

	// ErrConflict is returned when an optimistic write lost a race with a
	// concurrent writer. The caller retries the whole turn.
	ErrConflict = errors.New("store: concurrent modification")

	// ErrTimeout is returned when the durability substrate did not answer
	// within the operation deadline. Treated as transient.
	ErrTimeout = errors.New("store: operation timed out")
)

// Message roles and source tags on the persisted message log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	SourceLive    = "live"    // appended by the current process
	SourceHistory = "history" // loaded from an external transcript backfill
)

// Message is one entry in a thread's ordered message log.
type Message struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
	DeliveryID string    `json:"delivery_id,omitempty"`
	Sequence   int64     `json:"sequence,omitempty"`
}

// State is the full persisted record for one conversation thread. It is
// owned by the store; the engine operates on checked-out copies.
type State struct {
	ThreadKey identity.ThreadKey `json:"thread_key"`
	Messages  []Message          `json:"messages"`
	Profile   lead.Profile       `json:"profile"`
	Score     int                `json:"score"`
	Tier      routing.Tier       `json:"tier"`
	// Exchanges counts accepted inbound messages.
	Exchanges int `json:"exchanges"`
	// Version supports optimistic concurrency in adapters. Zero means the
	// state has never been saved.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState creates the initial state for a thread's first-ever message.
func NewState(key identity.ThreadKey) *State {
	now := time.Now().UTC()
	return &State{
		ThreadKey: key,
		Profile:   lead.Profile{},
		Score:     0,
		Tier:      routing.TierCold,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so engine mutations cannot leak into a cached
// state before the save succeeds.
func (s *State) Clone() *State {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	out.Profile = s.Profile.Clone()
	return &out
}

// Append adds a message to the log, keeping the log bounded. maxLog <= 0
// means unbounded.
func (s *State) Append(msg Message, maxLog int) {
	s.Messages = append(s.Messages, msg)
	if maxLog > 0 && len(s.Messages) > maxLog {
		s.Messages = s.Messages[len(s.Messages)-maxLog:]
	}
}

// Store is the conversation durability boundary. Load returns ErrNotFound
// for unknown keys. Save is atomic per key and must return ErrConflict when
// state.Version does not match the persisted version.
type Store interface {
	Load(ctx context.Context, key identity.ThreadKey) (*State, error)
	Save(ctx context.Context, state *State) error
}
