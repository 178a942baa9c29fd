// Package scoring computes the qualification score for a lead profile.
// The rubric is additive and capped; the persisted score for a thread is the
// running maximum of every computed score, so a low-information follow-up
// message can never erase qualification history.
package scoring

import (
	"sort"

	"github.com/palinopr/leadrouter/internal/lead"
)

// Config holds the tunable rubric. The shape is fixed (additive, capped,
// monotone); the literal weights are deployment configuration.
type Config struct {
	// FieldPoints maps each profile field to the points it contributes
	// when present.
	FieldPoints map[string]int `yaml:"field_points"`
	// EngagementThreshold is the exchange count above which the engagement
	// bonus applies. Short, low-information threads earn nothing extra.
	EngagementThreshold int `yaml:"engagement_threshold"`
	// EngagementBonus is the flat bonus for a sustained conversation.
	EngagementBonus int `yaml:"engagement_bonus"`
	// Min and Max bound the score range.
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// DefaultConfig returns the standard rubric: score range 1-10, budget
// weighted heaviest because it is the qualification capacity signal.
func DefaultConfig() Config {
	return Config{
		FieldPoints: map[string]int{
			lead.FieldName:         1,
			lead.FieldBusinessType: 2,
			lead.FieldGoal:         2,
			lead.FieldBudget:       3,
			lead.FieldEmail:        1,
			lead.FieldPhone:        1,
			lead.FieldUrgency:      1,
		},
		EngagementThreshold: 4,
		EngagementBonus:     1,
		Min:                 1,
		Max:                 10,
	}
}

// Breakdown is the auditable decomposition of one computed score.
type Breakdown struct {
	FieldPoints     map[string]int `json:"field_points"`
	EngagementBonus int            `json:"engagement_bonus"`
	Raw             int            `json:"raw"`
	Capped          bool           `json:"capped"`
	Total           int            `json:"total"`
}

// Fields lists the scored fields in deterministic order, for logs.
func (b Breakdown) Fields() []string {
	names := make([]string, 0, len(b.FieldPoints))
	for name := range b.FieldPoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Engine scores profiles against one rubric.
type Engine struct {
	cfg Config
}

// NewEngine creates a scoring engine, falling back to the default rubric for
// any unset config values.
func NewEngine(cfg Config) *Engine {
	defaults := DefaultConfig()
	if len(cfg.FieldPoints) == 0 {
		cfg.FieldPoints = defaults.FieldPoints
	}
	if cfg.Max <= 0 {
		cfg.Max = defaults.Max
	}
	if cfg.Min <= 0 {
		cfg.Min = defaults.Min
	}
	if cfg.EngagementThreshold <= 0 {
		cfg.EngagementThreshold = defaults.EngagementThreshold
	}
	if cfg.EngagementBonus < 0 {
		cfg.EngagementBonus = 0
	}
	return &Engine{cfg: cfg}
}

// Score computes the qualification score from the merged profile and the
// inbound exchange count. It depends only on its inputs: the same profile
// always yields the same score, so a turn that adds no new evidence
// re-derives the score the previous evidence already earned.
func (e *Engine) Score(profile lead.Profile, exchanges int) (int, Breakdown) {
	breakdown := Breakdown{FieldPoints: make(map[string]int)}

	total := e.cfg.Min
	for field, points := range e.cfg.FieldPoints {
		if profile.Has(field) {
			breakdown.FieldPoints[field] = points
			total += points
		}
	}

	if exchanges > e.cfg.EngagementThreshold {
		breakdown.EngagementBonus = e.cfg.EngagementBonus
		total += e.cfg.EngagementBonus
	}

	breakdown.Raw = total
	if total > e.cfg.Max {
		total = e.cfg.Max
		breakdown.Capped = true
	}
	breakdown.Total = total
	return total, breakdown
}

// Combine merges a freshly computed score with the previously persisted one.
// Scores never decrease for a thread.
func Combine(previous, computed int) int {
	if previous > computed {
		return previous
	}
	return computed
}
