package routing

import (
	"fmt"
	"strings"

	"github.com/palinopr/leadrouter/internal/lead"
)

// Decision is the auditable output of one routing evaluation.
type Decision struct {
	Tier Tier `json:"tier"`
	// NextMissingField is the first field in the canonical ask order that
	// the profile does not cover, so the WARM handler never asks for
	// information it already has. Empty when nothing is left to ask.
	NextMissingField string `json:"next_missing_field,omitempty"`
	// MissingMandatory lists unsatisfied hand-off requirements.
	MissingMandatory []string `json:"missing_mandatory,omitempty"`
	// Reason explains the assignment for audit logs.
	Reason string `json:"reason"`
}

// InvariantViolation signals that a decision would have routed to the
// closing tier without every mandatory field present. This is a programming
// error in the state machine, never a recoverable condition.
type InvariantViolation struct {
	Score   int
	Missing []string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("routing: HOT decision with missing mandatory fields %v (score=%d)",
		e.Missing, e.Score)
}

// Machine evaluates tier transitions against one policy.
type Machine struct {
	policy Policy
}

// NewMachine creates a state machine for the given policy.
func NewMachine(policy Policy) (*Machine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Machine{policy: policy}, nil
}

// Policy returns the active policy table.
func (m *Machine) Policy() Policy {
	return m.policy
}

// Decide selects the tier for the given score and profile. Score alone never
// authorizes HOT: when the score clears the hot threshold but a mandatory
// field is missing, the conversation is forced to WARM so its handler can
// elicit what is missing. The returned tier never ranks below current,
// because evidence and score are both monotone for a thread.
func (m *Machine) Decide(score int, profile lead.Profile, current Tier) (Decision, error) {
	missing := m.policy.MissingMandatory(profile)

	decision := Decision{
		NextMissingField: profile.NextToAsk(),
		MissingMandatory: missing,
	}

	switch {
	case score >= m.policy.HotThreshold && len(missing) == 0:
		decision.Tier = TierHot
		decision.Reason = fmt.Sprintf("score %d >= %d and all mandatory fields present", score, m.policy.HotThreshold)
	case score >= m.policy.HotThreshold:
		decision.Tier = TierWarm
		decision.Reason = fmt.Sprintf("score %d qualifies but mandatory fields missing: %s", score, strings.Join(missing, ", "))
	case score >= m.policy.WarmThreshold:
		decision.Tier = TierWarm
		decision.Reason = fmt.Sprintf("score %d in warm range [%d,%d)", score, m.policy.WarmThreshold, m.policy.HotThreshold)
	default:
		decision.Tier = TierCold
		decision.Reason = fmt.Sprintf("score %d below warm threshold %d", score, m.policy.WarmThreshold)
	}

	if decision.Tier.rank() < current.rank() {
		decision.Tier = current
		decision.Reason = fmt.Sprintf("retained %s tier; %s", current, decision.Reason)
	}

	if decision.Tier == TierHot && len(missing) > 0 {
		return Decision{}, &InvariantViolation{Score: score, Missing: missing}
	}

	return decision, nil
}
