// Package routing assigns a conversation to one of the COLD/WARM/HOT handler
// tiers. All thresholds and hand-off requirements live in a single
// declarative Policy table so the routing rules are testable in isolation
// from any text heuristics.
package routing

import (
	"fmt"

	"github.com/palinopr/leadrouter/internal/lead"
)

// Tier is the routing classification for a conversation.
type Tier string

const (
	TierCold Tier = "COLD"
	TierWarm Tier = "WARM"
	TierHot  Tier = "HOT"
)

// rank orders tiers so a conversation never falls back to a lower tier once
// its evidence has earned a higher one.
func (t Tier) rank() int {
	switch t {
	case TierHot:
		return 2
	case TierWarm:
		return 1
	default:
		return 0
	}
}

// Mandatory requirement labels reported to handlers and callers.
const (
	RequirementName    = "name"
	RequirementContact = "contact"
	RequirementBudget  = "budget"
)

// Policy is the single source of truth for tier assignment: score thresholds
// crossed with mandatory-field requirements. Values are deployment
// configuration, not hard-coded law.
type Policy struct {
	// WarmThreshold is the minimum score for the WARM tier.
	WarmThreshold int `yaml:"warm_threshold"`
	// HotThreshold is the minimum score for the HOT tier.
	HotThreshold int `yaml:"hot_threshold"`
	// MinimumBudget is the qualifying capacity value. A stated budget below
	// this never satisfies the HOT budget requirement.
	MinimumBudget float64 `yaml:"minimum_budget"`
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		WarmThreshold: 4,
		HotThreshold:  8,
		MinimumBudget: 300,
	}
}

// MissingMandatory lists the hand-off requirements the profile does not yet
// satisfy, in elicitation order. An empty result means the closing tier is
// permitted.
func (p Policy) MissingMandatory(profile lead.Profile) []string {
	var missing []string
	if !profile.Has(lead.FieldName) {
		missing = append(missing, RequirementName)
	}
	if !profile.HasContact() {
		missing = append(missing, RequirementContact)
	}
	if amount, ok := profile.BudgetAmount(); !ok || amount < p.MinimumBudget {
		missing = append(missing, RequirementBudget)
	}
	return missing
}

// Validate rejects policies that cannot order the tiers.
func (p Policy) Validate() error {
	if p.WarmThreshold <= 0 || p.HotThreshold <= 0 {
		return fmt.Errorf("routing: thresholds must be positive (warm=%d hot=%d)", p.WarmThreshold, p.HotThreshold)
	}
	if p.HotThreshold <= p.WarmThreshold {
		return fmt.Errorf("routing: hot threshold %d must exceed warm threshold %d", p.HotThreshold, p.WarmThreshold)
	}
	return nil
}
