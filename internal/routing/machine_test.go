package routing

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palinopr/leadrouter/internal/lead"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := NewMachine(DefaultPolicy())
	require.NoError(t, err)
	return m
}

func profileWith(values map[string]string) lead.Profile {
	p := lead.Profile{}
	for name, value := range values {
		p[name] = lead.EvidenceField{Name: name, Value: value, Confidence: 0.9, Source: lead.SourceCurrent}
	}
	return p
}

func qualifiedProfile() lead.Profile {
	return profileWith(map[string]string{
		lead.FieldName:   "Maria Garcia",
		lead.FieldPhone:  "+13055550100",
		lead.FieldBudget: "$500",
	})
}

func TestDecideColdForLowScore(t *testing.T) {
	m := newTestMachine(t)
	decision, err := m.Decide(1, lead.Profile{}, TierCold)
	require.NoError(t, err)

	assert.Equal(t, TierCold, decision.Tier)
	assert.Equal(t, lead.FieldName, decision.NextMissingField)
	assert.ElementsMatch(t, []string{RequirementName, RequirementContact, RequirementBudget}, decision.MissingMandatory)
}

func TestDecideWarmMidRange(t *testing.T) {
	m := newTestMachine(t)
	decision, err := m.Decide(5, profileWith(map[string]string{lead.FieldBusinessType: "restaurante"}), TierCold)
	require.NoError(t, err)

	assert.Equal(t, TierWarm, decision.Tier)
	assert.Equal(t, lead.FieldName, decision.NextMissingField)
}

func TestScoreAloneNeverAuthorizesHot(t *testing.T) {
	m := newTestMachine(t)

	tests := []struct {
		name    string
		profile lead.Profile
	}{
		{"empty profile", lead.Profile{}},
		{"missing contact", profileWith(map[string]string{
			lead.FieldName:   "Maria",
			lead.FieldBudget: "$500",
		})},
		{"missing name", profileWith(map[string]string{
			lead.FieldPhone:  "+13055550100",
			lead.FieldBudget: "$500",
		})},
		{"budget below minimum", profileWith(map[string]string{
			lead.FieldName:   "Maria",
			lead.FieldPhone:  "+13055550100",
			lead.FieldBudget: "$100",
		})},
		{"budget not numeric", profileWith(map[string]string{
			lead.FieldName:   "Maria",
			lead.FieldPhone:  "+13055550100",
			lead.FieldBudget: "whatever it takes",
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := m.Decide(10, tt.profile, TierWarm)
			require.NoError(t, err)
			assert.Equal(t, TierWarm, decision.Tier, "high score with incomplete mandatory fields must force WARM")
			assert.NotEmpty(t, decision.MissingMandatory)
		})
	}
}

func TestDecideHotRequiresEverything(t *testing.T) {
	m := newTestMachine(t)

	decision, err := m.Decide(9, qualifiedProfile(), TierWarm)
	require.NoError(t, err)
	assert.Equal(t, TierHot, decision.Tier)
	assert.Empty(t, decision.MissingMandatory)
}

func TestDecideNeverDowngrades(t *testing.T) {
	m := newTestMachine(t)

	decision, err := m.Decide(2, profileWith(map[string]string{lead.FieldBusinessType: "tienda"}), TierWarm)
	require.NoError(t, err)
	assert.Equal(t, TierWarm, decision.Tier, "an earned tier is retained even when a turn adds nothing")
}

func TestHotInvariantPropertyRandomSubsets(t *testing.T) {
	m := newTestMachine(t)
	rng := rand.New(rand.NewSource(7))

	fields := []string{
		lead.FieldName, lead.FieldBusinessType, lead.FieldGoal, lead.FieldBudget,
		lead.FieldEmail, lead.FieldPhone, lead.FieldLocation, lead.FieldUrgency,
	}
	budgets := []string{"$500", "$100", "2k", "no idea", ""}
	tiers := []Tier{TierCold, TierWarm}

	for trial := 0; trial < 1000; trial++ {
		profile := lead.Profile{}
		for _, name := range fields {
			if rng.Intn(2) == 0 {
				continue
			}
			value := "x"
			if name == lead.FieldBudget {
				value = budgets[rng.Intn(len(budgets))]
			}
			if value == "" {
				continue
			}
			profile[name] = lead.EvidenceField{Name: name, Value: value, Confidence: 0.9}
		}

		score := 1 + rng.Intn(10)
		decision, err := m.Decide(score, profile, tiers[rng.Intn(len(tiers))])
		require.NoError(t, err)

		if decision.Tier == TierHot {
			assert.Empty(t, m.Policy().MissingMandatory(profile),
				"HOT tier with missing mandatory fields: score=%d profile=%v", score, profile)
		}
	}
}

func TestInvariantViolationSurfaces(t *testing.T) {
	m := newTestMachine(t)

	// A profile can only lose a mandatory requirement through a policy
	// change; a previously earned HOT tier must then trip the assertion
	// rather than silently routing to the closing handler.
	_, err := m.Decide(2, lead.Profile{}, TierHot)
	require.Error(t, err)

	var violation *InvariantViolation
	assert.True(t, errors.As(err, &violation))
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	bad := Policy{WarmThreshold: 8, HotThreshold: 4, MinimumBudget: 100}
	assert.Error(t, bad.Validate())

	zero := Policy{}
	assert.Error(t, zero.Validate())
}

func TestMissingMandatoryOrder(t *testing.T) {
	p := DefaultPolicy()

	missing := p.MissingMandatory(lead.Profile{})
	assert.Equal(t, []string{RequirementName, RequirementContact, RequirementBudget}, missing)

	missing = p.MissingMandatory(profileWith(map[string]string{lead.FieldName: "Ana"}))
	assert.Equal(t, []string{RequirementContact, RequirementBudget}, missing)
}
