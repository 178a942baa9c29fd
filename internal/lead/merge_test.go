package lead

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func field(name, value string, conf float64, source Source) EvidenceField {
	return EvidenceField{
		Name:        name,
		Value:       value,
		Confidence:  conf,
		Source:      source,
		ExtractedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMergeAcceptsAboveThreshold(t *testing.T) {
	m := NewMerger(DefaultMergeSettings())

	merged := m.Merge(Profile{}, []EvidenceField{
		field(FieldName, "Maria", 0.9, SourceCurrent),
		field(FieldBusinessType, "restaurante", 0.5, SourceCurrent), // below 0.7
	})

	assert.Equal(t, "Maria", merged.Value(FieldName))
	assert.False(t, merged.Has(FieldBusinessType), "low-confidence candidate must be rejected")
}

func TestMergeNeverDowngradesConfidence(t *testing.T) {
	m := NewMerger(DefaultMergeSettings())

	profile := m.Merge(Profile{}, []EvidenceField{
		field(FieldGoal, "more customers", 0.95, SourceCurrent),
	})
	merged := m.Merge(profile, []EvidenceField{
		field(FieldGoal, "something else", 0.75, SourceCurrent),
	})

	assert.Equal(t, "more customers", merged.Value(FieldGoal))
}

func TestMergeCurrentWinsTies(t *testing.T) {
	m := NewMerger(DefaultMergeSettings())

	profile := m.Merge(Profile{}, []EvidenceField{
		field(FieldGoal, "old goal", 0.8, SourceCurrent),
	})
	merged := m.Merge(profile, []EvidenceField{
		field(FieldGoal, "new goal", 0.8, SourceCurrent),
	})

	assert.Equal(t, "new goal", merged.Value(FieldGoal), "live statements win ties")
}

func TestMergeHistoricalOnlySeeds(t *testing.T) {
	m := NewMerger(DefaultMergeSettings())

	profile := m.Merge(Profile{}, []EvidenceField{
		field(FieldName, "Maria", 0.75, SourceCurrent),
	})
	merged := m.Merge(profile, []EvidenceField{
		field(FieldName, "Mariana", 0.99, SourceHistorical),
		field(FieldEmail, "maria@example.com", 0.9, SourceHistorical),
	})

	assert.Equal(t, "Maria", merged.Value(FieldName), "historical evidence must not override a present value")
	assert.Equal(t, "maria@example.com", merged.Value(FieldEmail), "historical evidence may seed absent fields")
}

func TestMergeHistoricalAppliedBeforeCurrent(t *testing.T) {
	m := NewMerger(DefaultMergeSettings())

	merged := m.Merge(Profile{}, []EvidenceField{
		field(FieldGoal, "current goal", 0.7, SourceCurrent),
		field(FieldGoal, "historical goal", 0.99, SourceHistorical),
	})

	assert.Equal(t, "current goal", merged.Value(FieldGoal))
}

func TestMergeIdempotent(t *testing.T) {
	m := NewMerger(DefaultMergeSettings())
	candidates := []EvidenceField{
		field(FieldName, "Carlos", 0.85, SourceCurrent),
		field(FieldBudget, "$500", 0.8, SourceCurrent),
		field(FieldPhone, "+13055550100", 0.9, SourceHistorical),
	}

	once := m.Merge(Profile{}, candidates)
	twice := m.Merge(once, candidates)

	require.Equal(t, once, twice, "merge must be idempotent")
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	m := NewMerger(DefaultMergeSettings())
	original := Profile{
		FieldName: field(FieldName, "Ana", 0.9, SourceCurrent),
	}

	m.Merge(original, []EvidenceField{
		field(FieldName, "Other", 0.95, SourceCurrent),
		field(FieldEmail, "ana@example.com", 0.9, SourceCurrent),
	})

	assert.Equal(t, "Ana", original.Value(FieldName))
	assert.False(t, original.Has(FieldEmail))
}

func TestMergeRejectsUnknownAndEmptyFields(t *testing.T) {
	m := NewMerger(DefaultMergeSettings())

	merged := m.Merge(Profile{}, []EvidenceField{
		field("favorite_color", "blue", 0.99, SourceCurrent),
		field(FieldName, "   ", 0.99, SourceCurrent),
	})

	assert.Empty(t, merged)
}

func TestMergePerFieldThreshold(t *testing.T) {
	settings := DefaultMergeSettings()
	settings.FieldThresholds = map[string]float64{FieldEmail: 0.95}
	m := NewMerger(settings)

	merged := m.Merge(Profile{}, []EvidenceField{
		field(FieldEmail, "a@b.com", 0.9, SourceCurrent),
		field(FieldName, "Luis", 0.9, SourceCurrent),
	})

	assert.False(t, merged.Has(FieldEmail))
	assert.True(t, merged.Has(FieldName))
}
