package lead

import "strings"

// MergeSettings controls per-field acceptance thresholds.
type MergeSettings struct {
	// DefaultThreshold is the minimum confidence a candidate needs to be
	// considered at all.
	DefaultThreshold float64 `yaml:"default_threshold"`
	// FieldThresholds overrides the default for specific fields.
	FieldThresholds map[string]float64 `yaml:"field_thresholds"`
}

// DefaultMergeSettings returns the standard acceptance thresholds.
func DefaultMergeSettings() MergeSettings {
	return MergeSettings{DefaultThreshold: 0.7}
}

func (s MergeSettings) threshold(field string) float64 {
	if t, ok := s.FieldThresholds[field]; ok {
		return t
	}
	return s.DefaultThreshold
}

// Merger is the single authority for folding candidate evidence into a
// profile. No other component may overwrite profile fields.
type Merger struct {
	settings MergeSettings
}

// NewMerger creates a merger with the given settings.
func NewMerger(settings MergeSettings) *Merger {
	if settings.DefaultThreshold <= 0 {
		settings.DefaultThreshold = DefaultMergeSettings().DefaultThreshold
	}
	return &Merger{settings: settings}
}

// Merge folds candidates into profile and returns the result. The input
// profile is not mutated. Historical candidates are applied first and can
// only seed fields the profile does not already cover; current-turn
// candidates are applied last and win ties against stale data. Merging the
// same candidate set twice yields the same profile.
func (m *Merger) Merge(profile Profile, candidates []EvidenceField) Profile {
	merged := profile.Clone()

	for _, candidate := range candidates {
		if candidate.Source == SourceHistorical {
			m.apply(merged, candidate)
		}
	}
	for _, candidate := range candidates {
		if candidate.Source != SourceHistorical {
			m.apply(merged, candidate)
		}
	}
	return merged
}

func (m *Merger) apply(profile Profile, candidate EvidenceField) {
	if !KnownField(candidate.Name) {
		return
	}
	if strings.TrimSpace(candidate.Value) == "" {
		return
	}
	if candidate.Confidence < m.settings.threshold(candidate.Name) {
		return
	}

	existing, ok := profile[candidate.Name]
	if candidate.Source == SourceHistorical {
		// Seed only: historical evidence never overrides a value that is
		// already present, regardless of confidence.
		if ok && strings.TrimSpace(existing.Value) != "" {
			return
		}
		profile[candidate.Name] = candidate
		return
	}

	if !ok || strings.TrimSpace(existing.Value) == "" || candidate.Confidence >= existing.Confidence {
		profile[candidate.Name] = candidate
	}
}
