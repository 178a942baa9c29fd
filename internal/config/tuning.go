package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/palinopr/leadrouter/internal/lead"
	"github.com/palinopr/leadrouter/internal/routing"
	"github.com/palinopr/leadrouter/internal/scoring"
)

// Tuning bundles the operator-adjustable tables: the scoring rubric, the
// routing thresholds, and the evidence merge gates.
type Tuning struct {
	Scoring scoring.Config     `yaml:"scoring"`
	Routing routing.Policy     `yaml:"routing"`
	Merge   lead.MergeSettings `yaml:"merge"`
}

// DefaultTuning returns the built-in tables.
func DefaultTuning() *Tuning {
	return &Tuning{
		Scoring: scoring.DefaultConfig(),
		Routing: routing.DefaultPolicy(),
		Merge:   lead.DefaultMergeSettings(),
	}
}

// LoadTuning reads a YAML tuning file over the defaults. An empty path
// returns the defaults unchanged. The routing policy is validated here so a
// bad file fails at startup rather than mid-conversation.
func LoadTuning(path string) (*Tuning, error) {
	tuning := DefaultTuning()
	if path == "" {
		return tuning, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, tuning); err != nil {
		return nil, fmt.Errorf("config: parsing tuning file: %w", err)
	}
	if err := tuning.Routing.Validate(); err != nil {
		return nil, fmt.Errorf("config: tuning file: %w", err)
	}
	return tuning, nil
}
