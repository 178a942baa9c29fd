// Package extract turns free-form chat text into candidate evidence fields.
// The shipped extractor is deterministic pattern/keyword matching; an
// LLM-assisted extractor can sit behind the same interface. Either way the
// engine treats extractor output as untrusted — acceptance is decided solely
// by the evidence merger's confidence gate.
package extract

import (
	"time"

	"github.com/palinopr/leadrouter/internal/lead"
)

// Extractor produces candidate fields from one message. prior is the profile
// known before this turn, so implementations can skip fields already settled;
// they are not required to.
type Extractor interface {
	Extract(text string, prior lead.Profile) ([]lead.EvidenceField, error)
}

// Confidence levels assigned by the pattern extractor. Values below the
// merger's acceptance threshold (0.7 by default) are proposed but dropped.
const (
	confExplicit  = 0.9  // user stated the fact in a recognized phrase
	confKeyword   = 0.85 // canonical keyword match
	confValidated = 0.95 // syntactically validated (email, phone)
	confWeak      = 0.6  // loose match, below the default acceptance gate
)

// PatternExtractor is the deterministic regex/keyword implementation.
// It understands Spanish and English lead messages.
type PatternExtractor struct {
	now func() time.Time
}

// NewPatternExtractor creates the deterministic extractor.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{now: time.Now}
}

// Extract scans text for every field in the canonical catalog. It never
// returns an error; the error is part of the Extractor contract for
// implementations that call external services.
func (e *PatternExtractor) Extract(text string, prior lead.Profile) ([]lead.EvidenceField, error) {
	if text == "" {
		return nil, nil
	}
	ts := e.now().UTC()

	var candidates []lead.EvidenceField
	add := func(name, value string, confidence float64) {
		if value == "" {
			return
		}
		candidates = append(candidates, lead.EvidenceField{
			Name:        name,
			Value:       value,
			Confidence:  confidence,
			Source:      lead.SourceCurrent,
			ExtractedAt: ts,
		})
	}

	if name := findName(text); name != "" {
		add(lead.FieldName, name, confExplicit)
	}
	if business := findBusinessType(text); business != "" {
		add(lead.FieldBusinessType, business, confKeyword)
	}
	if goal := findGoal(text); goal != "" {
		add(lead.FieldGoal, goal, confKeyword)
	}
	if budget, confidence := findBudget(text); budget != "" {
		add(lead.FieldBudget, budget, confidence)
	}
	if email := findEmail(text); email != "" {
		add(lead.FieldEmail, email, confValidated)
	}
	if phone, confidence := findPhone(text); phone != "" {
		add(lead.FieldPhone, phone, confidence)
	}
	if urgency := findUrgency(text); urgency != "" {
		add(lead.FieldUrgency, urgency, confKeyword)
	}
	if location := findLocation(text); location != "" {
		add(lead.FieldLocation, location, confKeyword)
	}

	return candidates, nil
}
