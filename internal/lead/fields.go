package lead

import (
	"strconv"
	"strings"
	"time"
)

// Canonical field names. Extractors may only propose fields from this set;
// anything else is dropped by the merger.
const (
	FieldName         = "name"
	FieldBusinessType = "business_type"
	FieldGoal         = "goal"
	FieldBudget       = "budget"
	FieldEmail        = "email"
	FieldPhone        = "phone"
	FieldLocation     = "location"
	FieldUrgency      = "urgency"
)

// Source identifies where an evidence value came from. Historical evidence
// seeds a profile but must never be read as a statement about the current turn.
type Source string

const (
	SourceCurrent    Source = "current"
	SourceHistorical Source = "historical"
)

// EvidenceField is one named attribute extracted from a conversation, with the
// confidence the extractor assigned to it.
type EvidenceField struct {
	Name        string    `json:"name"`
	Value       string    `json:"value"`
	Confidence  float64   `json:"confidence"`
	Source      Source    `json:"source"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// AskOrder is the canonical order in which missing qualification fields are
// elicited, one at a time.
var AskOrder = []string{FieldName, FieldBusinessType, FieldGoal, FieldBudget}

// KnownFields reports whether name is part of the canonical field catalog.
func KnownField(name string) bool {
	switch name {
	case FieldName, FieldBusinessType, FieldGoal, FieldBudget,
		FieldEmail, FieldPhone, FieldLocation, FieldUrgency:
		return true
	}
	return false
}

// ParseAmount extracts a numeric value from a budget-style string such as
// "$500", "500 usd", "1,500" or "2k". Returns false when no number is present.
func ParseAmount(value string) (float64, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(value))
	cleaned = strings.NewReplacer("$", "", ",", "", "usd", "", "mxn", "", "pesos", "", "dolares", "", "dollars", "").Replace(cleaned)
	cleaned = strings.TrimSpace(cleaned)

	multiplier := 1.0
	if strings.HasSuffix(cleaned, "k") {
		multiplier = 1000
		cleaned = strings.TrimSuffix(cleaned, "k")
	}

	fields := strings.Fields(cleaned)
	if len(fields) > 0 {
		cleaned = fields[0]
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return amount * multiplier, true
}
