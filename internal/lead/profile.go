package lead

import "strings"

// Profile maps canonical field names to the best evidence seen so far for one
// conversation thread. The zero value is usable.
type Profile map[string]EvidenceField

// Clone returns an independent copy of the profile.
func (p Profile) Clone() Profile {
	out := make(Profile, len(p))
	for name, field := range p {
		out[name] = field
	}
	return out
}

// Get returns the evidence recorded for name.
func (p Profile) Get(name string) (EvidenceField, bool) {
	field, ok := p[name]
	return field, ok
}

// Value returns the recorded value for name, or "" when absent.
func (p Profile) Value(name string) string {
	return p[name].Value
}

// Has reports whether a non-empty value is recorded for name.
func (p Profile) Has(name string) bool {
	return strings.TrimSpace(p[name].Value) != ""
}

// HasContact reports whether the profile carries a follow-up address.
// Either an email or a phone number satisfies the contact requirement.
func (p Profile) HasContact() bool {
	return p.Has(FieldEmail) || p.Has(FieldPhone)
}

// BudgetAmount parses the recorded budget into a number.
func (p Profile) BudgetAmount() (float64, bool) {
	if !p.Has(FieldBudget) {
		return 0, false
	}
	return ParseAmount(p.Value(FieldBudget))
}

// NextToAsk returns the first field in the canonical ask order that the
// profile does not yet cover, so a handler never asks for information it
// already has. Returns "" when everything in the ask order is present.
func (p Profile) NextToAsk() string {
	for _, name := range AskOrder {
		if !p.Has(name) {
			return name
		}
	}
	return ""
}

// FieldCount returns how many distinct fields carry a non-empty value.
func (p Profile) FieldCount() int {
	count := 0
	for name := range p {
		if p.Has(name) {
			count++
		}
	}
	return count
}
