// Package identity maps the volatile identifiers carried by inbound webhook
// deliveries to a stable internal thread key. Transport-assigned conversation
// ids can change between retries or channel migrations, so the durable
// contact-scoped identifier is always the canonical key when present.
package identity

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// ThreadKey is the stable identifier for one ongoing conversation. The same
// external entity always resolves to the same ThreadKey.
type ThreadKey string

func (k ThreadKey) String() string { return string(k) }

// ExternalRefs are the identifiers a single delivery may carry. Any subset
// can be missing.
type ExternalRefs struct {
	ContactID      string `json:"contact_id"`
	Phone          string `json:"phone"`
	ConversationID string `json:"conversation_id"`
}

// IdentityError indicates a delivery carried no usable identifier. Callers
// must surface these messages for manual triage, never drop them silently.
type IdentityError struct {
	Refs ExternalRefs
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity: no resolvable thread key (contact_id=%q phone=%q conversation_id=%q)",
		e.Refs.ContactID, e.Refs.Phone, e.Refs.ConversationID)
}

// DefaultRegion is used to parse phone numbers given without a country code.
const DefaultRegion = "US"

// Resolve derives the thread key for a delivery. Priority order:
// durable contact id, then contact phone number, then the transport
// conversation id as a last resort.
func Resolve(refs ExternalRefs) (ThreadKey, error) {
	if id := strings.TrimSpace(refs.ContactID); id != "" {
		return ThreadKey("contact-" + id), nil
	}
	if phone := NormalizePhone(refs.Phone); phone != "" {
		return ThreadKey("contact-phone-" + phone), nil
	}
	if id := strings.TrimSpace(refs.ConversationID); id != "" {
		return ThreadKey("conv-" + id), nil
	}
	return "", &IdentityError{Refs: refs}
}

// NormalizePhone canonicalizes a raw phone string to E.164 so the same number
// always yields the same key regardless of formatting. Returns "" when the
// input does not look like a phone number.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := phonenumbers.Parse(raw, DefaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return normalizeDigits(raw)
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}

// normalizeDigits strips non-digits and normalizes 10-digit US numbers to the
// 11-digit form, as a fallback when full parsing fails.
func normalizeDigits(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) < 7 {
		return ""
	}
	if len(d) == 10 {
		d = "1" + d
	}
	return "+" + d
}
