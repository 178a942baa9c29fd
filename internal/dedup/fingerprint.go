// Package dedup guarantees at-most-once effective processing of inbound
// deliveries. Webhook transports redeliver on timeout, and not every source
// carries a unique delivery id, so fingerprints fall back to normalized
// message content bucketed by time.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DefaultBucket is the coarse timestamp bucket for content fingerprints.
// Two identical texts inside one bucket are considered the same delivery.
const DefaultBucket = 5 * time.Minute

// Fingerprint derives the dedup identifier for a delivery. A transport
// delivery id wins when present; otherwise the normalized text plus the
// timestamp bucket stands in for it.
func Fingerprint(deliveryID, text string, ts time.Time, bucket time.Duration) string {
	if id := strings.TrimSpace(deliveryID); id != "" {
		return "d:" + id
	}
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	sum := sha256.New()
	sum.Write([]byte(normalizeText(text)))
	sum.Write([]byte{0})
	sum.Write([]byte(ts.UTC().Truncate(bucket).Format(time.RFC3339)))
	return "c:" + hex.EncodeToString(sum.Sum(nil))[:24]
}

// normalizeText lowercases and collapses whitespace so that transport-level
// reformatting does not defeat content dedup.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
