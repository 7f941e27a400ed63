// Package checksum fingerprints rendered output so unchanged fragments can
// be skipped.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Tracker remembers the last digest seen per key. It is not safe for
// concurrent use; each event stream owns one.
type Tracker struct {
	seen map[string]string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]string)}
}

// Changed records content under key and reports whether it differs from
// what was recorded before. The first call for a key always reports true.
func (t *Tracker) Changed(key, content string) bool {
	sum := Sum([]byte(content))
	if prev, ok := t.seen[key]; ok && prev == sum {
		return false
	}
	t.seen[key] = sum
	return true
}
