package pricing

import "time"

// DefaultStaleAfter is the age beyond which a price observation is no
// longer trusted unless the caller overrides the threshold.
const DefaultStaleAfter = 48 * time.Hour

// Stale reports whether an observation captured at capturedAt is older than
// staleAfter relative to now. A missing capture time is maximally stale.
func Stale(capturedAt *time.Time, staleAfter time.Duration, now time.Time) bool {
	if capturedAt == nil {
		return true
	}
	return now.Sub(*capturedAt) > staleAfter
}

// Expired reports whether the observation's promotional validity window has
// closed. A missing expiry never expires.
func Expired(expiresAt *time.Time, now time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return now.After(*expiresAt)
}
