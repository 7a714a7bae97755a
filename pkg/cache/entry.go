package cache

import (
	"time"
)

// Entry represents one cached storefront response body.
type Entry struct {
	// Body is the raw response body
	Body []byte `json:"body"`

	// Expires is when the entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was stored
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry builds an entry that stays fresh for ttl.
func NewEntry(body []byte, ttl time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Body:     body,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
