// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL together with
// its validity window, and the result types produced by the expiry policy.
package entity

import (
	"errors"
	"strconv"
	"time"
)

var (
	// ErrShortCodeExists is returned when attempting to store a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when a URL with the specified id cannot be found.
	ErrURLNotFound = errors.New("url not found")
)

// URL represents a shortened URL.
type URL struct {
	ID          string         // ID is the opaque identifier assigned by the store on creation.
	ShortCode   string         // ShortCode is the generated code used to shorten the original URL.
	OriginalURL string         // OriginalURL is the full URL that the short code resolves to.
	CreatedAt   time.Time      // CreatedAt is the start of the current validity window.
	Expiry      *time.Duration // Expiry is the stored time-to-live, nil when missing or unreadable.
}

// IsActive reports whether the validity window that starts at CreatedAt and
// lasts ttl still covers now. A window ending exactly at now is still active.
func (u *URL) IsActive(now time.Time, ttl time.Duration) bool {
	return !now.After(u.CreatedAt.Add(ttl))
}

// ExpiryOr returns the stored expiry or def when none could be read.
func (u *URL) ExpiryOr(def time.Duration) time.Duration {
	if u.Expiry == nil {
		return def
	}
	return *u.Expiry
}

// URLUpdate describes a partial update of a URL. Nil fields are retained.
type URLUpdate struct {
	ShortCode *string
	CreatedAt *time.Time
	Expiry    *time.Duration
}

// URLFilter selects URLs whose original URL equals any of OriginalURLs.
// An empty filter selects every URL.
type URLFilter struct {
	OriginalURLs []string
}

// ParseExpiry interprets the stored text form of an expiry, a non-negative
// integer count of milliseconds. ok is false for anything else.
func ParseExpiry(s string) (d time.Duration, ok bool) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms < 0 || ms > int64(1<<63-1)/int64(time.Millisecond) {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

// FormatExpiry returns the stored text form of d.
func FormatExpiry(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
