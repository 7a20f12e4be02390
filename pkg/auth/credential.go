package auth

import "time"

// RefreshSkew is the safety margin subtracted from expiry so refresh
// happens before the remote service starts rejecting the token.
const RefreshSkew = 60 * time.Second

// Credential is the short-lived bearer token plus the region serving it.
// It is only ever replaced whole, never patched in place.
type Credential struct {
	Token     string
	Region    string
	ExpiresAt time.Time
}

// Usable reports whether the credential is still inside its validity
// window at the given instant, skew included.
func (c Credential) Usable(now time.Time, skew time.Duration) bool {
	if c.Token == "" {
		return false
	}
	return now.Before(c.ExpiresAt.Add(-skew))
}

// Remaining returns the validity left before actual expiry.
func (c Credential) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}
