package domain

import "time"

// Token is an opaque bearer credential bound to one principal.
type Token struct {
	Key         string
	PrincipalID int64
	CreatedAt   time.Time
	ExpiresAt   *time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}
