package model

import "time"

// TokenState is the position of a refresh token record in the rotation
// state machine. ROTATED and REVOKED are stored (through RevokedAt and
// ReplacedByTokenID); EXPIRED is derived from the clock.
type TokenState string

const (
	TokenActive  TokenState = "ACTIVE"
	TokenRotated TokenState = "ROTATED"
	TokenRevoked TokenState = "REVOKED"
	TokenExpired TokenState = "EXPIRED"
)

// RefreshToken models an entry in the `refresh_tokens` table. The raw token
// is never stored; TokenHash is the peppered digest used as the lookup key.
// Records are never deleted: revocation only sets RevokedAt, and once set it
// is never cleared.
type RefreshToken struct {
	ID                string
	UserID            string
	TokenHash         string
	FamilyID          string // shared by every rotation descendant of one login
	DeviceID          string
	DeviceName        string
	IssuedAt          time.Time
	ExpiresAt         time.Time
	LastUsedAt        *time.Time
	RevokedAt         *time.Time
	ReplacedByTokenID *string // non-nil only for ROTATED records
}

// Revoked reports whether the record has left the ACTIVE state.
func (t RefreshToken) Revoked() bool { return t.RevokedAt != nil }

// Expired reports whether now is past the record's expiry.
func (t RefreshToken) Expired(now time.Time) bool { return now.After(t.ExpiresAt) }

// State derives the record's state at now. A revoked record keeps its
// stored state even after it would also have expired.
func (t RefreshToken) State(now time.Time) TokenState {
	switch {
	case t.RevokedAt != nil && t.ReplacedByTokenID != nil:
		return TokenRotated
	case t.RevokedAt != nil:
		return TokenRevoked
	case t.Expired(now):
		return TokenExpired
	default:
		return TokenActive
	}
}
