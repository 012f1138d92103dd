package service

import (
	"context"
	"time"

	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/queue"
	"github.com/iliyamo/eventhub/internal/token"
)

// IdentityStore looks up and persists user records.
// Implemented by repository.UserRepo and repository.MemoryUserRepo.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
	FindAll(ctx context.Context) ([]model.User, error)
	Save(ctx context.Context, u *model.User) error
	// TouchLogin records a login; it fails with repository.ErrNotFound
	// unless the user exists and is still ACTIVE.
	TouchLogin(ctx context.Context, id string, at time.Time) error
	DeleteByID(ctx context.Context, id string) error
}

// CredentialVerifier is a one-way password hashing capability.
type CredentialVerifier interface {
	Hash(raw string) (string, error)
	Matches(raw, hash string) bool
}

// TokenSigner issues access tokens and opaque refresh tokens.
type TokenSigner interface {
	CreateAccessToken(userID string, role model.Role, email string) (string, error)
	VerifyAccessToken(raw string) (token.Claims, bool)
	NewRefreshToken() (string, error)
	HashRefreshToken(raw string) string
	AccessTTLSeconds() int64
	RefreshTTLSeconds() int64
}

// SessionLedger stores refresh-token records. Every revoke and Rotate only
// touches records whose revokedAt is still unset.
type SessionLedger interface {
	FindByTokenHash(ctx context.Context, hash string) (model.RefreshToken, error)
	FindByID(ctx context.Context, id string) (model.RefreshToken, error)
	ListByUserID(ctx context.Context, userID string) ([]model.RefreshToken, error)
	Save(ctx context.Context, t *model.RefreshToken) error
	// Rotate marks id as replaced by replacedByID and reports whether this
	// call performed the transition.
	Rotate(ctx context.Context, id string, at time.Time, replacedByID string) (bool, error)
	RevokeByID(ctx context.Context, id string, at time.Time) (int64, error)
	RevokeByFamilyID(ctx context.Context, familyID string, at time.Time) (int64, error)
	RevokeByUserID(ctx context.Context, userID string, at time.Time) (int64, error)
}

// EventPublisher delivers audit events. Implemented by queue.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event queue.AuthEvent) error
}
