// Package token issues and verifies the credentials handed to clients:
// short-lived access tokens and opaque refresh tokens.
//
// Two access-token envelopes share one verify contract (tamper evidence,
// issuer check, expiry check). HMACSigner produces the legacy wire format
//
//	base64url(payload) + "." + base64url(HMAC-SHA256(payload, secret))
//	payload = "iss=<issuer>;sub=<userId>;role=<role>;email=<email>;iat=<unix>;exp=<unix>"
//
// and JWTSigner produces an HS256 JWT. Refresh tokens are the same for both.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/eventhub/internal/clock"
	"github.com/iliyamo/eventhub/internal/model"
)

// Formats accepted by NewSigner.
const (
	FormatHMAC = "hmac"
	FormatJWT  = "jwt"
)

// Config carries the process-wide signing settings. It is built once at
// startup and never read from the environment again.
type Config struct {
	Format     string
	Issuer     string
	Secret     []byte
	Pepper     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Claims are the verified contents of an access token.
type Claims struct {
	Issuer    string
	Subject   string // user id
	Role      model.Role
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Signer is implemented by HMACSigner and JWTSigner.
type Signer interface {
	CreateAccessToken(userID string, role model.Role, email string) (string, error)
	VerifyAccessToken(token string) (Claims, bool)
	NewRefreshToken() (string, error)
	HashRefreshToken(raw string) string
	AccessTTLSeconds() int64
	RefreshTTLSeconds() int64
}

// NewSigner validates cfg and returns the signer for cfg.Format.
func NewSigner(cfg Config, clk clock.Clock) (Signer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.System{}
	}
	switch strings.ToLower(cfg.Format) {
	case "", FormatHMAC:
		return NewHMACSigner(cfg, clk), nil
	case FormatJWT:
		return NewJWTSigner(cfg, clk), nil
	default:
		return nil, fmt.Errorf("unknown access token format %q", cfg.Format)
	}
}

func (c Config) validate() error {
	switch {
	case len(c.Secret) == 0:
		return errors.New("signing secret is required")
	case len(c.Pepper) == 0:
		return errors.New("refresh token pepper is required")
	case strings.TrimSpace(c.Issuer) == "":
		return errors.New("issuer is required")
	case c.AccessTTL <= 0 || c.RefreshTTL <= 0:
		return errors.New("token TTLs must be positive")
	}
	return nil
}

// base carries the settings shared by both envelopes.
type base struct {
	refreshTokens
	issuer     string
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clock.Clock
}

func newBase(cfg Config, clk clock.Clock) base {
	return base{
		refreshTokens: refreshTokens{pepper: cfg.Pepper},
		issuer:        cfg.Issuer,
		secret:        cfg.Secret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		clock:         clk,
	}
}

func (b base) AccessTTLSeconds() int64  { return int64(b.accessTTL / time.Second) }
func (b base) RefreshTTLSeconds() int64 { return int64(b.refreshTTL / time.Second) }
