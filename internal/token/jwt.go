package token

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/eventhub/internal/clock"
	"github.com/iliyamo/eventhub/internal/model"
)

// JWTSigner issues HS256 JWT access tokens. It satisfies the same verify
// contract as HMACSigner and is selected with ACCESS_TOKEN_FORMAT=jwt.
type JWTSigner struct {
	base
	parser *jwt.Parser
}

type accessClaims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewJWTSigner returns a JWTSigner bound to cfg.
func NewJWTSigner(cfg Config, clk clock.Clock) *JWTSigner {
	s := &JWTSigner{base: newBase(cfg, clk)}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(clk.Now),
	)
	return s
}

// CreateAccessToken builds and signs an HS256 JWT carrying sub, role, email,
// iss, iat and exp.
func (s *JWTSigner) CreateAccessToken(userID string, role model.Role, email string) (string, error) {
	now := s.clock.Now()
	claims := accessClaims{
		Role:  string(role),
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyAccessToken parses and validates a JWT. The parser rejects any
// algorithm other than HS256, a foreign issuer, and a missing or past exp.
func (s *JWTSigner) VerifyAccessToken(token string) (Claims, bool) {
	var claims accessClaims
	tok, err := s.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, false
	}
	role, err := model.ParseRole(claims.Role)
	if err != nil || claims.Subject == "" || claims.ExpiresAt == nil {
		return Claims{}, false
	}
	out := Claims{
		Issuer:    claims.Issuer,
		Subject:   claims.Subject,
		Role:      role,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return out, true
}
