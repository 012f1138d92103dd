package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/eventhub/internal/clock"
	"github.com/iliyamo/eventhub/internal/model"
)

var b64 = base64.RawURLEncoding

// ErrReservedCharacter is returned when a claim value would break the
// payload's field separator.
var ErrReservedCharacter = errors.New("claim contains reserved character ';'")

// HMACSigner issues access tokens in the legacy payload+MAC format.
type HMACSigner struct {
	base
}

// NewHMACSigner returns an HMACSigner. Callers normally go through NewSigner,
// which validates cfg first.
func NewHMACSigner(cfg Config, clk clock.Clock) *HMACSigner {
	return &HMACSigner{base: newBase(cfg, clk)}
}

// CreateAccessToken signs a token for the given identity that expires
// AccessTTL from now.
func (s *HMACSigner) CreateAccessToken(userID string, role model.Role, email string) (string, error) {
	if strings.ContainsRune(userID, ';') || strings.ContainsRune(email, ';') {
		return "", ErrReservedCharacter
	}
	now := s.clock.Now()
	payload := fmt.Sprintf("iss=%s;sub=%s;role=%s;email=%s;iat=%d;exp=%d",
		s.issuer, userID, role, email, now.Unix(), now.Add(s.accessTTL).Unix())
	return b64.EncodeToString([]byte(payload)) + "." + b64.EncodeToString(s.mac([]byte(payload))), nil
}

// VerifyAccessToken checks the MAC in constant time, then the issuer and the
// expiry. Any failure yields ok == false without saying which check failed.
func (s *HMACSigner) VerifyAccessToken(token string) (Claims, bool) {
	encPayload, encSig, found := strings.Cut(token, ".")
	if !found || encPayload == "" || encSig == "" {
		return Claims{}, false
	}
	payload, err := b64.DecodeString(encPayload)
	if err != nil {
		return Claims{}, false
	}
	sig, err := b64.DecodeString(encSig)
	if err != nil {
		return Claims{}, false
	}
	if !hmac.Equal(sig, s.mac(payload)) {
		return Claims{}, false
	}

	claims, ok := parsePayload(string(payload))
	if !ok || claims.Issuer != s.issuer {
		return Claims{}, false
	}
	if !claims.ExpiresAt.After(s.clock.Now()) {
		return Claims{}, false
	}
	return claims, true
}

func (s *HMACSigner) mac(payload []byte) []byte {
	m := hmac.New(sha256.New, s.secret)
	m.Write(payload)
	return m.Sum(nil)
}

// parsePayload reads the semicolon separated key=value list. The email is
// the only field that may legitimately contain "=", so values are split on
// the first "=" only.
func parsePayload(payload string) (Claims, bool) {
	fields := make(map[string]string, 6)
	for _, part := range strings.Split(payload, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return Claims{}, false
		}
		fields[k] = v
	}
	iat, err := strconv.ParseInt(fields["iat"], 10, 64)
	if err != nil {
		return Claims{}, false
	}
	exp, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil {
		return Claims{}, false
	}
	role, err := model.ParseRole(fields["role"])
	if err != nil {
		return Claims{}, false
	}
	if fields["sub"] == "" {
		return Claims{}, false
	}
	return Claims{
		Issuer:    fields["iss"],
		Subject:   fields["sub"],
		Role:      role,
		Email:     fields["email"],
		IssuedAt:  unix(iat),
		ExpiresAt: unix(exp),
	}, true
}

func unix(sec int64) time.Time { return time.Unix(sec, 0).UTC() }
