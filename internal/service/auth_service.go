// Package service implements the authentication and user management use cases
// on top of the storage, signing and hashing collaborators.
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/iliyamo/eventhub/internal/apperr"
	"github.com/iliyamo/eventhub/internal/clock"
	"github.com/iliyamo/eventhub/internal/logger"
	"github.com/iliyamo/eventhub/internal/model"
	"github.com/iliyamo/eventhub/internal/queue"
	"github.com/iliyamo/eventhub/internal/repository"
)

const (
	minPasswordLength = 6
	maxPasswordBytes  = 72 // bcrypt input limit
	maxDeviceNameLen  = 255
	socialEmailDomain = "users.noreply"
)

// Messages shared across failure causes so callers cannot tell them apart.
const (
	msgInvalidCredentials = "invalid credentials"
	msgInvalidRefresh     = "invalid refresh token"
	msgRefreshRevoked     = "refresh token revoked"
	msgRefreshExpired     = "refresh token expired"
	msgDeviceMismatch     = "device mismatch"
)

// AdminConfig carries the passcode login settings. An empty Passcode
// disables passcode login.
type AdminConfig struct {
	Passcode       string
	BootstrapEmail string
}

// AuthService orchestrates registration, the login flows, refresh-token
// rotation and logout.
type AuthService struct {
	admin    AdminConfig
	users    IdentityStore
	creds    CredentialVerifier
	signer   TokenSigner
	ledger   SessionLedger
	clock    clock.Clock
	events   EventPublisher
	validate *validator.Validate

	dummyOnce sync.Once
	dummy     string
}

func NewAuthService(admin AdminConfig, users IdentityStore, creds CredentialVerifier, signer TokenSigner, ledger SessionLedger, clk clock.Clock) *AuthService {
	if clk == nil {
		clk = clock.System{}
	}
	admin.BootstrapEmail = normalizeEmail(admin.BootstrapEmail)
	return &AuthService{
		admin:    admin,
		users:    users,
		creds:    creds,
		signer:   signer,
		ledger:   ledger,
		clock:    clk,
		events:   queue.NopPublisher{},
		validate: validator.New(),
	}
}

// WithPublisher sets the audit event publisher.
func (s *AuthService) WithPublisher(p EventPublisher) *AuthService {
	if p != nil {
		s.events = p
	}
	return s
}

// Register creates a MANUAL user and starts its first session family.
func (s *AuthService) Register(ctx context.Context, email, password, deviceID, deviceName string) (model.AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return model.AuthResult{}, apperr.Validation("email is required")
	}
	if !s.validEmail(email) {
		return model.AuthResult{}, apperr.Validation("invalid email")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return model.AuthResult{}, apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return model.AuthResult{}, apperr.Validation(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	if err := requireDevice(deviceID); err != nil {
		return model.AuthResult{}, err
	}

	// The unique index is authoritative; this only saves a bcrypt round.
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return model.AuthResult{}, apperr.Validation("email already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.AuthResult{}, fmt.Errorf("find user by email: %w", err)
	}

	hash, err := s.creds.Hash(password)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.clock.Now()
	u := model.User{
		Email:        email,
		PasswordHash: &hash,
		Role:         model.RoleUser,
		Provider:     model.ProviderManual,
		Status:       model.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastLoginAt:  &now,
	}
	if err := s.users.Save(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.AuthResult{}, apperr.Validation("email already registered")
		}
		return model.AuthResult{}, fmt.Errorf("save user: %w", err)
	}
	s.emit(ctx, queue.AuthEvent{Type: queue.EventUserRegistered, UserID: u.ID, Provider: string(u.Provider), OccurredAt: now})

	return s.startFamily(ctx, u, deviceID, deviceName)
}

// Login authenticates a password user. Unknown email, inactive account and
// wrong password all fail with the same error.
func (s *AuthService) Login(ctx context.Context, email, password, deviceID, deviceName string) (model.AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return model.AuthResult{}, apperr.Validation("email is required")
	}
	if password == "" {
		return model.AuthResult{}, apperr.Validation("password is required")
	}
	if err := requireDevice(deviceID); err != nil {
		return model.AuthResult{}, err
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.creds.Matches(password, s.dummyHash())
			return model.AuthResult{}, apperr.Unauthorized(msgInvalidCredentials)
		}
		return model.AuthResult{}, fmt.Errorf("find user by email: %w", err)
	}
	// Every branch pays for one hash comparison.
	hash := s.dummyHash()
	if u.PasswordHash != nil {
		hash = *u.PasswordHash
	}
	if !s.creds.Matches(password, hash) || u.PasswordHash == nil || !u.IsActive() {
		return model.AuthResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	if err := s.touchLogin(ctx, &u); err != nil {
		return model.AuthResult{}, err
	}
	return s.startFamily(ctx, u, deviceID, deviceName)
}

// SocialLogin signs in with a provider token, creating the user on first
// sight. The token is not verified with the provider: a token that is an
// email address is used as the identity, anything else is mapped to a
// stable synthetic address.
func (s *AuthService) SocialLogin(ctx context.Context, provider, providerToken, deviceID, deviceName string) (model.AuthResult, error) {
	p, err := model.ParseProvider(provider)
	if err != nil || !p.IsSocial() {
		return model.AuthResult{}, apperr.Validation("unsupported provider")
	}
	if strings.TrimSpace(providerToken) == "" {
		return model.AuthResult{}, apperr.Validation("token is required")
	}
	if err := requireDevice(deviceID); err != nil {
		return model.AuthResult{}, err
	}

	email := s.socialIdentity(p, providerToken)
	u, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		u, err = s.provision(ctx, email, model.RoleUser, p)
		if err != nil {
			return model.AuthResult{}, err
		}
	case err != nil:
		return model.AuthResult{}, fmt.Errorf("find user by email: %w", err)
	}
	if u.Provider != p || !u.IsActive() {
		return model.AuthResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	if err := s.touchLogin(ctx, &u); err != nil {
		return model.AuthResult{}, err
	}
	return s.startFamily(ctx, u, deviceID, deviceName)
}

// AdminPasscodeLogin signs in the bootstrap admin with the shared passcode,
// provisioning the admin account on first use.
func (s *AuthService) AdminPasscodeLogin(ctx context.Context, passcode, deviceID, deviceName string) (model.AuthResult, error) {
	if err := requireDevice(deviceID); err != nil {
		return model.AuthResult{}, err
	}
	if !s.passcodeMatches(passcode) {
		logger.Warn().Str("device_id", deviceID).Msg("admin passcode rejected")
		return model.AuthResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	u, err := s.users.FindByEmail(ctx, s.admin.BootstrapEmail)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		u, err = s.provision(ctx, s.admin.BootstrapEmail, model.RoleAdmin, model.ProviderPasscode)
		if err != nil {
			return model.AuthResult{}, err
		}
		logger.Info().Str("user_id", u.ID).Msg("admin account provisioned")
	case err != nil:
		return model.AuthResult{}, fmt.Errorf("find admin: %w", err)
	}
	if !u.IsActive() || u.Role != model.RoleAdmin {
		return model.AuthResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	if err := s.touchLogin(ctx, &u); err != nil {
		return model.AuthResult{}, err
	}
	return s.startFamily(ctx, u, deviceID, deviceName)
}

// Refresh exchanges a refresh token for a new access/refresh pair in the
// same family. Presenting a token that already left the ACTIVE state, or
// presenting it from another device, revokes the whole family.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken, deviceID string) (model.AuthResult, error) {
	if strings.TrimSpace(rawRefreshToken) == "" {
		return model.AuthResult{}, apperr.Validation("refreshToken is required")
	}
	if err := requireDevice(deviceID); err != nil {
		return model.AuthResult{}, err
	}

	rec, err := s.ledger.FindByTokenHash(ctx, s.signer.HashRefreshToken(rawRefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.AuthResult{}, apperr.Unauthorized(msgInvalidRefresh)
		}
		return model.AuthResult{}, fmt.Errorf("find refresh token: %w", err)
	}

	now := s.clock.Now()
	if rec.Revoked() {
		return model.AuthResult{}, s.burnFamily(ctx, rec, deviceID, now, queue.EventReuseDetected, msgRefreshRevoked)
	}
	if rec.Expired(now) {
		return model.AuthResult{}, apperr.Unauthorized(msgRefreshExpired)
	}
	if rec.DeviceID != deviceID {
		return model.AuthResult{}, s.burnFamily(ctx, rec, deviceID, now, queue.EventDeviceMismatch, msgDeviceMismatch)
	}

	u, err := s.users.FindByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.AuthResult{}, apperr.Unauthorized(msgInvalidRefresh)
		}
		return model.AuthResult{}, fmt.Errorf("find user by id: %w", err)
	}
	if !u.IsActive() {
		return model.AuthResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	res, child, err := s.issue(ctx, u, rec.FamilyID, rec.DeviceID, rec.DeviceName)
	if err != nil {
		return model.AuthResult{}, err
	}
	won, err := s.ledger.Rotate(ctx, rec.ID, now, child.ID)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !won {
		// Someone rotated this token between the lookup and here.
		return model.AuthResult{}, s.burnFamily(ctx, rec, deviceID, now, queue.EventReuseDetected, msgRefreshRevoked)
	}
	return res, nil
}

// Logout revokes every active session of the user on every device.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	now := s.clock.Now()
	n, err := s.ledger.RevokeByUserID(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	logger.Info().Str("user_id", userID).Int64("revoked", n).Msg("user logged out")
	s.emit(ctx, queue.AuthEvent{Type: queue.EventSessionLogout, UserID: userID, OccurredAt: now})
	return nil
}

// ListSessions returns the user's active, unexpired sessions, newest first.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]model.Session, error) {
	recs, err := s.ledger.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	now := s.clock.Now()
	out := make([]model.Session, 0, len(recs))
	for _, r := range recs {
		if r.State(now) == model.TokenActive {
			out = append(out, r.Session())
		}
	}
	return out, nil
}

// RevokeSession revokes a single session of the user. A session owned by
// someone else is reported as repository.ErrNotFound.
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	rec, err := s.ledger.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if rec.UserID != userID {
		return repository.ErrNotFound
	}
	if _, err := s.ledger.RevokeByID(ctx, rec.ID, s.clock.Now()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// VerifyAccessToken exposes the signer's verification to the HTTP layer.
func (s *AuthService) VerifyAccessToken(raw string) (string, model.Role, string, bool) {
	c, ok := s.signer.VerifyAccessToken(raw)
	if !ok {
		return "", "", "", false
	}
	return c.Subject, c.Role, c.Email, true
}

// Me returns the identity summary of userID.
func (s *AuthService) Me(ctx context.Context, userID string) (model.UserSummary, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.UserSummary{}, err
	}
	return u.Summary(), nil
}

// startFamily begins a new session family for u.
func (s *AuthService) startFamily(ctx context.Context, u model.User, deviceID, deviceName string) (model.AuthResult, error) {
	familyID := uuid.NewString()
	res, _, err := s.issue(ctx, u, familyID, deviceID, truncate(deviceName, maxDeviceNameLen))
	if err != nil {
		return model.AuthResult{}, err
	}
	s.emit(ctx, queue.AuthEvent{
		Type:       queue.EventSessionStarted,
		UserID:     u.ID,
		FamilyID:   familyID,
		DeviceID:   deviceID,
		Provider:   string(u.Provider),
		OccurredAt: s.clock.Now(),
	})
	return res, nil
}

// issue mints an access token and a new ACTIVE refresh record in familyID.
func (s *AuthService) issue(ctx context.Context, u model.User, familyID, deviceID, deviceName string) (model.AuthResult, model.RefreshToken, error) {
	access, err := s.signer.CreateAccessToken(u.ID, u.Role, u.Email)
	if err != nil {
		return model.AuthResult{}, model.RefreshToken{}, fmt.Errorf("create access token: %w", err)
	}
	raw, err := s.signer.NewRefreshToken()
	if err != nil {
		return model.AuthResult{}, model.RefreshToken{}, fmt.Errorf("create refresh token: %w", err)
	}

	now := s.clock.Now()
	rec := model.RefreshToken{
		ID:         uuid.NewString(),
		UserID:     u.ID,
		TokenHash:  s.signer.HashRefreshToken(raw),
		FamilyID:   familyID,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		IssuedAt:   now,
		ExpiresAt:  now.Add(time.Duration(s.signer.RefreshTTLSeconds()) * time.Second),
	}
	if err := s.ledger.Save(ctx, &rec); err != nil {
		return model.AuthResult{}, model.RefreshToken{}, fmt.Errorf("save refresh token: %w", err)
	}

	return model.AuthResult{
		AccessToken:             access,
		ExpiresInSeconds:        s.signer.AccessTTLSeconds(),
		RefreshToken:            raw,
		RefreshExpiresInSeconds: s.signer.RefreshTTLSeconds(),
		User:                    u.Summary(),
	}, rec, nil
}

// burnFamily revokes rec's family and returns the Unauthorized error to surface.
func (s *AuthService) burnFamily(ctx context.Context, rec model.RefreshToken, deviceID string, now time.Time, eventType, msg string) error {
	n, err := s.ledger.RevokeByFamilyID(ctx, rec.FamilyID, now)
	if err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}
	logger.Warn().
		Str("event", eventType).
		Str("user_id", rec.UserID).
		Str("family_id", rec.FamilyID).
		Str("device_id", deviceID).
		Int64("revoked", n).
		Msg("refresh token family revoked")
	s.emit(ctx, queue.AuthEvent{
		Type:       eventType,
		UserID:     rec.UserID,
		FamilyID:   rec.FamilyID,
		DeviceID:   deviceID,
		OccurredAt: now,
	})
	return apperr.Unauthorized(msg)
}

// provision creates a password-less user. A concurrent creation of the same
// email is resolved by reading the winner's record.
func (s *AuthService) provision(ctx context.Context, email string, role model.Role, p model.Provider) (model.User, error) {
	now := s.clock.Now()
	u := model.User{
		Email:     email,
		Role:      role,
		Provider:  p,
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.users.Save(ctx, &u)
	if errors.Is(err, repository.ErrEmailExists) {
		existing, ferr := s.users.FindByEmail(ctx, email)
		if ferr != nil {
			return model.User{}, fmt.Errorf("find user by email: %w", ferr)
		}
		return existing, nil
	}
	if err != nil {
		return model.User{}, fmt.Errorf("save user: %w", err)
	}
	s.emit(ctx, queue.AuthEvent{Type: queue.EventUserRegistered, UserID: u.ID, Provider: string(p), OccurredAt: now})
	return u, nil
}

// touchLogin records the login. A user disabled since it was read fails
// like any other inactive account.
func (s *AuthService) touchLogin(ctx context.Context, u *model.User) error {
	now := s.clock.Now()
	if err := s.users.TouchLogin(ctx, u.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Unauthorized(msgInvalidCredentials)
		}
		return fmt.Errorf("update last login: %w", err)
	}
	u.LastLoginAt = &now
	u.UpdatedAt = now
	return nil
}

// dummyHash is compared against when there is no stored hash, so unknown
// and passwordless accounts cost the same as a wrong password.
func (s *AuthService) dummyHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.creds.Hash(uuid.NewString())
		if err != nil {
			logger.Error().Err(err).Msg("dummy password hash")
			return
		}
		s.dummy = h
	})
	return s.dummy
}

// emit publishes ev; failures are logged and otherwise ignored.
func (s *AuthService) emit(ctx context.Context, ev queue.AuthEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		logger.Warn().Err(err).Str("type", ev.Type).Msg("audit event dropped")
	}
}

func (s *AuthService) passcodeMatches(passcode string) bool {
	if s.admin.Passcode == "" || passcode == "" {
		return false
	}
	// Comparing digests keeps the comparison length independent.
	got := sha256.Sum256([]byte(passcode))
	want := sha256.Sum256([]byte(s.admin.Passcode))
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1
}

func (s *AuthService) socialIdentity(p model.Provider, providerToken string) string {
	if email := normalizeEmail(providerToken); s.validEmail(email) {
		return email
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(providerToken)))
	return fmt.Sprintf("%s_%s@%s", strings.ToLower(string(p)), hex.EncodeToString(sum[:8]), socialEmailDomain)
}

// validEmail also rejects ';', which the access-token payload reserves.
func (s *AuthService) validEmail(email string) bool {
	return !strings.ContainsRune(email, ';') && s.validate.Var(email, "required,email") == nil
}

func requireDevice(deviceID string) error {
	if strings.TrimSpace(deviceID) == "" {
		return apperr.Validation("deviceId is required")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
