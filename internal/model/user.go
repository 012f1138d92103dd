package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the authorization level of a user. It is a closed set: values
// outside the declared constants are rejected by ParseRole.
type Role string

const (
	RoleGuest Role = "GUEST"
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Provider records how a user authenticates.
type Provider string

const (
	ProviderManual   Provider = "MANUAL"
	ProviderGoogle   Provider = "GOOGLE"
	ProviderApple    Provider = "APPLE"
	ProviderFacebook Provider = "FACEBOOK"
	ProviderPasscode Provider = "PASSCODE"
)

// Status is the lifecycle state of a user account.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDisabled Status = "DISABLED"
)

// ParseRole converts s into a Role. Matching ignores case and surrounding
// whitespace; unknown values return an error instead of a default.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleGuest, RoleUser, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// ParseProvider converts s into a Provider or rejects it.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToUpper(strings.TrimSpace(s))); p {
	case ProviderManual, ProviderGoogle, ProviderApple, ProviderFacebook, ProviderPasscode:
		return p, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// ParseStatus converts s into a Status or rejects it.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusActive, StatusDisabled:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// IsSocial reports whether p is an external identity provider.
func (p Provider) IsSocial() bool {
	return p == ProviderGoogle || p == ProviderApple || p == ProviderFacebook
}

// User mirrors the `users` table.
//
// Fields:
//
//	ID           – opaque identifier (UUID string), assigned by the store on first save.
//	Email        – unique, lower-cased address.
//	PasswordHash – one-way hash; nil for social and passcode accounts.
//	Role, Provider, Status – closed enums, see above.
//	Name, Username, AvatarURL – optional profile data.
//	LastLoginAt  – set by every successful login-type operation.
type User struct {
	ID           string
	Email        string
	PasswordHash *string
	Role         Role
	Provider     Provider
	Status       Status
	Name         *string
	Username     *string
	AvatarURL    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// IsActive reports whether the account may authenticate.
func (u User) IsActive() bool { return u.Status == StatusActive }
