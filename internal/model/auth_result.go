package model

import "time"

// UserSummary is the identity part of an AuthResult.
type UserSummary struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Role      Role     `json:"role"`
	Provider  Provider `json:"provider"`
	Name      *string  `json:"name,omitempty"`
	AvatarURL *string  `json:"avatarUrl,omitempty"`
}

// AuthResult is returned by every successful login-type operation and by
// refresh. RefreshToken is the raw value and is handed out exactly once.
type AuthResult struct {
	AccessToken             string      `json:"accessToken"`
	ExpiresInSeconds        int64       `json:"expiresInSeconds"`
	RefreshToken            string      `json:"refreshToken"`
	RefreshExpiresInSeconds int64       `json:"refreshExpiresInSeconds"`
	User                    UserSummary `json:"user"`
}

// Summary builds the public identity summary of u.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		Provider:  u.Provider,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
	}
}

// Session is the public view of an active refresh-token record.
type Session struct {
	ID         string     `json:"id"`
	DeviceID   string     `json:"deviceId"`
	DeviceName string     `json:"deviceName"`
	IssuedAt   time.Time  `json:"issuedAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// Session builds the public view of t.
func (t RefreshToken) Session() Session {
	return Session{
		ID:         t.ID,
		DeviceID:   t.DeviceID,
		DeviceName: t.DeviceName,
		IssuedAt:   t.IssuedAt,
		ExpiresAt:  t.ExpiresAt,
		LastUsedAt: t.LastUsedAt,
	}
}
