// Package queue defines auth audit events and moves them over the message broker.
package queue

import "time"

// Event types published by the auth service.
const (
	EventUserRegistered = "user.registered"
	EventSessionStarted = "session.started"
	EventReuseDetected  = "session.reuse_detected"
	EventDeviceMismatch = "session.device_mismatch"
	EventSessionLogout  = "session.logout"
)

// DefaultAuditQueue is used when no queue name is configured.
const DefaultAuditQueue = "auth.events"

const (
	auditLogFileName     = "auth-audit.log"
	auditTimestampLayout = time.RFC3339
)

// AuthEvent is published whenever a session changes state in a way an
// operator may want to audit. It never carries token material.
type AuthEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	FamilyID   string    `json:"familyId,omitempty"`
	DeviceID   string    `json:"deviceId,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
