// Package testkit holds test doubles shared by the package tests.
package testkit

import (
	"context"
	"strings"
	"sync"

	"github.com/iliyamo/eventhub/internal/queue"
)

const plainPrefix = "plain:"

// PlainHasher is a CredentialVerifier that stores passwords reversibly.
// It keeps service tests fast where bcrypt would dominate the run time.
type PlainHasher struct{}

func (PlainHasher) Hash(raw string) (string, error) { return plainPrefix + raw, nil }

func (PlainHasher) Matches(raw, hash string) bool {
	return strings.HasPrefix(hash, plainPrefix) && hash[len(plainPrefix):] == raw
}

// RecordingPublisher keeps every published event in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []queue.AuthEvent
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, ev queue.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.Err
}

// Types returns the published event types in order.
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// Events returns a copy of the published events.
func (p *RecordingPublisher) Events() []queue.AuthEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.AuthEvent(nil), p.events...)
}
