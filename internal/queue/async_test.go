package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkFunc func(ctx context.Context, ev AuthEvent) error

func (f sinkFunc) Publish(ctx context.Context, ev AuthEvent) error { return f(ctx, ev) }

func TestAsyncPublisherDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []string
	)
	p := NewAsyncPublisher(ctx, sinkFunc(func(_ context.Context, ev AuthEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.Type)
		return nil
	}), 8)

	require.NoError(t, p.Publish(ctx, AuthEvent{Type: EventUserRegistered}))
	require.NoError(t, p.Publish(ctx, AuthEvent{Type: EventSessionStarted}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{EventUserRegistered, EventSessionStarted}, got)
}

func TestAsyncPublisherDoesNotBlockOnSlowBroker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	p := NewAsyncPublisher(ctx, sinkFunc(func(ctx context.Context, _ AuthEvent) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}), 1)

	// The first event occupies the worker; the second fills the buffer.
	require.NoError(t, p.Publish(ctx, AuthEvent{Type: EventSessionStarted}))
	require.Eventually(t, func() bool { return len(p.events) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Publish(ctx, AuthEvent{Type: EventSessionStarted}))

	start := time.Now()
	assert.ErrorIs(t, p.Publish(ctx, AuthEvent{Type: EventSessionLogout}), ErrBufferFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, int64(1), p.Dropped())

	close(release)
	cancel()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("async publisher did not stop after cancel")
	}
}
