package queue

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/iliyamo/eventhub/internal/logger"
)

// ErrBufferFull is returned when the async buffer cannot take another event.
var ErrBufferFull = errors.New("audit event buffer full")

type eventSink interface {
	Publish(ctx context.Context, event AuthEvent) error
}

// AsyncPublisher queues events in a bounded buffer and publishes them from a
// single background goroutine, so a slow broker never delays a request.
type AsyncPublisher struct {
	next    eventSink
	events  chan AuthEvent
	done    chan struct{}
	dropped atomic.Int64
}

// NewAsyncPublisher starts the publishing goroutine. It runs until ctx is
// cancelled; events still buffered at that point are dropped.
func NewAsyncPublisher(ctx context.Context, next eventSink, buffer int) *AsyncPublisher {
	if buffer <= 0 {
		buffer = 1
	}
	p := &AsyncPublisher{
		next:   next,
		events: make(chan AuthEvent, buffer),
		done:   make(chan struct{}),
	}
	go p.run(ctx)
	return p
}

// Publish enqueues event without blocking.
func (p *AsyncPublisher) Publish(_ context.Context, event AuthEvent) error {
	select {
	case p.events <- event:
		return nil
	default:
		p.dropped.Add(1)
		return ErrBufferFull
	}
}

// Done is closed once the publishing goroutine has exited.
func (p *AsyncPublisher) Done() <-chan struct{} { return p.done }

// Dropped reports how many events were rejected because the buffer was full.
func (p *AsyncPublisher) Dropped() int64 { return p.dropped.Load() }

func (p *AsyncPublisher) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			if n := len(p.events); n > 0 {
				logger.Warn().Int("pending", n).Msg("amqp: dropping buffered audit events on shutdown")
			}
			return
		case ev := <-p.events:
			// Publish logs its own failures.
			_ = p.next.Publish(ctx, ev)
		}
	}
}
