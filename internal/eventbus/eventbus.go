// Package eventbus implements the unbounded in-process queue that carries
// samples from the sampling job to the persistence consumer.
//
// Publish never blocks. Each event is handed to exactly one consumer in the
// order it was published.
package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitalis-app/sentinel/internal/models"
)

// ErrClosed is returned by Consume once the bus is closed and drained.
var ErrClosed = errors.New("eventbus: closed")

// EventType tags the payload of an event.
type EventType string

const (
	// TypeSample carries a freshly collected MetricSample.
	TypeSample EventType = "sample"
)

// Event is a single queued message.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Sample    *models.MetricSample
}

// NewSampleEvent wraps a sample in an event with a fresh ID.
func NewSampleEvent(s models.MetricSample) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      TypeSample,
		Timestamp: s.Timestamp,
		Sample:    &s,
	}
}

// Bus is an unbounded FIFO queue safe for concurrent producers and consumers.
type Bus struct {
	mu     sync.Mutex
	queue  []Event
	closed bool

	// ready holds at most one pending wake-up.
	ready chan struct{}
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{ready: make(chan struct{}, 1)}
}

// Publish appends ev to the queue. Publishing to a closed bus drops the event
// and returns ErrClosed.
func (b *Bus) Publish(ev Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.queue = append(b.queue, ev)
	b.mu.Unlock()

	b.signal()
	return nil
}

// Consume removes and returns the oldest event, blocking until one is
// available, the context is done, or the bus is closed and empty.
func (b *Bus) Consume(ctx context.Context) (Event, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			ev := b.queue[0]
			b.queue[0] = Event{}
			b.queue = b.queue[1:]
			more := len(b.queue) > 0
			b.mu.Unlock()
			if more {
				// pass the wake-up on to another waiting consumer
				b.signal()
			}
			return ev, nil
		}
		if b.closed {
			b.mu.Unlock()
			b.signal()
			return Event{}, ErrClosed
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-b.ready:
		}
	}
}

// Len returns the number of queued events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close stops accepting new events. Queued events can still be consumed.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.signal()
}

func (b *Bus) signal() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}
