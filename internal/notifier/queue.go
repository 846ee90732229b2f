package notifier

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/vitalis-app/sentinel/internal/models"
	"github.com/vitalis-app/sentinel/internal/telemetry"
)

// DefaultQueueSize bounds how many notifications wait for delivery.
const DefaultQueueSize = 32

var (
	// ErrQueueFull is returned when the delivery backlog is at capacity.
	ErrQueueFull = errors.New("notifier: queue full")
	// ErrQueueClosed is returned by Notify after Close.
	ErrQueueClosed = errors.New("notifier: queue closed")
)

// Queue hands notifications to a single delivery goroutine so callers never
// wait on a slow or failing endpoint. Notify only enqueues; when the backlog
// is full the notification is dropped and counted.
type Queue struct {
	next   Notifier
	ch     chan models.Notification
	logger *zap.Logger

	// ctx is passed to every delivery and cancelled when Close gives up.
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewQueue starts a delivery goroutine in front of next.
func NewQueue(next Notifier, size int, logger *zap.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		next:   next,
		ch:     make(chan models.Notification, size),
		logger: logger.Named("notify-queue"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Notify enqueues n without blocking.
func (q *Queue) Notify(_ context.Context, n models.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- n:
		return nil
	default:
		telemetry.NotificationsTotal.WithLabelValues("dropped").Inc()
		q.logger.Warn("Delivery backlog full, dropping notification", zap.String("id", n.ID))
		return ErrQueueFull
	}
}

// Len returns the number of notifications waiting for delivery.
func (q *Queue) Len() int { return len(q.ch) }

// Close stops accepting notifications and waits for the backlog to drain.
// If ctx ends first, the in-flight delivery is cancelled and the rest of the
// backlog is discarded.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-q.done
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for n := range q.ch {
		if q.ctx.Err() != nil {
			continue
		}
		if err := q.next.Notify(q.ctx, n); err != nil {
			telemetry.NotificationsTotal.WithLabelValues("failed").Inc()
			q.logger.Error("Notification delivery failed",
				zap.String("id", n.ID),
				zap.Error(err))
			continue
		}
		telemetry.NotificationsTotal.WithLabelValues("sent").Inc()
	}
}
