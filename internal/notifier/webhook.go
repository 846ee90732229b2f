package notifier

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/vitalis-app/sentinel/internal/buffer"
	"github.com/vitalis-app/sentinel/internal/models"
	"github.com/vitalis-app/sentinel/internal/telemetry"
)

// WebhookConfig configures delivery to an HTTP endpoint.
type WebhookConfig struct {
	URL        string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Webhook POSTs gzip-compressed JSON notifications with retry. Repeated
// failures open a circuit breaker; undeliverable notifications are spooled.
type Webhook struct {
	cfg     WebhookConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	spool   *buffer.Buffer
	logger  *zap.Logger
}

// NewWebhook creates a webhook notifier. spool may be nil, in which case
// failed notifications are dropped.
func NewWebhook(cfg WebhookConfig, spool *buffer.Buffer, logger *zap.Logger) *Webhook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	logger = logger.Named("webhook")

	w := &Webhook{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		spool:  spool,
		logger: logger,
	}
	w.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// a rate limit is the server working as intended
			return err == nil || isRateLimited(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return w
}

// Notify delivers n, retrying with exponential backoff. When every attempt
// fails, n is spooled and the last error is returned.
func (w *Webhook) Notify(ctx context.Context, n models.Notification) error {
	body, err := encode(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * w.cfg.RetryDelay
			w.logger.Warn("Retrying notification",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				w.spoolNotification(n)
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		_, lastErr = w.breaker.Execute(func() (interface{}, error) {
			return nil, w.post(ctx, body)
		})
		if lastErr == nil {
			return nil
		}

		if isRateLimited(lastErr) || errors.Is(lastErr, gobreaker.ErrOpenState) || errors.Is(lastErr, gobreaker.ErrTooManyRequests) {
			break
		}
		w.logger.Warn("Notification delivery failed",
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}

	w.spoolNotification(n)
	return lastErr
}

// FlushSpool redelivers every spooled notification. Notifications that
// still fail are spooled again by Notify.
func (w *Webhook) FlushSpool(ctx context.Context) {
	if w.spool == nil {
		return
	}
	pending, err := w.spool.RetrieveAll()
	if err != nil {
		w.logger.Error("Failed to read notification spool", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	w.logger.Info("Flushing spooled notifications", zap.Int("count", len(pending)))
	for _, n := range pending {
		if err := w.Notify(ctx, n); err != nil {
			w.logger.Warn("Spooled notification still undeliverable",
				zap.String("id", n.ID),
				zap.Error(err))
		}
	}
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	if w.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.cfg.Token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &statusError{statusCode: resp.StatusCode}
}

func (w *Webhook) spoolNotification(n models.Notification) {
	if w.spool == nil {
		w.logger.Warn("No spool configured, dropping notification", zap.String("id", n.ID))
		return
	}
	if err := w.spool.Store(n); err != nil {
		w.logger.Error("Failed to spool notification", zap.Error(err))
		return
	}
	telemetry.NotificationsTotal.WithLabelValues("spooled").Inc()
}

func encode(n models.Notification) ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return compressed.Bytes(), nil
}

// statusError is a non-2xx webhook response.
type statusError struct {
	statusCode int
}

func (e *statusError) Error() string {
	if e.statusCode == http.StatusTooManyRequests {
		return fmt.Sprintf("rate limited (%d)", e.statusCode)
	}
	return fmt.Sprintf("webhook returned %d", e.statusCode)
}

func isRateLimited(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.statusCode == http.StatusTooManyRequests
}
