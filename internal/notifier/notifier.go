// Package notifier delivers operator notifications. Delivery is best effort:
// callers log returned errors and carry on.
package notifier

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vitalis-app/sentinel/internal/models"
)

// Notifier delivers a single notification.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify logs n at a level matching its status.
func (l *LogNotifier) Notify(_ context.Context, n models.Notification) error {
	fields := []zap.Field{
		zap.String("id", n.ID),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
		zap.Strings("actions", n.Actions),
	}
	switch n.Status {
	case models.StatusCritical:
		l.logger.Error("Notification", fields...)
	case models.StatusWarning:
		l.logger.Warn("Notification", fields...)
	case models.StatusOK:
		l.logger.Info("Notification", fields...)
	default:
		l.logger.Info("Notification", fields...)
	}
	return nil
}

// Multi fans a notification out to every notifier. All are attempted; their
// errors are joined.
type Multi []Notifier

// Notify delivers n to each notifier in order.
func (m Multi) Notify(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
