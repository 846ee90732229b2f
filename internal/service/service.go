//go:build windows

// Package service provides Windows Service integration.
// Under the service control manager the sentinel enters the SCM loop;
// from a terminal it runs in the foreground.
package service

import (
	"context"
	"time"

	"golang.org/x/sys/windows/svc"
	"go.uber.org/zap"
)

const serviceName = "VitalisSentinel"

// stopGrace is how long the sentinel gets to persist queued samples and
// close the store after a stop request.
const stopGrace = 5 * time.Second

// SentinelService implements the Windows service interface (svc.Handler).
type SentinelService struct {
	logger  *zap.Logger
	startFn func(ctx context.Context)
}

// New creates a new Windows service wrapper.
// The startFn is called with a cancellable context when the service starts.
func New(logger *zap.Logger, startFn func(ctx context.Context)) *SentinelService {
	return &SentinelService{
		logger:  logger,
		startFn: startFn,
	}
}

// IsWindowsService checks if the process is running as a Windows service.
func IsWindowsService() bool {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return isService
}

// Run starts the Windows service control loop.
func (s *SentinelService) Run() error {
	return svc.Run(serviceName, s)
}

// Execute implements the svc.Handler interface for Windows SCM integration.
// It manages the service lifecycle: start, running, stop/shutdown.
func (s *SentinelService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (ssec bool, errno uint32) {
	changes <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.startFn(ctx)
	}()

	changes <- svc.Status{
		State:   svc.Running,
		Accepts: svc.AcceptStop | svc.AcceptShutdown,
	}
	s.logger.Info("Windows service started")

	for {
		c := <-r
		switch c.Cmd {
		case svc.Interrogate:
			changes <- c.CurrentStatus
		case svc.Stop, svc.Shutdown:
			s.logger.Info("Windows service stopping")
			changes <- svc.Status{State: svc.StopPending}
			cancel()
			select {
			case <-done:
			case <-time.After(stopGrace):
				s.logger.Warn("Sentinel did not stop in time")
			}
			return false, 0
		default:
			s.logger.Warn("Unexpected service control request",
				zap.Uint32("cmd", uint32(c.Cmd)))
		}
	}
}
