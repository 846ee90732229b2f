//go:build !windows

// Package service provides a stub implementation for non-Windows platforms.
// Elsewhere the sentinel runs in the foreground under whatever supervisor
// launched it.
package service

import (
	"context"

	"go.uber.org/zap"
)

// SentinelService is a no-op service wrapper for non-Windows platforms.
type SentinelService struct {
	logger  *zap.Logger
	startFn func(ctx context.Context)
}

// New creates a stub service wrapper for non-Windows platforms.
func New(logger *zap.Logger, startFn func(ctx context.Context)) *SentinelService {
	return &SentinelService{
		logger:  logger,
		startFn: startFn,
	}
}

// IsWindowsService always returns false on non-Windows platforms.
func IsWindowsService() bool {
	return false
}

// Run executes the sentinel directly.
func (s *SentinelService) Run() error {
	ctx := context.Background()
	s.startFn(ctx)
	return nil
}
