package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEveryRunsRepeatedly(t *testing.T) {
	s := New(context.Background(), zap.NewNop())
	var runs atomic.Int32
	s.Every("tick", 5*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, time.Millisecond)
	s.CancelAll()
	s.Wait()
	assert.Equal(t, []string{"tick"}, s.Jobs())
}

func TestFailingJobDoesNotStopOthers(t *testing.T) {
	s := New(context.Background(), zap.NewNop())
	var failing, panicking, healthy atomic.Int32

	s.Every("failing", 5*time.Millisecond, func(ctx context.Context) error {
		failing.Add(1)
		return errors.New("boom")
	})
	s.Every("panicking", 5*time.Millisecond, func(ctx context.Context) error {
		panicking.Add(1)
		panic("kaboom")
	})
	s.Every("healthy", 5*time.Millisecond, func(ctx context.Context) error {
		healthy.Add(1)
		return nil
	})

	require.Eventually(t, func() bool {
		return failing.Load() >= 3 && panicking.Load() >= 3 && healthy.Load() >= 3
	}, 2*time.Second, time.Millisecond)

	s.CancelAll()
	s.Wait()
}

func TestHungJobDoesNotBlockOthers(t *testing.T) {
	s := New(context.Background(), zap.NewNop())
	release := make(chan struct{})
	var hung, healthy atomic.Int32

	s.Every("hung", 5*time.Millisecond, func(ctx context.Context) error {
		hung.Add(1)
		<-release
		return nil
	})
	s.Every("healthy", 5*time.Millisecond, func(ctx context.Context) error {
		healthy.Add(1)
		return nil
	})

	require.Eventually(t, func() bool { return healthy.Load() >= 3 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(1), hung.Load())

	close(release)
	s.CancelAll()
	s.Wait()
}

func TestCancelLetsInFlightRunFinish(t *testing.T) {
	s := New(context.Background(), zap.NewNop())
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	s.Every("slow", time.Hour, func(ctx context.Context) error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	})

	<-started
	s.CancelAll()
	close(release)
	s.Wait()
	assert.True(t, finished.Load())
}

func TestParentContextStopsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, zap.NewNop())
	s.Every("noop", time.Millisecond, func(ctx context.Context) error { return nil })

	cancel()
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs did not stop after parent cancellation")
	}
}
