package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dujiao-next/stockledger/internal/config"
	"github.com/dujiao-next/stockledger/internal/queue"
	"github.com/dujiao-next/stockledger/internal/service"

	"github.com/hibiken/asynq"
)

type sweepStub struct {
	calls atomic.Int32
}

func (s *sweepStub) SweepExpired(context.Context, time.Time) (int, error) {
	s.calls.Add(1)
	return 0, nil
}

type refreshStub struct {
	calls atomic.Int32
}

func (s *refreshStub) Refresh(context.Context, service.RefreshOptions) (*service.RefreshStats, error) {
	s.calls.Add(1)
	return &service.RefreshStats{}, nil
}

type enqueueStub struct {
	sweeps    atomic.Int32
	refreshes atomic.Int32
}

func (s *enqueueStub) Enabled() bool { return true }

func (s *enqueueStub) EnqueueReservationSweep(queue.ReservationSweepPayload, time.Duration) error {
	s.sweeps.Add(1)
	return nil
}

func (s *enqueueStub) EnqueueAlertRefresh(queue.AlertRefreshPayload, ...asynq.Option) error {
	s.refreshes.Add(1)
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func runScheduler(t *testing.T, s *Scheduler) func() {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- s.Start(context.Background())
	}()
	return func() {
		if err := s.Stop(context.Background()); err != nil {
			t.Fatalf("stop failed: %v", err)
		}
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("start returned error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("scheduler did not stop")
		}
	}
}

func TestSchedulerRunsInProcessWithoutQueue(t *testing.T) {
	sweeper := &sweepStub{}
	refresher := &refreshStub{}
	s := NewScheduler(config.StockConfig{SweepIntervalSeconds: 60, AlertRefreshIntervalSeconds: 60}, sweeper, refresher, nil)
	stop := runScheduler(t, s)

	waitFor(t, func() bool { return sweeper.calls.Load() >= 1 && refresher.calls.Load() >= 1 })
	stop()
}

func TestSchedulerEnqueuesWhenQueueEnabled(t *testing.T) {
	sweeper := &sweepStub{}
	refresher := &refreshStub{}
	enqueuer := &enqueueStub{}
	s := NewScheduler(config.StockConfig{SweepIntervalSeconds: 60, AlertRefreshIntervalSeconds: 60}, sweeper, refresher, enqueuer)
	stop := runScheduler(t, s)

	waitFor(t, func() bool { return enqueuer.sweeps.Load() >= 1 && enqueuer.refreshes.Load() >= 1 })
	stop()
	if sweeper.calls.Load() != 0 || refresher.calls.Load() != 0 {
		t.Fatalf("queued mode must not run jobs in process")
	}
}

func TestSchedulerRefreshDisabledByDefault(t *testing.T) {
	sweeper := &sweepStub{}
	refresher := &refreshStub{}
	s := NewScheduler(config.StockConfig{}, sweeper, refresher, nil)
	if s.sweepInterval != time.Minute {
		t.Fatalf("expected default sweep interval 1m, got %s", s.sweepInterval)
	}
	stop := runScheduler(t, s)

	waitFor(t, func() bool { return sweeper.calls.Load() >= 1 })
	stop()
	if refresher.calls.Load() != 0 {
		t.Fatalf("refresh loop should be disabled when interval is 0")
	}
}
