package worker

import (
	"context"
	"sync"
	"time"

	"github.com/dujiao-next/stockledger/internal/config"
	"github.com/dujiao-next/stockledger/internal/logger"
	"github.com/dujiao-next/stockledger/internal/queue"
	"github.com/dujiao-next/stockledger/internal/service"

	"github.com/hibiken/asynq"
)

// SweepRunner 过期预占清理
type SweepRunner interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// AlertRefresher 预警重建
type AlertRefresher interface {
	Refresh(ctx context.Context, opts service.RefreshOptions) (*service.RefreshStats, error)
}

// TaskEnqueuer 队列投递
type TaskEnqueuer interface {
	Enabled() bool
	EnqueueReservationSweep(payload queue.ReservationSweepPayload, uniqueFor time.Duration) error
	EnqueueAlertRefresh(payload queue.AlertRefreshPayload, opts ...asynq.Option) error
}

// Scheduler 周期任务调度
// 队列启用时只负责投递任务，由 worker 消费；否则在本进程内直接执行。
type Scheduler struct {
	name            string
	sweeper         SweepRunner
	refresher       AlertRefresher
	enqueuer        TaskEnqueuer
	sweepInterval   time.Duration
	refreshInterval time.Duration
	now             func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler 创建周期任务调度
func NewScheduler(cfg config.StockConfig, sweeper SweepRunner, refresher AlertRefresher, enqueuer TaskEnqueuer) *Scheduler {
	sweepInterval := time.Duration(cfg.SweepIntervalSeconds) * time.Second
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &Scheduler{
		name:            "scheduler",
		sweeper:         sweeper,
		refresher:       refresher,
		enqueuer:        enqueuer,
		sweepInterval:   sweepInterval,
		refreshInterval: time.Duration(cfg.AlertRefreshIntervalSeconds) * time.Second,
		now:             time.Now,
		stopCh:          make(chan struct{}),
	}
}

// Name 服务名称
func (s *Scheduler) Name() string {
	return s.name
}

// Start 启动周期任务，阻塞到 ctx 结束或 Stop
func (s *Scheduler) Start(ctx context.Context) error {
	if s.sweeper != nil {
		s.wg.Add(1)
		go s.loop(ctx, s.sweepInterval, s.sweepOnce)
	}
	if s.refresher != nil && s.refreshInterval > 0 {
		s.wg.Add(1)
		go s.loop(ctx, s.refreshInterval, s.refreshOnce)
	}
	select {
	case <-ctx.Done():
	case <-s.stopCh:
	}
	s.wg.Wait()
	return nil
}

// Stop 停止周期任务
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, runOnce func(context.Context)) {
	defer s.wg.Done()
	runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			runOnce(ctx)
		}
	}
}

func (s *Scheduler) queued() bool {
	return s.enqueuer != nil && s.enqueuer.Enabled()
}

func (s *Scheduler) sweepOnce(ctx context.Context) {
	if s.queued() {
		if err := s.enqueuer.EnqueueReservationSweep(queue.ReservationSweepPayload{}, s.sweepInterval); err != nil {
			logger.Warnw("scheduler_enqueue_reservation_sweep_failed", "error", err)
		}
		return
	}
	released, err := s.sweeper.SweepExpired(ctx, s.now())
	if err != nil {
		logger.Warnw("scheduler_reservation_sweep_failed", "released", released, "error", err)
	}
}

func (s *Scheduler) refreshOnce(ctx context.Context) {
	if s.queued() {
		if err := s.enqueuer.EnqueueAlertRefresh(queue.AlertRefreshPayload{}, asynq.Unique(s.refreshInterval)); err != nil {
			logger.Warnw("scheduler_enqueue_alert_refresh_failed", "error", err)
		}
		return
	}
	if _, err := s.refresher.Refresh(ctx, service.RefreshOptions{}); err != nil {
		logger.Warnw("scheduler_alert_refresh_failed", "error", err)
	}
}
