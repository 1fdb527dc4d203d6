package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dujiao-next/stockledger/internal/logger"
	"github.com/dujiao-next/stockledger/internal/provider"
	"github.com/dujiao-next/stockledger/internal/queue"
	"github.com/dujiao-next/stockledger/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskReservationSweep, c.handleReservationSweep)
	mux.HandleFunc(queue.TaskAlertRefresh, c.handleAlertRefresh)
}

func (c *Consumer) handleReservationSweep(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_reservation_sweep_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ReservationSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_reservation_sweep_unmarshal_failed", "error", err)
		return err
	}
	if c.ReservationService == nil {
		logger.Warnw("worker_reservation_sweep_skip_service_nil")
		return nil
	}
	now := payload.Now
	if now.IsZero() {
		now = time.Now()
	}
	released, err := c.ReservationService.SweepExpired(ctx, now)
	if err != nil {
		logger.Warnw("worker_reservation_sweep_failed", "released", released, "error", err)
		return err
	}
	logger.Debugw("worker_reservation_sweep_done", "released", released)
	return nil
}

func (c *Consumer) handleAlertRefresh(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_alert_refresh_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.AlertRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_alert_refresh_unmarshal_failed", "error", err)
		return err
	}
	if c.AlertService == nil {
		logger.Warnw("worker_alert_refresh_skip_service_nil")
		return nil
	}
	stats, err := c.AlertService.Refresh(ctx, service.RefreshOptions{DeleteResolved: payload.DeleteResolved})
	if err != nil {
		logger.Warnw("worker_alert_refresh_failed", "delete_resolved", payload.DeleteResolved, "error", err)
		return err
	}
	logger.Debugw("worker_alert_refresh_done", "created", stats.Created, "deleted", stats.Deleted)
	return nil
}
