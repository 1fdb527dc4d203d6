package queue

import (
	"encoding/json"
	"time"

	"github.com/dujiao-next/stockledger/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskReservationSweep 过期预占清理任务
	TaskReservationSweep = constants.TaskReservationSweep
	// TaskAlertRefresh 库存预警重建任务
	TaskAlertRefresh = constants.TaskAlertRefresh
)

// ReservationSweepPayload 过期预占清理任务载荷
type ReservationSweepPayload struct {
	Now time.Time `json:"now"` // 零值表示以执行时间为准
}

// AlertRefreshPayload 预警重建任务载荷
type AlertRefreshPayload struct {
	DeleteResolved bool `json:"delete_resolved"`
}

// NewReservationSweepTask 创建过期预占清理任务
func NewReservationSweepTask(payload ReservationSweepPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReservationSweep, body), nil
}

// NewAlertRefreshTask 创建预警重建任务
func NewAlertRefreshTask(payload AlertRefreshPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAlertRefresh, body), nil
}
