package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event 库存领域事件
type Event struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	VariantID      uint      `json:"variant_id,omitempty"`
	OrderID        *uint     `json:"order_id,omitempty"`
	EntryID        uint      `json:"entry_id,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	Quantity       int       `json:"quantity,omitempty"`
	QuantityBefore int       `json:"quantity_before,omitempty"`
	QuantityAfter  int       `json:"quantity_after,omitempty"`
	ReservedBefore int       `json:"reserved_before,omitempty"`
	ReservedAfter  int       `json:"reserved_after,omitempty"`
	AlertID        uint      `json:"alert_id,omitempty"`
	AlertType      string    `json:"alert_type,omitempty"`
	Resolved       int64     `json:"resolved,omitempty"`
	FromStatus     string    `json:"from_status,omitempty"`
	ToStatus       string    `json:"to_status,omitempty"`
	ActorID        *uint     `json:"actor_id,omitempty"`
	Message        string    `json:"message,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// New 创建带唯一 ID 与时间戳的事件
func New(eventType string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now(),
	}
}

// Key 消息分区键：同一规格的事件落在同一分区，保持顺序
func (e Event) Key() string {
	if e.VariantID != 0 {
		return fmt.Sprintf("variant:%d", e.VariantID)
	}
	if e.OrderID != nil {
		return fmt.Sprintf("order:%d", *e.OrderID)
	}
	return e.ID
}
