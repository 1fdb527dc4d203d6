package models

import (
	"time"
)

// OrderTransition 订单状态流转记录（幂等键持久化）
type OrderTransition struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                          // 主键
	OrderID        uint      `gorm:"index;not null" json:"order_id"`                                // 订单ID
	FromStatus     string    `gorm:"type:varchar(20);not null" json:"from_status"`                  // 原状态
	ToStatus       string    `gorm:"type:varchar(20);not null" json:"to_status"`                    // 目标状态
	IdempotencyKey string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"idempotency_key"` // 幂等键
	ReturnedItems  int       `gorm:"not null;default:0" json:"returned_items"`                      // 回补成功的订单项数量
	FailedItems    int       `gorm:"not null;default:0" json:"failed_items"`                        // 回补失败的订单项数量
	ActorID        *uint     `gorm:"index" json:"actor_id,omitempty"`                               // 操作人ID
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                       // 创建时间
}

// TableName 指定表名
func (OrderTransition) TableName() string {
	return "order_transitions"
}
