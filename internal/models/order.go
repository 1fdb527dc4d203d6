package models

import (
	"time"
)

// Order 订单表
type Order struct {
	ID          uint       `gorm:"primarykey" json:"id"`                                      // 主键
	OrderNo     string     `gorm:"uniqueIndex;not null" json:"order_no"`                      // 订单编号
	UserID      uint       `gorm:"index;not null" json:"user_id"`                             // 用户ID
	Status      string     `gorm:"index;not null" json:"status"`                              // 订单状态
	TotalAmount Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"` // 订单金额
	Notes       string     `gorm:"type:text" json:"notes,omitempty"`                          // 备注
	CanceledAt  *time.Time `gorm:"index" json:"canceled_at,omitempty"`                        // 取消时间
	ReturnedAt  *time.Time `gorm:"index" json:"returned_at,omitempty"`                        // 退货时间
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt   time.Time  `gorm:"index" json:"updated_at"`                                   // 更新时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
