package models

import (
	"time"
)

// StockAlert 库存预警
type StockAlert struct {
	ID              uint       `gorm:"primarykey" json:"id"`                                                                // 主键
	VariantID       uint       `gorm:"not null;index:idx_stock_alert_lookup,priority:1" json:"variant_id"`                  // 规格ID
	AlertType       string     `gorm:"type:varchar(20);not null;index:idx_stock_alert_lookup,priority:2" json:"alert_type"` // 预警类型
	CurrentQuantity int        `gorm:"not null" json:"current_quantity"`                                                    // 触发时可售数量
	Threshold       int        `gorm:"not null" json:"threshold"`                                                           // 触发阈值
	IsResolved      bool       `gorm:"not null;default:false;index:idx_stock_alert_lookup,priority:3" json:"is_resolved"`   // 是否已处理
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`                                                               // 处理时间
	ResolvedBy      *uint      `json:"resolved_by,omitempty"`                                                               // 处理人ID
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`                                                             // 创建时间
	UpdatedAt       time.Time  `json:"updated_at"`                                                                          // 更新时间

	Variant *ProductVariant `gorm:"foreignKey:VariantID" json:"variant,omitempty"` // 关联规格
}

// TableName 指定表名
func (StockAlert) TableName() string {
	return "stock_alerts"
}
