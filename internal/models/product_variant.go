package models

import (
	"time"
)

// ProductVariant 商品规格（尺码 × 颜色），库存计数的唯一持有者
// 说明：StockQuantity / ReservedQuantity 只允许通过库存流水与预占流程修改。
type ProductVariant struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                                     // 主键
	ProductID        uint      `gorm:"not null;index" json:"product_id"`                                         // 商品ID
	SKU              string    `gorm:"column:sku;type:varchar(64);uniqueIndex" json:"sku"`                       // 规格编码
	Size             string    `gorm:"type:varchar(20)" json:"size"`                                             // 尺码
	Color            string    `gorm:"type:varchar(40)" json:"color"`                                            // 颜色
	StockQuantity    int       `gorm:"not null;default:0;check:stock_quantity >= 0" json:"stock_quantity"`       // 在库数量
	ReservedQuantity int       `gorm:"not null;default:0;check:reserved_quantity >= 0" json:"reserved_quantity"` // 预占数量
	MinimumStock     int       `gorm:"not null" json:"minimum_stock"`                                            // 最低库存阈值
	ReorderPoint     int       `gorm:"not null" json:"reorder_point"`                                            // 补货点
	CostPrice        Money     `gorm:"type:decimal(20,2);not null;default:0" json:"cost_price"`                  // 单位成本
	IsActive         bool      `gorm:"default:true;index" json:"is_active"`                                      // 是否启用
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                                                  // 创建时间
	UpdatedAt        time.Time `json:"updated_at"`                                                               // 更新时间

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // 关联商品
}

// TableName 指定表名
func (ProductVariant) TableName() string {
	return "product_variants"
}

// Available 可售数量（在库 - 预占，最小为 0）
func (v ProductVariant) Available() int {
	available := v.StockQuantity - v.ReservedQuantity
	if available < 0 {
		return 0
	}
	return available
}

// IsLowStock 是否低库存
func (v ProductVariant) IsLowStock() bool {
	return v.Available() <= v.MinimumStock
}

// NeedsReorder 是否需要补货
func (v ProductVariant) NeedsReorder() bool {
	return v.Available() <= v.ReorderPoint
}
