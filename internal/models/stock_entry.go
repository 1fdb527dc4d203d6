package models

import (
	"time"

	"github.com/dujiao-next/stockledger/internal/constants"
)

// StockEntry 库存流水（只追加，不修改不删除）
type StockEntry struct {
	ID              uint      `gorm:"primarykey" json:"id"`                                                // 主键
	VariantID       uint      `gorm:"not null;index:idx_stock_entry_variant,priority:1" json:"variant_id"` // 规格ID
	Kind            string    `gorm:"type:varchar(20);not null;index" json:"kind"`                         // 流水类型
	Quantity        int       `gorm:"not null" json:"quantity"`                                            // 变动数量（带符号）
	QuantityBefore  int       `gorm:"not null" json:"quantity_before"`                                     // 变动前数量
	QuantityAfter   int       `gorm:"not null" json:"quantity_after"`                                      // 变动后数量
	ReservedBefore  int       `gorm:"not null;default:0" json:"reserved_before"`                           // 变动前预占数量
	ReservedAfter   int       `gorm:"not null;default:0" json:"reserved_after"`                            // 变动后预占数量
	OrderID         *uint     `gorm:"index" json:"order_id,omitempty"`                                     // 关联订单ID
	ReferenceNumber string    `gorm:"type:varchar(64)" json:"reference_number,omitempty"`                  // 单据编号
	CostPerItem     *Money    `gorm:"type:decimal(20,2)" json:"cost_per_item,omitempty"`                   // 入库单价
	Notes           string    `gorm:"type:text" json:"notes,omitempty"`                                    // 备注
	ActorID         *uint     `gorm:"index" json:"actor_id,omitempty"`                                     // 操作人ID
	CreatedAt       time.Time `gorm:"index:idx_stock_entry_variant,priority:2" json:"created_at"`          // 创建时间
}

// TableName 指定表名
func (StockEntry) TableName() string {
	return "stock_entries"
}

// TracksReserved 预占类流水，在库数量不变
func (e StockEntry) TracksReserved() bool {
	return e.Kind == constants.StockEntryReserve || e.Kind == constants.StockEntryUnreserve
}

// ReservedChange 预占数量变动
func (e StockEntry) ReservedChange() int {
	return e.ReservedAfter - e.ReservedBefore
}
