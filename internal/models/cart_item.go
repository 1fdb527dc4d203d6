package models

import (
	"time"
)

// CartItem 购物车项（同时承载结算预占信息）
type CartItem struct {
	ID                   uint       `gorm:"primarykey" json:"id"`                                                            // 主键
	UserID               uint       `gorm:"not null;uniqueIndex:idx_cart_user_variant" json:"user_id"`                       // 用户ID
	VariantID            uint       `gorm:"not null;uniqueIndex:idx_cart_user_variant" json:"variant_id"`                    // 规格ID
	Quantity             int        `gorm:"not null" json:"quantity"`                                                        // 数量
	IsReserved           bool       `gorm:"not null;default:false;index:idx_cart_reservation,priority:1" json:"is_reserved"` // 是否已预占
	ReservedAt           *time.Time `json:"reserved_at,omitempty"`                                                           // 预占时间
	ReservationExpiresAt *time.Time `gorm:"index:idx_cart_reservation,priority:2" json:"reservation_expires_at,omitempty"`   // 预占过期时间
	CreatedAt            time.Time  `gorm:"index" json:"created_at"`                                                         // 创建时间
	UpdatedAt            time.Time  `gorm:"index" json:"updated_at"`                                                         // 更新时间

	Variant *ProductVariant `gorm:"foreignKey:VariantID" json:"variant,omitempty"` // 关联规格
}

// TableName 指定表名
func (CartItem) TableName() string {
	return "cart_items"
}

// ReservationExpired 预占是否已过期
func (c CartItem) ReservationExpired(now time.Time) bool {
	return c.IsReserved && c.ReservationExpiresAt != nil && c.ReservationExpiresAt.Before(now)
}
