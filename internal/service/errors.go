package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity       = errors.New("invalid quantity")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrStockConflict         = errors.New("stock counters changed concurrently")
	ErrVariantNotFound       = errors.New("variant not found")
	ErrVariantInactive       = errors.New("variant inactive")
	ErrProductNotFound       = errors.New("product not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderItemNotFound     = errors.New("order item not found")
	ErrCartItemNotFound      = errors.New("cart item not found")
	ErrCartEmpty             = errors.New("cart is empty")
	ErrAlertNotFound         = errors.New("stock alert not found")
	ErrInvalidAlertType      = errors.New("invalid stock alert type")
	ErrInvalidOrderStatus    = errors.New("invalid order status")
	ErrOrderStatusTransition = errors.New("order status transition not allowed")
	ErrInvalidPrice          = errors.New("invalid price")
	ErrInvalidProductName    = errors.New("invalid product name")
	ErrInvalidSKU            = errors.New("invalid sku")
	ErrInvalidThreshold      = errors.New("invalid stock threshold")
)

// InsufficientStockError 库存不足，携带规格可用数量与请求数量
type InsufficientStockError struct {
	VariantID uint
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %d: available %d, requested %d", e.VariantID, e.Available, e.Requested)
}

// Is 使 errors.Is(err, ErrInsufficientStock) 成立
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

func newInsufficientStock(variantID uint, available, requested int) error {
	return &InsufficientStockError{VariantID: variantID, Available: available, Requested: requested}
}

// IsNotFound 判断是否为资源不存在类错误
func IsNotFound(err error) bool {
	return errors.Is(err, ErrVariantNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrOrderItemNotFound) ||
		errors.Is(err, ErrCartItemNotFound) ||
		errors.Is(err, ErrAlertNotFound)
}
