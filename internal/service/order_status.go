package service

import (
	"fmt"
	"strings"

	"github.com/dujiao-next/stockledger/internal/constants"
)

// orderTransitions 订单状态流转表，已取消/已退货为终态
// 任一非终态都可直接取消或退货
var orderTransitions = map[string][]string{
	constants.OrderStatusPending:    {constants.OrderStatusProcessing, constants.OrderStatusCancelled, constants.OrderStatusReturned},
	constants.OrderStatusProcessing: {constants.OrderStatusShipped, constants.OrderStatusCancelled, constants.OrderStatusReturned},
	constants.OrderStatusShipped:    {constants.OrderStatusDelivered, constants.OrderStatusCancelled, constants.OrderStatusReturned},
	constants.OrderStatusDelivered:  {constants.OrderStatusCancelled, constants.OrderStatusReturned},
	constants.OrderStatusCancelled:  {},
	constants.OrderStatusReturned:   {},
}

func normalizeOrderStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func isValidOrderStatus(status string) bool {
	_, ok := orderTransitions[status]
	return ok
}

func canTransitionOrder(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// isStockReturnStatus 进入该状态时订单项库存回补
func isStockReturnStatus(status string) bool {
	return status == constants.OrderStatusCancelled || status == constants.OrderStatusReturned
}

// defaultTransitionKey 未传幂等键时按 订单:原状态->目标状态 生成
func defaultTransitionKey(orderID uint, from, to string) string {
	return fmt.Sprintf("%d:%s->%s", orderID, from, to)
}
