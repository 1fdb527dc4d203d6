package public

import (
	"github.com/dujiao-next/stockledger/internal/http/response"
	"github.com/dujiao-next/stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckoutRequest 结算请求
type CheckoutRequest struct {
	CartItemIDs []uint `json:"cart_item_ids"`
	Notes       string `json:"notes"`
}

// Checkout 购物车结算下单
func (h *Handler) Checkout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CheckoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "请求参数错误", err)
			return
		}
	}
	order, err := h.OrderService.CheckoutFromCart(c.Request.Context(), service.CheckoutInput{
		UserID:      uid,
		CartItemIDs: req.CartItemIDs,
		Notes:       req.Notes,
		ActorID:     &uid,
	})
	if err != nil {
		respondServiceError(c, err, "下单失败")
		return
	}
	response.Success(c, order)
}

// GetOrder 查询本人订单
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderService.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "获取订单失败")
		return
	}
	if order.UserID != uid {
		response.NotFound(c, "订单不存在")
		return
	}
	response.Success(c, order)
}
