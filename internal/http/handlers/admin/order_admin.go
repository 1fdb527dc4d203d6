package admin

import (
	"strings"

	handlershared "github.com/dujiao-next/stockledger/internal/http/handlers/shared"
	"github.com/dujiao-next/stockledger/internal/http/response"
	"github.com/dujiao-next/stockledger/internal/repository"
	"github.com/dujiao-next/stockledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const idempotencyKeyHeader = "Idempotency-Key"

// TransitionOrderRequest 订单状态流转请求
type TransitionOrderRequest struct {
	Status         string `json:"status" binding:"required"`
	IdempotencyKey string `json:"idempotency_key"`
}

// AddOrderItemRequest 订单追加商品请求
type AddOrderItemRequest struct {
	VariantID uint             `json:"variant_id" binding:"required"`
	Quantity  int              `json:"quantity" binding:"required"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

// ListOrders 订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	page, pageSize := handlershared.PageParams(c)
	orders, total, err := h.OrderService.ListOrders(repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   handlershared.QueryUint(c, "user_id"),
		Status:   strings.TrimSpace(c.Query("status")),
		OrderNo:  strings.TrimSpace(c.Query("order_no")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取订单列表失败", err)
		return
	}
	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}

// GetOrder 订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderService.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "获取订单失败")
		return
	}
	response.Success(c, order)
}

// TransitionOrder 订单状态流转，取消与退货时联动回库
func (h *Handler) TransitionOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req TransitionOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	key := strings.TrimSpace(c.GetHeader(idempotencyKeyHeader))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}

	result, err := h.OrderService.TransitionStatus(c.Request.Context(), service.TransitionInput{
		OrderID:        id,
		ToStatus:       strings.TrimSpace(req.Status),
		IdempotencyKey: key,
		ActorID:        getActorID(c),
	})
	if err != nil {
		respondServiceError(c, err, "订单状态更新失败")
		return
	}
	response.Success(c, result)
}

// ListOrderTransitions 订单状态流转记录
func (h *Handler) ListOrderTransitions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	transitions, err := h.OrderService.ListTransitions(id)
	if err != nil {
		respondServiceError(c, err, "获取流转记录失败")
		return
	}
	response.Success(c, transitions)
}

// ListOrderStockEntries 订单关联的库存流水
func (h *Handler) ListOrderStockEntries(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	entries, err := h.StockLedgerService.OrderEntries(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "获取库存流水失败")
		return
	}
	response.Success(c, entries)
}

// AddOrderItem 订单追加商品
func (h *Handler) AddOrderItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req AddOrderItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	item, err := h.OrderService.AddItem(c.Request.Context(), service.AddItemInput{
		OrderID:   id,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		ActorID:   getActorID(c),
	})
	if err != nil {
		respondServiceError(c, err, "追加订单项失败")
		return
	}
	response.Success(c, item)
}

// RemoveOrderItem 删除订单项
func (h *Handler) RemoveOrderItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseID(c, "item_id")
	if !ok {
		return
	}
	result, err := h.OrderService.RemoveItem(c.Request.Context(), id, itemID, getActorID(c))
	if err != nil {
		respondServiceError(c, err, "删除订单项失败")
		return
	}
	response.Success(c, result)
}
