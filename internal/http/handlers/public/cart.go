package public

import (
	"github.com/dujiao-next/stockledger/internal/http/response"
	"github.com/dujiao-next/stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

// CartItemRequest 购物车项请求
type CartItemRequest struct {
	VariantID uint `json:"variant_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// GetCart 获取购物车
func (h *Handler) GetCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	items, err := h.CartService.ListByUser(uid)
	if err != nil {
		respondServiceError(c, err, "获取购物车失败")
		return
	}
	response.Success(c, items)
}

// UpsertCartItem 添加或更新购物车项，数量变化时释放原预占
func (h *Handler) UpsertCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	item, err := h.CartService.UpsertItem(c.Request.Context(), service.UpsertCartItemInput{
		UserID:    uid,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondServiceError(c, err, "更新购物车失败")
		return
	}
	response.Success(c, item)
}

// DeleteCartItem 删除购物车项
func (h *Handler) DeleteCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.CartService.RemoveItem(c.Request.Context(), uid, itemID); err != nil {
		respondServiceError(c, err, "删除购物车项失败")
		return
	}
	response.Success(c, nil)
}

// ReserveCartItem 预占单个购物车项
func (h *Handler) ReserveCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	reserved, err := h.CartService.Reserve(c.Request.Context(), uid, itemID)
	if err != nil {
		respondServiceError(c, err, "预占失败")
		return
	}
	response.Success(c, gin.H{"reserved": reserved})
}

// ReleaseCartItem 释放单个购物车项的预占
func (h *Handler) ReleaseCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.CartService.Release(c.Request.Context(), uid, itemID); err != nil {
		respondServiceError(c, err, "释放预占失败")
		return
	}
	response.Success(c, gin.H{"released": true})
}

// ReserveCart 预占整个购物车
func (h *Handler) ReserveCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	results, err := h.CartService.ReserveAll(c.Request.Context(), uid)
	if err != nil {
		respondServiceError(c, err, "预占失败")
		return
	}
	response.Success(c, gin.H{"items": results})
}

// GetVariantAvailability 查询规格可售数量
func (h *Handler) GetVariantAvailability(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	availability, err := h.ProductService.GetAvailability(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "获取可售数量失败")
		return
	}
	response.Success(c, availability)
}
