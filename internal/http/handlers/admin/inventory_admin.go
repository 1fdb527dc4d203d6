package admin

import (
	"strconv"
	"strings"
	"time"

	handlershared "github.com/dujiao-next/stockledger/internal/http/handlers/shared"
	"github.com/dujiao-next/stockledger/internal/http/response"
	"github.com/dujiao-next/stockledger/internal/repository"
	"github.com/dujiao-next/stockledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ImportStockRequest 入库请求
type ImportStockRequest struct {
	Quantity        int              `json:"quantity" binding:"required"`
	CostPerItem     *decimal.Decimal `json:"cost_per_item"`
	ReferenceNumber string           `json:"reference_number"`
	Notes           string           `json:"notes"`
}

// ExportStockRequest 出库与退货请求
type ExportStockRequest struct {
	Quantity int    `json:"quantity" binding:"required"`
	OrderID  *uint  `json:"order_id"`
	Notes    string `json:"notes"`
}

// AdjustStockRequest 盘点调整请求
type AdjustStockRequest struct {
	NewQuantity *int   `json:"new_quantity" binding:"required"`
	Reason      string `json:"reason"`
}

// DamagedStockRequest 报损请求
type DamagedStockRequest struct {
	Quantity int    `json:"quantity" binding:"required"`
	Reason   string `json:"reason"`
}

// ImportStock 采购入库
func (h *Handler) ImportStock(c *gin.Context) {
	variantID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ImportStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	change, err := h.StockLedgerService.Import(c.Request.Context(), service.ImportInput{
		VariantID:       variantID,
		Quantity:        req.Quantity,
		CostPerItem:     req.CostPerItem,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		ActorID:         getActorID(c),
	})
	if err != nil {
		respondServiceError(c, err, "入库失败")
		return
	}
	response.Success(c, change)
}

// ExportStock 出库
func (h *Handler) ExportStock(c *gin.Context) {
	variantID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ExportStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	change, err := h.StockLedgerService.Export(c.Request.Context(), service.ExportInput{
		VariantID: variantID,
		Quantity:  req.Quantity,
		OrderID:   req.OrderID,
		Notes:     req.Notes,
		ActorID:   getActorID(c),
	})
	if err != nil {
		respondServiceError(c, err, "出库失败")
		return
	}
	response.Success(c, change)
}

// ReturnStock 退货回库
func (h *Handler) ReturnStock(c *gin.Context) {
	variantID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ExportStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	change, err := h.StockLedgerService.Return(c.Request.Context(), service.ReturnInput{
		VariantID: variantID,
		Quantity:  req.Quantity,
		OrderID:   req.OrderID,
		Notes:     req.Notes,
		ActorID:   getActorID(c),
	})
	if err != nil {
		respondServiceError(c, err, "退货回库失败")
		return
	}
	response.Success(c, change)
}

// AdjustStock 盘点调整
func (h *Handler) AdjustStock(c *gin.Context) {
	variantID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	change, err := h.StockLedgerService.Adjust(c.Request.Context(), service.AdjustInput{
		VariantID:   variantID,
		NewQuantity: *req.NewQuantity,
		Reason:      req.Reason,
		ActorID:     getActorID(c),
	})
	if err != nil {
		respondServiceError(c, err, "盘点调整失败")
		return
	}
	response.Success(c, change)
}

// MarkDamaged 报损
func (h *Handler) MarkDamaged(c *gin.Context) {
	variantID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req DamagedStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	change, err := h.StockLedgerService.MarkDamaged(c.Request.Context(), service.DamagedInput{
		VariantID: variantID,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		ActorID:   getActorID(c),
	})
	if err != nil {
		respondServiceError(c, err, "报损失败")
		return
	}
	response.Success(c, change)
}

// GetVariantHistory 规格库存流水（新的在前）
func (h *Handler) GetVariantHistory(c *gin.Context) {
	variantID, ok := parseID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	entries, err := h.StockLedgerService.History(c.Request.Context(), variantID, limit)
	if err != nil {
		respondServiceError(c, err, "获取库存流水失败")
		return
	}
	response.Success(c, entries)
}

// ListStockEntries 库存流水分页查询
func (h *Handler) ListStockEntries(c *gin.Context) {
	page, pageSize := handlershared.PageParams(c)
	createdFrom, err := parseTimeNullable(c.Query("created_from"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "created_from 格式错误", err)
		return
	}
	createdTo, err := parseTimeNullable(c.Query("created_to"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "created_to 格式错误", err)
		return
	}

	entries, total, err := h.StockLedgerService.ListEntries(repository.StockEntryListFilter{
		Page:        page,
		PageSize:    pageSize,
		VariantID:   handlershared.QueryUint(c, "variant_id"),
		OrderID:     handlershared.QueryUint(c, "order_id"),
		Kind:        strings.TrimSpace(c.Query("kind")),
		Keyword:     c.Query("keyword"),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取库存流水失败", err)
		return
	}
	response.SuccessWithPage(c, entries, response.BuildPagination(page, pageSize, total))
}

func parseTimeNullable(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	var lastErr error
	for _, layout := range layouts {
		parsed, err := time.ParseInLocation(layout, raw, time.Local)
		if err == nil {
			return &parsed, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
