package admin

import (
	"strconv"

	handlershared "github.com/dujiao-next/stockledger/internal/http/handlers/shared"
	"github.com/dujiao-next/stockledger/internal/http/response"
	"github.com/dujiao-next/stockledger/internal/repository"
	"github.com/dujiao-next/stockledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateProductRequest 创建商品请求
type CreateProductRequest struct {
	CategoryID  uint            `json:"category_id"`
	Name        string          `json:"name" binding:"required"`
	PriceAmount decimal.Decimal `json:"price_amount"`
}

// CreateVariantRequest 创建规格请求
type CreateVariantRequest struct {
	SKU          string           `json:"sku" binding:"required"`
	Size         string           `json:"size"`
	Color        string           `json:"color"`
	InitialStock int              `json:"initial_stock"`
	MinimumStock *int             `json:"minimum_stock"`
	ReorderPoint *int             `json:"reorder_point"`
	CostPrice    *decimal.Decimal `json:"cost_price"`
}

// UpdateThresholdsRequest 更新阈值请求
type UpdateThresholdsRequest struct {
	MinimumStock *int  `json:"minimum_stock"`
	ReorderPoint *int  `json:"reorder_point"`
	IsActive     *bool `json:"is_active"`
}

// CreateProduct 创建商品
func (h *Handler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	product, err := h.ProductService.CreateProduct(c.Request.Context(), service.CreateProductInput{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		PriceAmount: req.PriceAmount,
	})
	if err != nil {
		respondServiceError(c, err, "创建商品失败")
		return
	}
	response.Success(c, product)
}

// GetProduct 获取商品详情
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	product, err := h.ProductService.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "获取商品失败")
		return
	}
	response.Success(c, product)
}

// CreateVariant 创建规格，初始库存通过入库流水写入
func (h *Handler) CreateVariant(c *gin.Context) {
	productID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CreateVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	variant, err := h.ProductService.CreateVariant(c.Request.Context(), service.CreateVariantInput{
		ProductID:    productID,
		SKU:          req.SKU,
		Size:         req.Size,
		Color:        req.Color,
		InitialStock: req.InitialStock,
		MinimumStock: req.MinimumStock,
		ReorderPoint: req.ReorderPoint,
		CostPrice:    req.CostPrice,
		ActorID:      getActorID(c),
	})
	if err != nil {
		respondServiceError(c, err, "创建规格失败")
		return
	}
	response.Success(c, variant)
}

// ListVariants 规格列表
func (h *Handler) ListVariants(c *gin.Context) {
	page, pageSize := handlershared.PageParams(c)
	onlyActive, _ := strconv.ParseBool(c.DefaultQuery("only_active", "false"))

	variants, total, err := h.ProductService.ListVariants(repository.VariantListFilter{
		Page:       page,
		PageSize:   pageSize,
		ProductID:  handlershared.QueryUint(c, "product_id"),
		CategoryID: handlershared.QueryUint(c, "category_id"),
		OnlyActive: onlyActive,
		Keyword:    c.Query("keyword"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取规格列表失败", err)
		return
	}
	response.SuccessWithPage(c, variants, response.BuildPagination(page, pageSize, total))
}

// GetVariant 规格详情
func (h *Handler) GetVariant(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	variant, err := h.ProductService.GetVariant(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "获取规格失败")
		return
	}
	response.Success(c, variant)
}

// GetVariantAvailability 规格可售数量
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

// UpdateVariantThresholds 更新规格阈值
func (h *Handler) UpdateVariantThresholds(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateThresholdsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	variant, err := h.ProductService.UpdateThresholds(c.Request.Context(), id, repository.VariantThresholdPatch{
		MinimumStock: req.MinimumStock,
		ReorderPoint: req.ReorderPoint,
		IsActive:     req.IsActive,
	})
	if err != nil {
		respondServiceError(c, err, "更新阈值失败")
		return
	}
	response.Success(c, variant)
}

// DeactivateVariant 下架规格
func (h *Handler) DeactivateVariant(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	variant, err := h.ProductService.Deactivate(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "下架规格失败")
		return
	}
	response.Success(c, variant)
}
