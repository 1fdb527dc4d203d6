package repository

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrInvalidCounters 库存计数不满足 0 <= 预占 <= 在库
var ErrInvalidCounters = errors.New("invalid variant counters")

// ErrCartItemReserved 已预占的购物车项不允许修改数量
var ErrCartItemReserved = errors.New("cart item is reserved")

// StockCounters 规格库存计数快照
type StockCounters struct {
	Stock    int
	Reserved int
}

// Valid 校验计数约束
func (c StockCounters) Valid() bool {
	return c.Stock >= 0 && c.Reserved >= 0 && c.Reserved <= c.Stock
}

// VariantListFilter 查询规格列表的过滤条件
type VariantListFilter struct {
	Page       int
	PageSize   int
	ProductID  uint
	CategoryID uint
	OnlyActive bool
	Keyword    string // 匹配 SKU/尺码/颜色
}

// VariantThresholdPatch 规格阈值更新（不含库存计数）
type VariantThresholdPatch struct {
	MinimumStock *int
	ReorderPoint *int
	IsActive     *bool
}

// StockEntryListFilter 查询库存流水的过滤条件
type StockEntryListFilter struct {
	Page        int
	PageSize    int
	VariantID   uint
	OrderID     uint
	Kind        string
	Keyword     string // 匹配单据编号与备注
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// StockAlertListFilter 查询库存预警的过滤条件
type StockAlertListFilter struct {
	Page       int
	PageSize   int
	VariantID  uint
	AlertType  string
	IsResolved *bool
}

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	Status   string
	OrderNo  string
}

// applyPagination 应用分页参数，统一处理非法页码与偏移量。
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}

// IsDuplicateKeyError 判断唯一索引冲突（兼容未开启错误翻译的方言）
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
