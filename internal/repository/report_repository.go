package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dujiao-next/stockledger/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// InventoryReportFilter 库存报表过滤条件（阈值比较基于在库数量）
type InventoryReportFilter struct {
	CategoryID  uint
	ProductID   uint
	LowStock    bool
	OutOfStock  bool
	NeedReorder bool
	OnlyActive  bool
	Limit       int
}

// InventorySummaryRow 库存汇总
type InventorySummaryRow struct {
	TotalVariants          int64           `db:"total_variants"`
	TotalStockQuantity     int64           `db:"total_stock_quantity"`
	TotalReservedQuantity  int64           `db:"total_reserved_quantity"`
	TotalAvailableQuantity int64           `db:"total_available_quantity"`
	TotalStockValue        decimal.Decimal `db:"total_stock_value"`
	LowStockItems          int64           `db:"low_stock_items"`
	OutOfStockItems        int64           `db:"out_of_stock_items"`
	NeedReorderItems       int64           `db:"need_reorder_items"`
}

// InventoryVariantRow 库存报表明细
type InventoryVariantRow struct {
	ID               uint            `db:"id" json:"id"`
	ProductID        uint            `db:"product_id" json:"product_id"`
	ProductName      string          `db:"product_name" json:"product_name"`
	SKU              string          `db:"sku" json:"sku"`
	Size             string          `db:"size" json:"size"`
	Color            string          `db:"color" json:"color"`
	StockQuantity    int             `db:"stock_quantity" json:"stock_quantity"`
	ReservedQuantity int             `db:"reserved_quantity" json:"reserved_quantity"`
	MinimumStock     int             `db:"minimum_stock" json:"minimum_stock"`
	ReorderPoint     int             `db:"reorder_point" json:"reorder_point"`
	CostPrice        decimal.Decimal `db:"cost_price" json:"cost_price"`
}

// ReportRepository 只读报表查询接口
type ReportRepository interface {
	InventorySummary(ctx context.Context, filter InventoryReportFilter) (*InventorySummaryRow, error)
	InventoryVariants(ctx context.Context, filter InventoryReportFilter) ([]InventoryVariantRow, error)
}

// SqlxReportRepository 基于 sqlx 的报表实现
type SqlxReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository 基于已有连接创建报表仓库
func NewReportRepository(sqlDB *sql.DB, driver string) *SqlxReportRepository {
	return &SqlxReportRepository{db: sqlx.NewDb(sqlDB, sqlxDriverName(driver))}
}

func sqlxDriverName(driver string) string {
	if driver == models.DriverPostgres {
		return "pgx"
	}
	return "sqlite3"
}

const inventoryReportFrom = `
FROM product_variants v
LEFT JOIN products p ON p.id = v.product_id AND p.deleted_at IS NULL
WHERE 1 = 1`

func buildInventoryReportWhere(filter InventoryReportFilter) (string, []interface{}) {
	var sb strings.Builder
	args := make([]interface{}, 0, 4)
	if filter.OnlyActive {
		sb.WriteString(" AND v.is_active = ?")
		args = append(args, true)
	}
	if filter.CategoryID != 0 {
		sb.WriteString(" AND p.category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.ProductID != 0 {
		sb.WriteString(" AND v.product_id = ?")
		args = append(args, filter.ProductID)
	}
	if filter.LowStock {
		sb.WriteString(" AND v.stock_quantity <= v.minimum_stock")
	}
	if filter.OutOfStock {
		sb.WriteString(" AND v.stock_quantity = 0")
	}
	if filter.NeedReorder {
		sb.WriteString(" AND v.stock_quantity <= v.reorder_point")
	}
	return sb.String(), args
}

// InventorySummary 汇总库存数量与价值
func (r *SqlxReportRepository) InventorySummary(ctx context.Context, filter InventoryReportFilter) (*InventorySummaryRow, error) {
	where, args := buildInventoryReportWhere(filter)
	query := `SELECT
	COUNT(v.id) AS total_variants,
	COALESCE(SUM(v.stock_quantity), 0) AS total_stock_quantity,
	COALESCE(SUM(v.reserved_quantity), 0) AS total_reserved_quantity,
	COALESCE(SUM(CASE WHEN v.stock_quantity > v.reserved_quantity THEN v.stock_quantity - v.reserved_quantity ELSE 0 END), 0) AS total_available_quantity,
	COALESCE(SUM(v.stock_quantity * v.cost_price), 0) AS total_stock_value,
	COALESCE(SUM(CASE WHEN v.stock_quantity <= v.minimum_stock THEN 1 ELSE 0 END), 0) AS low_stock_items,
	COALESCE(SUM(CASE WHEN v.stock_quantity = 0 THEN 1 ELSE 0 END), 0) AS out_of_stock_items,
	COALESCE(SUM(CASE WHEN v.stock_quantity <= v.reorder_point THEN 1 ELSE 0 END), 0) AS need_reorder_items` +
		inventoryReportFrom + where

	var row InventorySummaryRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return &row, nil
}

// InventoryVariants 查询报表明细
func (r *SqlxReportRepository) InventoryVariants(ctx context.Context, filter InventoryReportFilter) ([]InventoryVariantRow, error) {
	where, args := buildInventoryReportWhere(filter)
	query := `SELECT
	v.id, v.product_id, COALESCE(p.name, '') AS product_name, COALESCE(v.sku, '') AS sku,
	COALESCE(v.size, '') AS size, COALESCE(v.color, '') AS color,
	v.stock_quantity, v.reserved_quantity, v.minimum_stock, v.reorder_point, v.cost_price` +
		inventoryReportFrom + where + " ORDER BY v.id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows := make([]InventoryVariantRow, 0)
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return rows, nil
}
