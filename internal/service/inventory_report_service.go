package service

import (
	"context"

	"github.com/dujiao-next/stockledger/internal/repository"
	"github.com/dujiao-next/stockledger/internal/telemetry"

	"github.com/shopspring/decimal"
)

// ReportFilter 库存报表过滤条件
type ReportFilter struct {
	CategoryID  uint
	ProductID   uint
	LowStock    bool
	OutOfStock  bool
	NeedReorder bool
	Limit       int
}

// InventorySummary 库存汇总
type InventorySummary struct {
	TotalVariants          int64           `json:"total_variants"`
	TotalStockQuantity     int64           `json:"total_stock_quantity"`
	TotalReservedQuantity  int64           `json:"total_reserved_quantity"`
	TotalAvailableQuantity int64           `json:"total_available_quantity"`
	TotalStockValue        decimal.Decimal `json:"total_stock_value"`
	LowStockItems          int64           `json:"low_stock_items"`
	OutOfStockItems        int64           `json:"out_of_stock_items"`
	NeedReorderItems       int64           `json:"need_reorder_items"`
}

// InventoryReportVariant 报表明细行
type InventoryReportVariant struct {
	repository.InventoryVariantRow
	AvailableQuantity int             `json:"available_quantity"`
	StockValue        decimal.Decimal `json:"stock_value"`
	IsLowStock        bool            `json:"is_low_stock"`
	NeedsReorder      bool            `json:"needs_reorder"`
}

// InventoryReport 库存报表
type InventoryReport struct {
	Summary  InventorySummary         `json:"summary"`
	Variants []InventoryReportVariant `json:"variants"`
}

// InventoryReportService 库存报表服务（只读）
type InventoryReportService struct {
	reportRepo repository.ReportRepository
}

// NewInventoryReportService 创建库存报表服务
func NewInventoryReportService(reportRepo repository.ReportRepository) *InventoryReportService {
	return &InventoryReportService{reportRepo: reportRepo}
}

// Report 生成库存报表
func (s *InventoryReportService) Report(ctx context.Context, filter ReportFilter) (report *InventoryReport, err error) {
	ctx, span := telemetry.StartSpan(ctx, "stock.report")
	defer func() { telemetry.EndSpan(span, err) }()

	repoFilter := repository.InventoryReportFilter{
		CategoryID:  filter.CategoryID,
		ProductID:   filter.ProductID,
		LowStock:    filter.LowStock,
		OutOfStock:  filter.OutOfStock,
		NeedReorder: filter.NeedReorder,
		Limit:       filter.Limit,
	}
	summary, err := s.reportRepo.InventorySummary(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	rows, err := s.reportRepo.InventoryVariants(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	report = &InventoryReport{
		Summary: InventorySummary{
			TotalVariants:         summary.TotalVariants,
			TotalStockQuantity:    summary.TotalStockQuantity,
			TotalReservedQuantity: summary.TotalReservedQuantity,
			TotalAvailableQuantity: summary.TotalAvailableQuantity,
			TotalStockValue:       summary.TotalStockValue.Round(2),
			LowStockItems:         summary.LowStockItems,
			OutOfStockItems:       summary.OutOfStockItems,
			NeedReorderItems:      summary.NeedReorderItems,
		},
		Variants: make([]InventoryReportVariant, 0, len(rows)),
	}
	for _, row := range rows {
		available := row.StockQuantity - row.ReservedQuantity
		if available < 0 {
			available = 0
		}
		report.Variants = append(report.Variants, InventoryReportVariant{
			InventoryVariantRow: row,
			AvailableQuantity:   available,
			StockValue:          row.CostPrice.Mul(decimal.NewFromInt(int64(row.StockQuantity))).Round(2),
			IsLowStock:          available <= row.MinimumStock,
			NeedsReorder:        available <= row.ReorderPoint,
		})
	}
	return report, nil
}
