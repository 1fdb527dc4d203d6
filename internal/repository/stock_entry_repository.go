package repository

import (
	"errors"

	"github.com/dujiao-next/stockledger/internal/models"

	"gorm.io/gorm"
)

// StockEntryRepository 库存流水数据访问接口（只追加）
type StockEntryRepository interface {
	Create(entry *models.StockEntry) error
	LatestByVariant(variantID uint, kinds []string) (*models.StockEntry, error)
	ListByVariant(variantID uint, limit int) ([]models.StockEntry, error)
	ListByOrder(orderID uint) ([]models.StockEntry, error)
	List(filter StockEntryListFilter) ([]models.StockEntry, int64, error)
	WithTx(tx *gorm.DB) StockEntryRepository
}

// GormStockEntryRepository GORM 实现
type GormStockEntryRepository struct {
	db *gorm.DB
}

// NewStockEntryRepository 创建库存流水仓库
func NewStockEntryRepository(db *gorm.DB) *GormStockEntryRepository {
	return &GormStockEntryRepository{db: db}
}

// WithTx 绑定事务
func (r *GormStockEntryRepository) WithTx(tx *gorm.DB) StockEntryRepository {
	if tx == nil {
		return r
	}
	return &GormStockEntryRepository{db: tx}
}

// Create 追加流水
func (r *GormStockEntryRepository) Create(entry *models.StockEntry) error {
	if entry == nil {
		return nil
	}
	if entry.ID != 0 {
		return errors.New("stock entry is append-only")
	}
	return r.db.Create(entry).Error
}

// LatestByVariant 获取规格最近一条流水（可按类型过滤）
func (r *GormStockEntryRepository) LatestByVariant(variantID uint, kinds []string) (*models.StockEntry, error) {
	query := r.db.Where("variant_id = ?", variantID)
	if len(kinds) > 0 {
		query = query.Where("kind IN ?", kinds)
	}
	var entry models.StockEntry
	if err := query.Order("id DESC").First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListByVariant 获取规格流水（按时间倒序）
func (r *GormStockEntryRepository) ListByVariant(variantID uint, limit int) ([]models.StockEntry, error) {
	query := r.db.Where("variant_id = ?", variantID).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var entries []models.StockEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListByOrder 获取订单相关流水
func (r *GormStockEntryRepository) ListByOrder(orderID uint) ([]models.StockEntry, error) {
	var entries []models.StockEntry
	if err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// List 分页查询流水
func (r *GormStockEntryRepository) List(filter StockEntryListFilter) ([]models.StockEntry, int64, error) {
	query := r.db.Model(&models.StockEntry{})
	if filter.VariantID != 0 {
		query = query.Where("variant_id = ?", filter.VariantID)
	}
	if filter.OrderID != 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	query = applyKeyword(query, filter.Keyword, "reference_number", "notes")
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var entries []models.StockEntry
	if err := query.Order("id DESC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
