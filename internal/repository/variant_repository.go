package repository

import (
	"errors"
	"time"

	"github.com/dujiao-next/stockledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VariantRepository 规格数据访问接口
// 说明：库存计数只能通过 ApplyCounters 修改，不提供通用 Update。
type VariantRepository interface {
	GetByID(id uint) (*models.ProductVariant, error)
	GetByIDForUpdate(id uint) (*models.ProductVariant, error)
	ListByIDs(ids []uint) ([]models.ProductVariant, error)
	List(filter VariantListFilter) ([]models.ProductVariant, int64, error)
	ListActiveIDs() ([]uint, error)
	Create(variant *models.ProductVariant) error
	UpdateThresholds(id uint, patch VariantThresholdPatch) error
	ApplyCounters(id uint, expect, next StockCounters, cost *models.Money) (int64, error)
	WithTx(tx *gorm.DB) VariantRepository
}

// GormVariantRepository GORM 实现
type GormVariantRepository struct {
	db *gorm.DB
}

// NewVariantRepository 创建规格仓库
func NewVariantRepository(db *gorm.DB) *GormVariantRepository {
	return &GormVariantRepository{db: db}
}

// WithTx 绑定事务
func (r *GormVariantRepository) WithTx(tx *gorm.DB) VariantRepository {
	if tx == nil {
		return r
	}
	return &GormVariantRepository{db: tx}
}

// GetByID 根据 ID 获取规格
func (r *GormVariantRepository) GetByID(id uint) (*models.ProductVariant, error) {
	if id == 0 {
		return nil, nil
	}
	var variant models.ProductVariant
	if err := r.db.First(&variant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &variant, nil
}

// GetByIDForUpdate 加行锁获取规格
func (r *GormVariantRepository) GetByIDForUpdate(id uint) (*models.ProductVariant, error) {
	if id == 0 {
		return nil, nil
	}
	var variant models.ProductVariant
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&variant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &variant, nil
}

// ListByIDs 批量获取规格
func (r *GormVariantRepository) ListByIDs(ids []uint) ([]models.ProductVariant, error) {
	if len(ids) == 0 {
		return []models.ProductVariant{}, nil
	}
	var variants []models.ProductVariant
	if err := r.db.Where("id IN ?", ids).Order("id ASC").Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

// List 分页查询规格
func (r *GormVariantRepository) List(filter VariantListFilter) ([]models.ProductVariant, int64, error) {
	query := r.db.Model(&models.ProductVariant{})
	if filter.ProductID != 0 {
		query = query.Where("product_variants.product_id = ?", filter.ProductID)
	}
	if filter.CategoryID != 0 {
		query = query.Joins("JOIN products ON products.id = product_variants.product_id").
			Where("products.category_id = ?", filter.CategoryID)
	}
	if filter.OnlyActive {
		query = query.Where("product_variants.is_active = ?", true)
	}
	query = applyKeyword(query, filter.Keyword, "product_variants.sku", "product_variants.size", "product_variants.color")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var variants []models.ProductVariant
	if err := query.Order("product_variants.id ASC").Find(&variants).Error; err != nil {
		return nil, 0, err
	}
	return variants, total, nil
}

// ListActiveIDs 获取全部启用规格 ID
func (r *GormVariantRepository) ListActiveIDs() ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&models.ProductVariant{}).
		Where("is_active = ?", true).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Create 创建规格
func (r *GormVariantRepository) Create(variant *models.ProductVariant) error {
	if variant == nil {
		return nil
	}
	if variant.StockQuantity < 0 || variant.ReservedQuantity < 0 || variant.ReservedQuantity > variant.StockQuantity {
		return ErrInvalidCounters
	}
	return r.db.Create(variant).Error
}

// UpdateThresholds 更新阈值与启用状态
func (r *GormVariantRepository) UpdateThresholds(id uint, patch VariantThresholdPatch) error {
	updates := map[string]interface{}{}
	if patch.MinimumStock != nil {
		updates["minimum_stock"] = *patch.MinimumStock
	}
	if patch.ReorderPoint != nil {
		updates["reorder_point"] = *patch.ReorderPoint
	}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now()
	return r.db.Model(&models.ProductVariant{}).Where("id = ?", id).Updates(updates).Error
}

// ApplyCounters 以比较并交换的方式写入库存计数，返回受影响行数
func (r *GormVariantRepository) ApplyCounters(id uint, expect, next StockCounters, cost *models.Money) (int64, error) {
	if id == 0 || !next.Valid() {
		return 0, ErrInvalidCounters
	}
	updates := map[string]interface{}{
		"stock_quantity":    next.Stock,
		"reserved_quantity": next.Reserved,
		"updated_at":        time.Now(),
	}
	if cost != nil {
		updates["cost_price"] = *cost
	}
	result := r.db.Model(&models.ProductVariant{}).
		Where("id = ? AND stock_quantity = ? AND reserved_quantity = ?", id, expect.Stock, expect.Reserved).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
