package repository

import (
	"errors"
	"time"

	"github.com/dujiao-next/stockledger/internal/models"

	"gorm.io/gorm"
)

// StockAlertRepository 库存预警数据访问接口
type StockAlertRepository interface {
	GetByID(id uint) (*models.StockAlert, error)
	FindUnresolved(variantID uint, alertType string) (*models.StockAlert, error)
	Create(alert *models.StockAlert) error
	ResolveByVariant(variantID uint, actorID *uint, at time.Time) (int64, error)
	ResolveByID(id uint, actorID *uint, at time.Time) (int64, error)
	DeleteUnresolved() (int64, error)
	DeleteAll() (int64, error)
	List(filter StockAlertListFilter) ([]models.StockAlert, int64, error)
	CountUnresolvedByType() (map[string]int64, error)
	WithTx(tx *gorm.DB) StockAlertRepository
}

// GormStockAlertRepository GORM 实现
type GormStockAlertRepository struct {
	db *gorm.DB
}

// NewStockAlertRepository 创建库存预警仓库
func NewStockAlertRepository(db *gorm.DB) *GormStockAlertRepository {
	return &GormStockAlertRepository{db: db}
}

// WithTx 绑定事务
func (r *GormStockAlertRepository) WithTx(tx *gorm.DB) StockAlertRepository {
	if tx == nil {
		return r
	}
	return &GormStockAlertRepository{db: tx}
}

// GetByID 根据 ID 获取预警
func (r *GormStockAlertRepository) GetByID(id uint) (*models.StockAlert, error) {
	if id == 0 {
		return nil, nil
	}
	var alert models.StockAlert
	if err := r.db.First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

// FindUnresolved 获取规格指定类型的未处理预警
// 每次库存变动都会查询，未命中是常态，不走 First 以免记录未找到日志
func (r *GormStockAlertRepository) FindUnresolved(variantID uint, alertType string) (*models.StockAlert, error) {
	var alert models.StockAlert
	result := r.db.Where("variant_id = ? AND alert_type = ? AND is_resolved = ?", variantID, alertType, false).
		Order("id ASC").
		Limit(1).
		Find(&alert)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &alert, nil
}

// Create 创建预警
func (r *GormStockAlertRepository) Create(alert *models.StockAlert) error {
	if alert == nil {
		return nil
	}
	return r.db.Create(alert).Error
}

// ResolveByVariant 处理规格全部未处理预警
func (r *GormStockAlertRepository) ResolveByVariant(variantID uint, actorID *uint, at time.Time) (int64, error) {
	result := r.db.Model(&models.StockAlert{}).
		Where("variant_id = ? AND is_resolved = ?", variantID, false).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_at": at,
			"resolved_by": actorID,
			"updated_at":  at,
		})
	return result.RowsAffected, result.Error
}

// ResolveByID 处理单条预警，已处理的不会被覆盖
func (r *GormStockAlertRepository) ResolveByID(id uint, actorID *uint, at time.Time) (int64, error) {
	result := r.db.Model(&models.StockAlert{}).
		Where("id = ? AND is_resolved = ?", id, false).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_at": at,
			"resolved_by": actorID,
			"updated_at":  at,
		})
	return result.RowsAffected, result.Error
}

// DeleteUnresolved 删除全部未处理预警
func (r *GormStockAlertRepository) DeleteUnresolved() (int64, error) {
	result := r.db.Where("is_resolved = ?", false).Delete(&models.StockAlert{})
	return result.RowsAffected, result.Error
}

// DeleteAll 删除全部预警
func (r *GormStockAlertRepository) DeleteAll() (int64, error) {
	result := r.db.Where("1 = 1").Delete(&models.StockAlert{})
	return result.RowsAffected, result.Error
}

// List 分页查询预警
func (r *GormStockAlertRepository) List(filter StockAlertListFilter) ([]models.StockAlert, int64, error) {
	query := r.db.Model(&models.StockAlert{})
	if filter.VariantID != 0 {
		query = query.Where("variant_id = ?", filter.VariantID)
	}
	if filter.AlertType != "" {
		query = query.Where("alert_type = ?", filter.AlertType)
	}
	if filter.IsResolved != nil {
		query = query.Where("is_resolved = ?", *filter.IsResolved)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var alerts []models.StockAlert
	if err := query.Preload("Variant").Order("id DESC").Find(&alerts).Error; err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// CountUnresolvedByType 按类型统计未处理预警
func (r *GormStockAlertRepository) CountUnresolvedByType() (map[string]int64, error) {
	var rows []struct {
		AlertType string
		Total     int64
	}
	if err := r.db.Model(&models.StockAlert{}).
		Select("alert_type, COUNT(*) AS total").
		Where("is_resolved = ?", false).
		Group("alert_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.AlertType] = row.Total
	}
	return result, nil
}
