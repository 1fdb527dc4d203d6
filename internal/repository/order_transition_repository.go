package repository

import (
	"github.com/dujiao-next/stockledger/internal/models"

	"gorm.io/gorm"
)

// OrderTransitionRepository 订单状态流转（幂等键）数据访问接口
type OrderTransitionRepository interface {
	GetByKey(key string) (*models.OrderTransition, error)
	Create(transition *models.OrderTransition) error
	UpdateOutcome(id uint, returned, failed int) error
	ListByOrder(orderID uint) ([]models.OrderTransition, error)
	WithTx(tx *gorm.DB) OrderTransitionRepository
}

// GormOrderTransitionRepository GORM 实现
type GormOrderTransitionRepository struct {
	db *gorm.DB
}

// NewOrderTransitionRepository 创建订单流转仓库
func NewOrderTransitionRepository(db *gorm.DB) *GormOrderTransitionRepository {
	return &GormOrderTransitionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderTransitionRepository) WithTx(tx *gorm.DB) OrderTransitionRepository {
	if tx == nil {
		return r
	}
	return &GormOrderTransitionRepository{db: tx}
}

// GetByKey 按幂等键获取
func (r *GormOrderTransitionRepository) GetByKey(key string) (*models.OrderTransition, error) {
	if key == "" {
		return nil, nil
	}
	var transition models.OrderTransition
	result := r.db.Where("idempotency_key = ?", key).Limit(1).Find(&transition)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &transition, nil
}

// Create 写入流转记录
func (r *GormOrderTransitionRepository) Create(transition *models.OrderTransition) error {
	if transition == nil {
		return nil
	}
	return r.db.Create(transition).Error
}

// UpdateOutcome 回写库存回补结果
func (r *GormOrderTransitionRepository) UpdateOutcome(id uint, returned, failed int) error {
	return r.db.Model(&models.OrderTransition{}).Where("id = ?", id).Updates(map[string]interface{}{
		"returned_items": returned,
		"failed_items":   failed,
	}).Error
}

// ListByOrder 获取订单流转历史
func (r *GormOrderTransitionRepository) ListByOrder(orderID uint) ([]models.OrderTransition, error) {
	var transitions []models.OrderTransition
	if err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&transitions).Error; err != nil {
		return nil, err
	}
	return transitions, nil
}
