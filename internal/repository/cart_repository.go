package repository

import (
	"errors"
	"time"

	"github.com/dujiao-next/stockledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRepository 购物车数据访问接口
type CartRepository interface {
	GetByID(id uint) (*models.CartItem, error)
	GetByIDForUpdate(id uint) (*models.CartItem, error)
	ListByUser(userID uint) ([]models.CartItem, error)
	ListForCheckout(userID uint, ids []uint) ([]models.CartItem, error)
	ListExpiredReservations(now time.Time, limit int) ([]models.CartItem, error)
	Upsert(item *models.CartItem) error
	MarkReserved(id uint, reservedAt, expiresAt time.Time) (int64, error)
	ClearReservation(id uint) (int64, error)
	Delete(id uint) error
	DeleteByIDs(ids []uint) error
	WithTx(tx *gorm.DB) CartRepository
}

// GormCartRepository GORM 实现
type GormCartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCartRepository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &GormCartRepository{db: tx}
}

// GetByID 根据 ID 获取购物车项
func (r *GormCartRepository) GetByID(id uint) (*models.CartItem, error) {
	if id == 0 {
		return nil, nil
	}
	var item models.CartItem
	if err := r.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// GetByIDForUpdate 加行锁获取购物车项
func (r *GormCartRepository) GetByIDForUpdate(id uint) (*models.CartItem, error) {
	if id == 0 {
		return nil, nil
	}
	var item models.CartItem
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ListByUser 获取用户购物车项
func (r *GormCartRepository) ListByUser(userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.Preload("Variant").Where("user_id = ?", userID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListForCheckout 加行锁获取待结算购物车项，ids 为空时取全部
func (r *GormCartRepository) ListForCheckout(userID uint, ids []uint) ([]models.CartItem, error) {
	query := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	var items []models.CartItem
	if err := query.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListExpiredReservations 获取已过期的预占项
func (r *GormCartRepository) ListExpiredReservations(now time.Time, limit int) ([]models.CartItem, error) {
	query := r.db.Where("is_reserved = ? AND reservation_expires_at < ?", true, now).Order("reservation_expires_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var items []models.CartItem
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Upsert 添加或更新购物车项（已预占的项不允许修改数量）
func (r *GormCartRepository) Upsert(item *models.CartItem) error {
	if item == nil {
		return nil
	}
	var existing models.CartItem
	err := r.db.Where("user_id = ? AND variant_id = ?", item.UserID, item.VariantID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(item).Error
	}
	if err != nil {
		return err
	}
	if existing.IsReserved && existing.Quantity != item.Quantity {
		return ErrCartItemReserved
	}
	if err := r.db.Model(&existing).Updates(map[string]interface{}{
		"quantity":   item.Quantity,
		"updated_at": time.Now(),
	}).Error; err != nil {
		return err
	}
	item.ID = existing.ID
	item.IsReserved = existing.IsReserved
	item.ReservedAt = existing.ReservedAt
	item.ReservationExpiresAt = existing.ReservationExpiresAt
	return nil
}

// MarkReserved 标记预占（仅对未预占项生效）
func (r *GormCartRepository) MarkReserved(id uint, reservedAt, expiresAt time.Time) (int64, error) {
	result := r.db.Model(&models.CartItem{}).
		Where("id = ? AND is_reserved = ?", id, false).
		Updates(map[string]interface{}{
			"is_reserved":            true,
			"reserved_at":            reservedAt,
			"reservation_expires_at": expiresAt,
			"updated_at":             reservedAt,
		})
	return result.RowsAffected, result.Error
}

// ClearReservation 清除预占（仅对已预占项生效）
func (r *GormCartRepository) ClearReservation(id uint) (int64, error) {
	result := r.db.Model(&models.CartItem{}).
		Where("id = ? AND is_reserved = ?", id, true).
		Updates(map[string]interface{}{
			"is_reserved":            false,
			"reserved_at":            nil,
			"reservation_expires_at": nil,
			"updated_at":             time.Now(),
		})
	return result.RowsAffected, result.Error
}

// Delete 删除购物车项
func (r *GormCartRepository) Delete(id uint) error {
	return r.db.Delete(&models.CartItem{}, id).Error
}

// DeleteByIDs 批量删除购物车项
func (r *GormCartRepository) DeleteByIDs(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Where("id IN ?", ids).Delete(&models.CartItem{}).Error
}
