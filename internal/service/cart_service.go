package service

import (
	"context"

	"github.com/dujiao-next/stockledger/internal/models"
	"github.com/dujiao-next/stockledger/internal/repository"

	"gorm.io/gorm"
)

// UpsertCartItemInput 购物车更新输入
type UpsertCartItemInput struct {
	UserID    uint
	VariantID uint
	Quantity  int
}

// CartService 购物车服务
type CartService struct {
	cartRepo     repository.CartRepository
	variantRepo  repository.VariantRepository
	reservations *ReservationService
	notifier     *StockNotifier
}

// NewCartService 创建购物车服务
func NewCartService(cartRepo repository.CartRepository, variantRepo repository.VariantRepository, reservations *ReservationService, notifier *StockNotifier) *CartService {
	return &CartService{
		cartRepo:     cartRepo,
		variantRepo:  variantRepo,
		reservations: reservations,
		notifier:     notifier,
	}
}

// ListByUser 获取用户购物车
func (s *CartService) ListByUser(userID uint) ([]models.CartItem, error) {
	if userID == 0 {
		return nil, ErrCartItemNotFound
	}
	return s.cartRepo.ListByUser(userID)
}

// UpsertItem 添加或更新购物车项；已预占的项修改数量前先释放预占
func (s *CartService) UpsertItem(ctx context.Context, input UpsertCartItemInput) (*models.CartItem, error) {
	if input.UserID == 0 || input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	fx := newStockEffects()
	item := &models.CartItem{
		UserID:    input.UserID,
		VariantID: input.VariantID,
		Quantity:  input.Quantity,
	}
	err := models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		variant, err := s.variantRepo.WithTx(tx).GetByID(input.VariantID)
		if err != nil {
			return err
		}
		if variant == nil {
			return ErrVariantNotFound
		}
		if !variant.IsActive {
			return ErrVariantInactive
		}
		cartRepo := s.cartRepo.WithTx(tx)
		existing, err := findCartLine(cartRepo, input.UserID, input.VariantID)
		if err != nil {
			return err
		}
		if existing != nil && existing.IsReserved && existing.Quantity != input.Quantity {
			locked, err := cartRepo.GetByIDForUpdate(existing.ID)
			if err != nil {
				return err
			}
			if _, err := s.reservations.ReleaseTx(tx, fx, locked); err != nil {
				return err
			}
		}
		return cartRepo.Upsert(item)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.flush(ctx, fx)
	return item, nil
}

// RemoveItem 删除购物车项，先释放预占
func (s *CartService) RemoveItem(ctx context.Context, userID, cartItemID uint) error {
	fx := newStockEffects()
	err := models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		item, err := cartRepo.GetByIDForUpdate(cartItemID)
		if err != nil {
			return err
		}
		if item == nil || item.UserID != userID {
			return ErrCartItemNotFound
		}
		if _, err := s.reservations.ReleaseTx(tx, fx, item); err != nil {
			return err
		}
		return cartRepo.Delete(item.ID)
	})
	if err != nil {
		return err
	}
	s.notifier.flush(ctx, fx)
	return nil
}

// ReserveAll 为用户购物车全部项预占，返回每项是否预占成功
func (s *CartService) ReserveAll(ctx context.Context, userID uint) (map[uint]bool, error) {
	items, err := s.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}
	result := make(map[uint]bool, len(items))
	for _, item := range items {
		reserved, err := s.reservations.Reserve(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		result[item.ID] = reserved
	}
	return result, nil
}

// ownedItem 校验购物车项归属
func (s *CartService) ownedItem(userID, cartItemID uint) (*models.CartItem, error) {
	item, err := s.cartRepo.GetByID(cartItemID)
	if err != nil {
		return nil, err
	}
	if item == nil || (userID != 0 && item.UserID != userID) {
		return nil, ErrCartItemNotFound
	}
	return item, nil
}

// Reserve 预占单个购物车项
func (s *CartService) Reserve(ctx context.Context, userID, cartItemID uint) (bool, error) {
	if _, err := s.ownedItem(userID, cartItemID); err != nil {
		return false, err
	}
	return s.reservations.Reserve(ctx, cartItemID)
}

// Release 释放单个购物车项的预占
func (s *CartService) Release(ctx context.Context, userID, cartItemID uint) error {
	if _, err := s.ownedItem(userID, cartItemID); err != nil {
		return err
	}
	return s.reservations.Release(ctx, cartItemID)
}

func findCartLine(repo repository.CartRepository, userID, variantID uint) (*models.CartItem, error) {
	items, err := repo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].VariantID == variantID {
			return &items[i], nil
		}
	}
	return nil, nil
}
