package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dujiao-next/stockledger/internal/constants"
	"github.com/dujiao-next/stockledger/internal/logger"
	"github.com/dujiao-next/stockledger/internal/models"
	"github.com/dujiao-next/stockledger/internal/repository"
	"github.com/dujiao-next/stockledger/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// ReservationService 购物车结算预占服务，预占数量的唯一写入方
type ReservationService struct {
	cartRepo    repository.CartRepository
	variantRepo repository.VariantRepository
	entryRepo   repository.StockEntryRepository
	notifier    *StockNotifier
	ttl         time.Duration
}

// NewReservationService 创建预占服务
func NewReservationService(cartRepo repository.CartRepository, variantRepo repository.VariantRepository, entryRepo repository.StockEntryRepository, notifier *StockNotifier, ttl time.Duration) *ReservationService {
	if ttl <= 0 {
		ttl = constants.DefaultReservationTTLMinutes * time.Minute
	}
	return &ReservationService{
		cartRepo:    cartRepo,
		variantRepo: variantRepo,
		entryRepo:   entryRepo,
		notifier:    notifier,
		ttl:         ttl,
	}
}

// TTL 预占有效期
func (s *ReservationService) TTL() time.Duration {
	return s.ttl
}

// Reserve 为购物车项预占库存；可售不足时返回 false 且不做任何修改
func (s *ReservationService) Reserve(ctx context.Context, cartItemID uint) (reserved bool, err error) {
	ctx, span := telemetry.StartSpan(ctx, "stock.reserve", attribute.Int64("cart_item_id", int64(cartItemID)))
	defer func() { telemetry.EndSpan(span, err) }()

	fx := newStockEffects()
	err = models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.cartRepo.WithTx(tx).GetByIDForUpdate(cartItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrCartItemNotFound
		}
		reserved, err = s.ReserveTx(tx, fx, item)
		return err
	})
	if err != nil {
		return false, err
	}
	span.SetAttributes(attribute.Bool("reserved", reserved))
	s.notifier.flush(ctx, fx)
	return reserved, nil
}

// ReserveTx 在已有事务内预占，调用方须已锁定购物车项
func (s *ReservationService) ReserveTx(tx *gorm.DB, fx *stockEffects, item *models.CartItem) (bool, error) {
	if item == nil {
		return false, ErrCartItemNotFound
	}
	if item.IsReserved {
		return true, nil
	}
	if item.Quantity <= 0 {
		return false, ErrInvalidQuantity
	}
	variant, err := s.variantRepo.WithTx(tx).GetByIDForUpdate(item.VariantID)
	if err != nil {
		return false, err
	}
	if variant == nil {
		return false, ErrVariantNotFound
	}
	if !variant.IsActive || variant.Available() < item.Quantity {
		return false, nil
	}

	before := repository.StockCounters{Stock: variant.StockQuantity, Reserved: variant.ReservedQuantity}
	after := repository.StockCounters{Stock: variant.StockQuantity, Reserved: variant.ReservedQuantity + item.Quantity}
	if err := s.writeReserved(tx, fx, variant, before, after, constants.StockEntryReserve, fmt.Sprintf("Cart item #%d reserved", item.ID)); err != nil {
		return false, err
	}

	now := time.Now()
	expiresAt := now.Add(s.ttl)
	rows, err := s.cartRepo.WithTx(tx).MarkReserved(item.ID, now, expiresAt)
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, ErrStockConflict
	}
	item.IsReserved = true
	item.ReservedAt = &now
	item.ReservationExpiresAt = &expiresAt
	return true, nil
}

// Release 释放购物车项的预占，未预占时为空操作
func (s *ReservationService) Release(ctx context.Context, cartItemID uint) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "stock.release", attribute.Int64("cart_item_id", int64(cartItemID)))
	defer func() { telemetry.EndSpan(span, err) }()

	fx := newStockEffects()
	err = models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.cartRepo.WithTx(tx).GetByIDForUpdate(cartItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrCartItemNotFound
		}
		_, err = s.ReleaseTx(tx, fx, item)
		return err
	})
	if err != nil {
		return err
	}
	s.notifier.flush(ctx, fx)
	return nil
}

// ReleaseTx 在已有事务内释放预占，返回是否实际释放
// 以购物车项上的预占标记为准：标记已被其他事务清除时不再扣减预占数量。
func (s *ReservationService) ReleaseTx(tx *gorm.DB, fx *stockEffects, item *models.CartItem) (bool, error) {
	if item == nil || !item.IsReserved {
		return false, nil
	}
	rows, err := s.cartRepo.WithTx(tx).ClearReservation(item.ID)
	if err != nil {
		return false, err
	}
	item.IsReserved = false
	item.ReservedAt = nil
	item.ReservationExpiresAt = nil
	if rows == 0 {
		return false, nil
	}

	variant, err := s.variantRepo.WithTx(tx).GetByIDForUpdate(item.VariantID)
	if err != nil {
		return false, err
	}
	if variant == nil {
		return true, nil
	}
	before := repository.StockCounters{Stock: variant.StockQuantity, Reserved: variant.ReservedQuantity}
	after := before
	after.Reserved -= item.Quantity
	if after.Reserved < 0 {
		after.Reserved = 0
	}
	if after.Reserved != before.Reserved {
		if err := s.writeReserved(tx, fx, variant, before, after, constants.StockEntryUnreserve, fmt.Sprintf("Cart item #%d released", item.ID)); err != nil {
			return false, err
		}
	}
	return true, nil
}

// ListExpired 列出已过期仍处于预占状态的购物车项
func (s *ReservationService) ListExpired(ctx context.Context, now time.Time) ([]models.CartItem, error) {
	return s.cartRepo.WithTx(models.DB.WithContext(ctx)).ListExpiredReservations(now, 0)
}

// SweepExpired 逐条释放过期预占，单条失败不影响其余
func (s *ReservationService) SweepExpired(ctx context.Context, now time.Time) (released int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "stock.reservation.sweep")
	defer func() { telemetry.EndSpan(span, err) }()

	items, err := s.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, candidate := range items {
		if ctx.Err() != nil {
			return released, ctx.Err()
		}
		fx := newStockEffects()
		var done bool
		txErr := models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			item, err := s.cartRepo.WithTx(tx).GetByIDForUpdate(candidate.ID)
			if err != nil {
				return err
			}
			if item == nil || !item.ReservationExpired(now) {
				return nil
			}
			done, err = s.ReleaseTx(tx, fx, item)
			return err
		})
		if txErr != nil {
			logger.Ctx(ctx).Warnw("stock_reservation_sweep_item_failed", "cart_item_id", candidate.ID, "error", txErr)
			continue
		}
		s.notifier.flush(ctx, fx)
		if done {
			released++
		}
	}
	span.SetAttributes(attribute.Int("released", released))
	telemetry.Add(ctx, telemetry.Metrics().ReservationsSwept, int64(released))
	if released > 0 {
		logger.Ctx(ctx).Infow("stock_reservation_sweep_done", "released", released, "candidates", len(items))
	}
	return released, nil
}

// writeReserved 写入预占数量并追加预占快照流水
func (s *ReservationService) writeReserved(tx *gorm.DB, fx *stockEffects, variant *models.ProductVariant, before, after repository.StockCounters, kind, notes string) error {
	rows, err := s.variantRepo.WithTx(tx).ApplyCounters(variant.ID, before, after, nil)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrStockConflict
	}
	entry := &models.StockEntry{
		VariantID:      variant.ID,
		Kind:           kind,
		QuantityBefore: before.Stock,
		QuantityAfter:  after.Stock,
		ReservedBefore: before.Reserved,
		ReservedAfter:  after.Reserved,
		Notes:          notes,
	}
	if err := s.entryRepo.WithTx(tx).Create(entry); err != nil {
		return err
	}
	variant.ReservedQuantity = after.Reserved
	fx.emit(entryEvent(entry))
	return nil
}
