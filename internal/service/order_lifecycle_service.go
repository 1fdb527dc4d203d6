package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/stockledger/internal/constants"
	"github.com/dujiao-next/stockledger/internal/events"
	"github.com/dujiao-next/stockledger/internal/logger"
	"github.com/dujiao-next/stockledger/internal/models"
	"github.com/dujiao-next/stockledger/internal/repository"
	"github.com/dujiao-next/stockledger/internal/telemetry"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// TransitionInput 订单状态流转参数
type TransitionInput struct {
	OrderID        uint
	ToStatus       string
	IdempotencyKey string
	ActorID        *uint
}

// TransitionResult 订单状态流转结果
type TransitionResult struct {
	Order                *models.Order `json:"order"`
	FromStatus           string        `json:"from_status"`
	ToStatus             string        `json:"to_status"`
	IdempotencyKey       string        `json:"idempotency_key"`
	Replayed             bool          `json:"replayed"`
	ReturnedItems        int           `json:"returned_items"`
	CompensationFailures int           `json:"compensation_failures"`
}

// AddItemInput 订单追加商品参数
type AddItemInput struct {
	OrderID   uint
	VariantID uint
	Quantity  int
	UnitPrice *decimal.Decimal
	ActorID   *uint
}

// RemoveItemResult 删除订单项结果
type RemoveItemResult struct {
	Item     *models.OrderItem `json:"item"`
	Returned bool              `json:"returned"`
}

// OrderLifecycleService 订单生命周期服务，订单状态与订单项变动时联动库存
type OrderLifecycleService struct {
	orderRepo      repository.OrderRepository
	transitionRepo repository.OrderTransitionRepository
	cartRepo       repository.CartRepository
	variantRepo    repository.VariantRepository
	productRepo    repository.ProductRepository
	ledger         *StockLedgerService
	reservations   *ReservationService
	notifier       *StockNotifier
}

// NewOrderLifecycleService 创建订单生命周期服务
func NewOrderLifecycleService(
	orderRepo repository.OrderRepository,
	transitionRepo repository.OrderTransitionRepository,
	cartRepo repository.CartRepository,
	variantRepo repository.VariantRepository,
	productRepo repository.ProductRepository,
	ledger *StockLedgerService,
	reservations *ReservationService,
	notifier *StockNotifier,
) *OrderLifecycleService {
	return &OrderLifecycleService{
		orderRepo:      orderRepo,
		transitionRepo: transitionRepo,
		cartRepo:       cartRepo,
		variantRepo:    variantRepo,
		productRepo:    productRepo,
		ledger:         ledger,
		reservations:   reservations,
		notifier:       notifier,
	}
}

// GetOrder 获取订单详情
func (s *OrderLifecycleService) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.WithTx(models.DB.WithContext(ctx)).GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders 分页查询订单
func (s *OrderLifecycleService) ListOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	filter.Status = normalizeOrderStatus(filter.Status)
	return s.orderRepo.ListAdmin(filter)
}

// ListTransitions 订单状态流转记录
func (s *OrderLifecycleService) ListTransitions(orderID uint) ([]models.OrderTransition, error) {
	return s.transitionRepo.ListByOrder(orderID)
}

// TransitionStatus 变更订单状态；进入已取消/已退货时逐项回补库存
// 同一幂等键只生效一次，重复调用返回 Replayed=true 且无副作用。
func (s *OrderLifecycleService) TransitionStatus(ctx context.Context, input TransitionInput) (result *TransitionResult, err error) {
	target := normalizeOrderStatus(input.ToStatus)
	if !isValidOrderStatus(target) {
		return nil, ErrInvalidOrderStatus
	}
	ctx, span := telemetry.StartSpan(ctx, "order.transition",
		attribute.Int64("order_id", int64(input.OrderID)),
		attribute.String("to_status", target),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	fx := newStockEffects()
	result = &TransitionResult{ToStatus: target}
	err = models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		transitionRepo := s.transitionRepo.WithTx(tx)

		order, err := orderRepo.GetByIDForUpdate(input.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		from := order.Status
		result.FromStatus = from
		result.Order = order

		key := strings.TrimSpace(input.IdempotencyKey)
		if key == "" {
			key = defaultTransitionKey(order.ID, from, target)
		}
		result.IdempotencyKey = key

		existing, err := transitionRepo.GetByKey(key)
		if err != nil {
			return err
		}
		if existing != nil || from == target {
			result.Replayed = true
			return nil
		}
		if !canTransitionOrder(from, target) {
			return fmt.Errorf("%w: %s -> %s", ErrOrderStatusTransition, from, target)
		}

		transition := &models.OrderTransition{
			OrderID:        order.ID,
			FromStatus:     from,
			ToStatus:       target,
			IdempotencyKey: key,
			ActorID:        input.ActorID,
		}
		if err := transitionRepo.Create(transition); err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{"updated_at": now}
		switch target {
		case constants.OrderStatusCancelled:
			updates["canceled_at"] = now
		case constants.OrderStatusReturned:
			updates["returned_at"] = now
		}
		if err := orderRepo.UpdateStatus(order.ID, target, updates); err != nil {
			return err
		}

		if isStockReturnStatus(target) && !isStockReturnStatus(from) {
			notes := fmt.Sprintf("Order #%d %s by admin", order.ID, target)
			for i := range order.Items {
				if s.compensateItem(ctx, tx, fx, order, &order.Items[i], notes, input.ActorID) {
					result.ReturnedItems++
				} else {
					result.CompensationFailures++
				}
			}
			if err := transitionRepo.UpdateOutcome(transition.ID, result.ReturnedItems, result.CompensationFailures); err != nil {
				return err
			}
		}

		evt := events.New(constants.StockEventOrderStatusChanged)
		evt.OrderID = &order.ID
		evt.FromStatus = from
		evt.ToStatus = target
		evt.ActorID = input.ActorID
		fx.emit(evt)
		return nil
	})
	if err != nil && repository.IsDuplicateKeyError(err) {
		// 并发的同键请求已先行提交
		result.Replayed = true
		result.ReturnedItems = 0
		result.CompensationFailures = 0
		err = nil
	}
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		logger.Ctx(ctx).Infow("order_transition_replayed", "order_id", input.OrderID, "idempotency_key", result.IdempotencyKey)
	} else {
		s.notifier.flush(ctx, fx)
	}
	span.SetAttributes(attribute.Bool("replayed", result.Replayed))

	order, err := s.orderRepo.WithTx(models.DB.WithContext(ctx)).GetByID(input.OrderID)
	if err != nil {
		return nil, err
	}
	result.Order = order
	return result, nil
}

// compensateItem 在保存点内回补单个订单项，失败只记录不中断
func (s *OrderLifecycleService) compensateItem(ctx context.Context, tx *gorm.DB, fx *stockEffects, order *models.Order, item *models.OrderItem, notes string, actorID *uint) bool {
	itemFx := newStockEffects()
	err := tx.Transaction(func(itemTx *gorm.DB) error {
		_, err := s.ledger.ReturnTx(itemTx, itemFx, ReturnInput{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			OrderID:   &order.ID,
			Notes:     notes,
			ActorID:   actorID,
		})
		return err
	})
	if err == nil {
		fx.merge(itemFx)
		return true
	}

	logger.Ctx(ctx).Errorw("order_stock_return_failed",
		"order_id", order.ID,
		"order_item_id", item.ID,
		"variant_id", item.VariantID,
		"quantity", item.Quantity,
		"error", err,
	)
	evt := events.New(constants.StockEventCompensationFailed)
	evt.OrderID = &order.ID
	evt.VariantID = item.VariantID
	evt.Quantity = item.Quantity
	evt.Message = err.Error()
	fx.emit(evt)
	return false
}

// AddItem 追加订单项；订单未终结时同一事务内出库，出库失败则拒绝追加
func (s *OrderLifecycleService) AddItem(ctx context.Context, input AddItemInput) (item *models.OrderItem, err error) {
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	ctx, span := telemetry.StartSpan(ctx, "order.add_item",
		attribute.Int64("order_id", int64(input.OrderID)),
		attribute.Int64("variant_id", int64(input.VariantID)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	fx := newStockEffects()
	err = models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByIDForUpdate(input.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		unitPrice, err := s.resolveUnitPrice(tx, input.VariantID, input.UnitPrice)
		if err != nil {
			return err
		}
		item = &models.OrderItem{
			OrderID:    order.ID,
			VariantID:  input.VariantID,
			Quantity:   input.Quantity,
			UnitPrice:  unitPrice,
			TotalPrice: unitPrice.MulQuantity(input.Quantity),
		}
		if err := orderRepo.CreateItem(item); err != nil {
			return err
		}
		if !isStockReturnStatus(order.Status) {
			if _, err := s.ledger.ExportTx(tx, fx, ExportInput{
				VariantID: input.VariantID,
				Quantity:  input.Quantity,
				OrderID:   &order.ID,
				Notes:     fmt.Sprintf("Order #%d - OrderItem added via Admin", order.ID),
				ActorID:   input.ActorID,
			}); err != nil {
				return err
			}
		}
		return orderRepo.UpdateTotal(order.ID, sumOrderItems(append(order.Items, *item)))
	})
	if err != nil {
		return nil, err
	}
	s.notifier.flush(ctx, fx)
	return item, nil
}

// RemoveItem 删除订单项；订单未终结时回补库存，回补失败只记录
func (s *OrderLifecycleService) RemoveItem(ctx context.Context, orderID, itemID uint, actorID *uint) (result *RemoveItemResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "order.remove_item",
		attribute.Int64("order_id", int64(orderID)),
		attribute.Int64("order_item_id", int64(itemID)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	fx := newStockEffects()
	err = models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByIDForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		item, err := orderRepo.GetItem(orderID, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrOrderItemNotFound
		}
		if err := orderRepo.DeleteItem(item.ID); err != nil {
			return err
		}
		result = &RemoveItemResult{Item: item}
		if !isStockReturnStatus(order.Status) {
			notes := fmt.Sprintf("Order #%d - OrderItem removed via Admin", order.ID)
			result.Returned = s.compensateItem(ctx, tx, fx, order, item, notes, actorID)
		}
		remaining := make([]models.OrderItem, 0, len(order.Items))
		for _, existing := range order.Items {
			if existing.ID != item.ID {
				remaining = append(remaining, existing)
			}
		}
		return orderRepo.UpdateTotal(order.ID, sumOrderItems(remaining))
	})
	if err != nil {
		return nil, err
	}
	s.notifier.flush(ctx, fx)
	return result, nil
}

func (s *OrderLifecycleService) resolveUnitPrice(tx *gorm.DB, variantID uint, override *decimal.Decimal) (models.Money, error) {
	variant, err := s.variantRepo.WithTx(tx).GetByID(variantID)
	if err != nil {
		return models.Money{}, err
	}
	if variant == nil {
		return models.Money{}, ErrVariantNotFound
	}
	if override != nil {
		if override.LessThan(decimal.Zero) {
			return models.Money{}, ErrInvalidPrice
		}
		return models.NewMoneyFromDecimal(*override), nil
	}
	product, err := s.productRepo.WithTx(tx).GetByID(variant.ProductID)
	if err != nil {
		return models.Money{}, err
	}
	if product == nil {
		return models.Money{}, nil
	}
	return product.PriceAmount, nil
}

func sumOrderItems(items []models.OrderItem) models.Money {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalPrice.Decimal)
	}
	return models.NewMoneyFromDecimal(total)
}
