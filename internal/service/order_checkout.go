package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/dujiao-next/stockledger/internal/constants"
	"github.com/dujiao-next/stockledger/internal/models"
	"github.com/dujiao-next/stockledger/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// CheckoutInput 购物车结算参数
type CheckoutInput struct {
	UserID      uint
	CartItemIDs []uint // 为空时结算全部购物车项
	Notes       string
	ActorID     *uint
}

// CheckoutFromCart 购物车结算下单
// 单事务完成：释放预占、创建订单项、出库、清空购物车；任一出库失败整体回滚。
func (s *OrderLifecycleService) CheckoutFromCart(ctx context.Context, input CheckoutInput) (order *models.Order, err error) {
	if input.UserID == 0 {
		return nil, ErrCartEmpty
	}
	ctx, span := telemetry.StartSpan(ctx, "order.checkout", attribute.Int64("user_id", int64(input.UserID)))
	defer func() { telemetry.EndSpan(span, err) }()

	fx := newStockEffects()
	err = models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		// 锁定购物车项后读取，已被并发结算删除的项不会出现
		lines, err := cartRepo.ListForCheckout(input.UserID, input.CartItemIDs)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrCartEmpty
		}
		// 按规格 ID 加锁，避免并发结算死锁
		sort.Slice(lines, func(i, j int) bool { return lines[i].VariantID < lines[j].VariantID })

		order = &models.Order{
			OrderNo: generateOrderNo(),
			UserID:  input.UserID,
			Status:  constants.OrderStatusPending,
			Notes:   strings.TrimSpace(input.Notes),
		}
		if err := orderRepo.Create(order, nil); err != nil {
			return err
		}

		notes := fmt.Sprintf("Order #%d - Customer checkout via Admin", order.ID)
		items := make([]models.OrderItem, 0, len(lines))
		lineIDs := make([]uint, 0, len(lines))
		for i := range lines {
			line := &lines[i]
			if line.Quantity <= 0 {
				return ErrInvalidQuantity
			}
			if _, err := s.reservations.ReleaseTx(tx, fx, line); err != nil {
				return err
			}
			unitPrice, err := s.resolveUnitPrice(tx, line.VariantID, nil)
			if err != nil {
				return err
			}
			item := models.OrderItem{
				OrderID:    order.ID,
				VariantID:  line.VariantID,
				Quantity:   line.Quantity,
				UnitPrice:  unitPrice,
				TotalPrice: unitPrice.MulQuantity(line.Quantity),
			}
			if err := orderRepo.CreateItem(&item); err != nil {
				return err
			}
			if _, err := s.ledger.ExportTx(tx, fx, ExportInput{
				VariantID: line.VariantID,
				Quantity:  line.Quantity,
				OrderID:   &order.ID,
				Notes:     notes,
				ActorID:   input.ActorID,
			}); err != nil {
				return err
			}
			items = append(items, item)
			lineIDs = append(lineIDs, line.ID)
		}

		if err := cartRepo.DeleteByIDs(lineIDs); err != nil {
			return err
		}
		order.TotalAmount = sumOrderItems(items)
		order.Items = items
		return orderRepo.UpdateTotal(order.ID, order.TotalAmount)
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order_id", int64(order.ID)))
	s.notifier.flush(ctx, fx)
	return order, nil
}

func generateOrderNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("SO%s%s", now, randNumeric(6))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(n.String())
	}
	return b.String()
}
