package service

import (
	"context"
	"testing"

	"github.com/dujiao-next/stockledger/internal/constants"
	"github.com/dujiao-next/stockledger/internal/models"
)

func TestCanTransitionOrder(t *testing.T) {
	cases := []struct {
		from string
		to   string
		want bool
	}{
		{constants.OrderStatusPending, constants.OrderStatusProcessing, true},
		{constants.OrderStatusProcessing, constants.OrderStatusShipped, true},
		{constants.OrderStatusShipped, constants.OrderStatusDelivered, true},
		{constants.OrderStatusPending, constants.OrderStatusCancelled, true},
		{constants.OrderStatusPending, constants.OrderStatusReturned, true},
		{constants.OrderStatusProcessing, constants.OrderStatusReturned, true},
		{constants.OrderStatusShipped, constants.OrderStatusCancelled, true},
		{constants.OrderStatusDelivered, constants.OrderStatusCancelled, true},
		{constants.OrderStatusDelivered, constants.OrderStatusReturned, true},
		{constants.OrderStatusPending, constants.OrderStatusDelivered, false},
		{constants.OrderStatusDelivered, constants.OrderStatusShipped, false},
		{constants.OrderStatusCancelled, constants.OrderStatusReturned, false},
		{constants.OrderStatusCancelled, constants.OrderStatusPending, false},
		{constants.OrderStatusReturned, constants.OrderStatusCancelled, false},
	}
	for _, tc := range cases {
		if got := canTransitionOrder(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: want %v got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestOrderStockReturnFromAnyActiveStatus(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{constants.OrderStatusShipped, constants.OrderStatusCancelled},
		{constants.OrderStatusProcessing, constants.OrderStatusReturned},
		{constants.OrderStatusPending, constants.OrderStatusReturned},
		{constants.OrderStatusDelivered, constants.OrderStatusCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.from+"_"+tc.to, func(t *testing.T) {
			env := setupStockTest(t)
			variant := createTestVariant(t, env.db, "ORDER-ANY-"+tc.from+"-"+tc.to, 4, 0, 0)
			order := createTestOrder(t, env.db, tc.from, models.OrderItem{VariantID: variant.ID, Quantity: 2})

			result, err := env.orders.TransitionStatus(context.Background(), TransitionInput{OrderID: order.ID, ToStatus: tc.to})
			if err != nil {
				t.Fatalf("transition failed: %v", err)
			}
			if result.ReturnedItems != 1 || result.Order.Status != tc.to {
				t.Fatalf("unexpected outcome: %+v", result)
			}
			if got := reloadVariant(t, env.db, variant.ID).StockQuantity; got != 6 {
				t.Fatalf("expected stock 6 after return, got %d", got)
			}
		})
	}
}
