package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dujiao-next/stockledger/internal/constants"
	"github.com/dujiao-next/stockledger/internal/models"
	"github.com/dujiao-next/stockledger/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAlertPriority(t *testing.T) {
	cases := []struct {
		name      string
		stock     int
		reserved  int
		minimum   int
		reorder   int
		wantType  string
		threshold int
		wantAlert bool
	}{
		{name: "out of stock", stock: 0, minimum: 5, reorder: 10, wantType: constants.StockAlertOutOfStock, threshold: 0, wantAlert: true},
		{name: "fully reserved", stock: 4, reserved: 4, minimum: 5, reorder: 10, wantType: constants.StockAlertOutOfStock, threshold: 0, wantAlert: true},
		{name: "low stock", stock: 5, minimum: 5, reorder: 10, wantType: constants.StockAlertLowStock, threshold: 5, wantAlert: true},
		{name: "reorder", stock: 8, minimum: 5, reorder: 10, wantType: constants.StockAlertReorderNeeded, threshold: 10, wantAlert: true},
		{name: "healthy", stock: 11, minimum: 5, reorder: 10},
		{name: "zero thresholds", stock: 1},
	}
	for _, tc := range cases {
		variant := &models.ProductVariant{
			StockQuantity:    tc.stock,
			ReservedQuantity: tc.reserved,
			MinimumStock:     tc.minimum,
			ReorderPoint:     tc.reorder,
		}
		gotType, threshold, ok := classifyAlert(variant)
		if ok != tc.wantAlert || gotType != tc.wantType || threshold != tc.threshold {
			t.Fatalf("%s: got (%s,%d,%v) want (%s,%d,%v)", tc.name, gotType, threshold, ok, tc.wantType, tc.threshold, tc.wantAlert)
		}
	}
}

func TestAlertEvaluateGetOrCreate(t *testing.T) {
	env := setupStockTest(t)
	ctx := context.Background()
	variant := createTestVariant(t, env.db, "ALERT-DEDUP", 3, 5, 10)

	first, err := env.alerts.Evaluate(ctx, variant.ID)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if first == nil || first.AlertType != constants.StockAlertLowStock || first.CurrentQuantity != 3 {
		t.Fatalf("unexpected alert: %+v", first)
	}
	second, err := env.alerts.Evaluate(ctx, variant.ID)
	if err != nil {
		t.Fatalf("second evaluate failed: %v", err)
	}
	if second != nil {
		t.Fatalf("second evaluate must not create a duplicate")
	}
	if got := unresolvedAlerts(t, env.db, variant.ID); len(got) != 1 {
		t.Fatalf("expected 1 unresolved alert, got %d", len(got))
	}
	if _, err := env.alerts.Evaluate(ctx, 999); !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected ErrVariantNotFound, got %v", err)
	}
}

func TestAlertResolveIsIdempotent(t *testing.T) {
	env := setupStockTest(t)
	ctx := context.Background()
	variant := createTestVariant(t, env.db, "ALERT-RESOLVE", 0, 5, 10)
	alert, err := env.alerts.Evaluate(ctx, variant.ID)
	if err != nil || alert == nil {
		t.Fatalf("evaluate failed: alert=%v err=%v", alert, err)
	}

	resolved, err := env.alerts.Resolve(ctx, alert.ID, uintPtr(9))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !resolved.IsResolved || resolved.ResolvedAt == nil || resolved.ResolvedBy == nil || *resolved.ResolvedBy != 9 {
		t.Fatalf("unexpected resolved alert: %+v", resolved)
	}
	firstResolvedAt := *resolved.ResolvedAt

	again, err := env.alerts.Resolve(ctx, alert.ID, uintPtr(10))
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if !again.ResolvedAt.Equal(firstResolvedAt) || *again.ResolvedBy != 9 {
		t.Fatalf("second resolve must not change resolution: %+v", again)
	}
	if _, err := env.alerts.Resolve(ctx, 999, nil); !errors.Is(err, ErrAlertNotFound) {
		t.Fatalf("expected ErrAlertNotFound, got %v", err)
	}
}

func TestAlertListValidatesType(t *testing.T) {
	env := setupStockTest(t)
	if _, _, err := env.alerts.List(repository.StockAlertListFilter{AlertType: "nope"}); !errors.Is(err, ErrInvalidAlertType) {
		t.Fatalf("expected ErrInvalidAlertType, got %v", err)
	}
}

func TestAlertRefreshRebuildsUnresolved(t *testing.T) {
	env := setupStockTest(t)
	ctx := context.Background()
	out := createTestVariant(t, env.db, "REFRESH-OUT", 0, 5, 10)
	low := createTestVariant(t, env.db, "REFRESH-LOW", 4, 5, 10)
	healthy := createTestVariant(t, env.db, "REFRESH-OK", 50, 5, 10)
	inactive := createTestVariant(t, env.db, "REFRESH-OFF", 0, 5, 10)
	if err := env.db.Model(inactive).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	// 过期的未处理预警会被清掉
	stale := &models.StockAlert{VariantID: healthy.ID, AlertType: constants.StockAlertLowStock, CurrentQuantity: 1, Threshold: 5}
	if err := env.db.Create(stale).Error; err != nil {
		t.Fatalf("seed alert failed: %v", err)
	}

	stats, err := env.alerts.Refresh(ctx, RefreshOptions{})
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if stats.Deleted != 1 || stats.Evaluated != 3 || stats.Created != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ByType[constants.StockAlertOutOfStock] != 1 || stats.ByType[constants.StockAlertLowStock] != 1 {
		t.Fatalf("unexpected by-type stats: %+v", stats.ByType)
	}
	if len(unresolvedAlerts(t, env.db, out.ID)) != 1 || len(unresolvedAlerts(t, env.db, low.ID)) != 1 {
		t.Fatalf("expected alerts for out and low variants")
	}
	if len(unresolvedAlerts(t, env.db, healthy.ID)) != 0 || len(unresolvedAlerts(t, env.db, inactive.ID)) != 0 {
		t.Fatalf("healthy and inactive variants must have no alerts")
	}

	counts, err := env.alerts.CountUnresolved()
	if err != nil {
		t.Fatalf("count unresolved failed: %v", err)
	}
	if counts[constants.StockAlertOutOfStock] != 1 || counts[constants.StockAlertLowStock] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestAlertLifecycleFollowsStockMovements(t *testing.T) {
	env := setupStockTest(t)
	ctx := context.Background()
	variant := createTestVariant(t, env.db, "ALERT-FLOW", 10, 5, 8)

	change, err := env.ledger.Export(ctx, ExportInput{VariantID: variant.ID, Quantity: 6})
	require.NoError(t, err)
	require.NotNil(t, change.Alert)
	assert.Equal(t, constants.StockAlertLowStock, change.Alert.AlertType)
	assert.Equal(t, 5, change.Alert.Threshold)
	assert.Equal(t, 4, change.Alert.CurrentQuantity)

	// 继续下降仍低于最低库存，不重复生成同类预警
	change, err = env.ledger.Export(ctx, ExportInput{VariantID: variant.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Nil(t, change.Alert)

	change, err = env.ledger.Export(ctx, ExportInput{VariantID: variant.ID, Quantity: 3})
	require.NoError(t, err)
	require.NotNil(t, change.Alert)
	assert.Equal(t, constants.StockAlertOutOfStock, change.Alert.AlertType)
	assert.Len(t, unresolvedAlerts(t, env.db, variant.ID), 2)

	// 回升但未超过最低库存：只评估，不处理
	change, err = env.ledger.Import(ctx, ImportInput{VariantID: variant.ID, Quantity: 5})
	require.NoError(t, err)
	assert.Zero(t, change.ResolvedAlerts)
	assert.Len(t, unresolvedAlerts(t, env.db, variant.ID), 2)

	change, err = env.ledger.Import(ctx, ImportInput{VariantID: variant.ID, Quantity: 10, ActorID: uintPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), change.ResolvedAlerts)
	assert.Empty(t, unresolvedAlerts(t, env.db, variant.ID))
	assert.Equal(t, 1, env.publisher.count(constants.StockEventAlertsResolved))
	assert.Equal(t, 2, env.publisher.count(constants.StockEventAlertOpened))
}
