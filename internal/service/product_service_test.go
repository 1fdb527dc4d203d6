package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dujiao-next/stockledger/internal/constants"
	"github.com/dujiao-next/stockledger/internal/repository"

	"github.com/shopspring/decimal"
)

func TestProductCreateVariantWithInitialStock(t *testing.T) {
	env := setupStockTest(t)
	ctx := context.Background()

	product, err := env.products.CreateProduct(ctx, CreateProductInput{Name: "  Linen Shirt ", PriceAmount: decimal.NewFromFloat(39.9)})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if product.Name != "Linen Shirt" {
		t.Fatalf("name should be trimmed, got %q", product.Name)
	}

	cost := decimal.NewFromInt(15)
	variant, err := env.products.CreateVariant(ctx, CreateVariantInput{
		ProductID:    product.ID,
		SKU:          "LINEN-M-WHITE",
		Size:         "M",
		Color:        "white",
		InitialStock: 12,
		CostPrice:    &cost,
	})
	if err != nil {
		t.Fatalf("create variant failed: %v", err)
	}
	if variant.MinimumStock != 5 || variant.ReorderPoint != 10 {
		t.Fatalf("expected default thresholds 5/10, got %d/%d", variant.MinimumStock, variant.ReorderPoint)
	}
	if variant.StockQuantity != 12 {
		t.Fatalf("expected stock 12, got %d", variant.StockQuantity)
	}
	entries := variantEntries(t, env.db, variant.ID)
	if len(entries) != 1 || entries[0].Kind != constants.StockEntryImport || entries[0].Notes != "Initial stock" {
		t.Fatalf("initial stock should be recorded as import: %+v", entries)
	}

	if _, err := env.products.CreateVariant(ctx, CreateVariantInput{ProductID: product.ID, SKU: "LINEN-M-WHITE"}); !errors.Is(err, ErrInvalidSKU) {
		t.Fatalf("duplicate sku expected ErrInvalidSKU, got %v", err)
	}
	if _, err := env.products.CreateVariant(ctx, CreateVariantInput{ProductID: 999, SKU: "NOPE"}); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductCreateVariantWithoutStockRaisesAlert(t *testing.T) {
	env := setupStockTest(t)
	ctx := context.Background()
	product, err := env.products.CreateProduct(ctx, CreateProductInput{Name: "Cap", PriceAmount: decimal.NewFromInt(12)})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	variant, err := env.products.CreateVariant(ctx, CreateVariantInput{
		ProductID:    product.ID,
		SKU:          "CAP-ONE",
		MinimumStock: intPtr(0),
		ReorderPoint: intPtr(0),
	})
	if err != nil {
		t.Fatalf("create variant failed: %v", err)
	}
	if variant.MinimumStock != 0 || variant.ReorderPoint != 0 {
		t.Fatalf("explicit zero thresholds must be kept: %+v", variant)
	}
	alerts := unresolvedAlerts(t, env.db, variant.ID)
	if len(alerts) != 1 || alerts[0].AlertType != constants.StockAlertOutOfStock {
		t.Fatalf("empty variant should be out of stock: %+v", alerts)
	}
}

func TestProductValidation(t *testing.T) {
	env := setupStockTest(t)
	ctx := context.Background()
	if _, err := env.products.CreateProduct(ctx, CreateProductInput{Name: " "}); !errors.Is(err, ErrInvalidProductName) {
		t.Fatalf("expected ErrInvalidProductName, got %v", err)
	}
	if _, err := env.products.CreateProduct(ctx, CreateProductInput{Name: "x", PriceAmount: decimal.NewFromInt(-1)}); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if _, err := env.products.CreateVariant(ctx, CreateVariantInput{ProductID: 1, SKU: "A", InitialStock: -1}); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := env.products.CreateVariant(ctx, CreateVariantInput{ProductID: 1, SKU: "A", MinimumStock: intPtr(-2)}); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
}

func TestProductUpdateThresholdsReevaluates(t *testing.T) {
	env := setupStockTest(t)
	ctx := context.Background()
	variant := createTestVariant(t, env.db, "THRESHOLD", 8, 2, 4)

	updated, err := env.products.UpdateThresholds(ctx, variant.ID, repository.VariantThresholdPatch{MinimumStock: intPtr(8)})
	if err != nil {
		t.Fatalf("update thresholds failed: %v", err)
	}
	if updated.MinimumStock != 8 || updated.ReorderPoint != 4 {
		t.Fatalf("unexpected thresholds: %+v", updated)
	}
	alerts := unresolvedAlerts(t, env.db, variant.ID)
	if len(alerts) != 1 || alerts[0].AlertType != constants.StockAlertLowStock || alerts[0].Threshold != 8 {
		t.Fatalf("expected a low stock alert at threshold 8: %+v", alerts)
	}

	availability, err := env.products.GetAvailability(ctx, variant.ID)
	if err != nil {
		t.Fatalf("get availability failed: %v", err)
	}
	if availability.Available != 8 || !availability.IsLowStock {
		t.Fatalf("unexpected availability: %+v", availability)
	}

	deactivated, err := env.products.Deactivate(ctx, variant.ID)
	if err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if deactivated.IsActive {
		t.Fatalf("variant should be inactive")
	}
	if _, err := env.products.UpdateThresholds(ctx, 999, repository.VariantThresholdPatch{}); !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected ErrVariantNotFound, got %v", err)
	}
}
