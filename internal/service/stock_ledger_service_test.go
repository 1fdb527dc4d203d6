package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dujiao-next/stockledger/internal/constants"

	"github.com/shopspring/decimal"
)

func TestStockLedgerImportUpdatesStockAndCost(t *testing.T) {
	env := setupStockTest(t)
	variant := createTestVariant(t, env.db, "LEDGER-IMPORT", 10, 5, 10)
	cost := decimal.NewFromFloat(12.5)

	change, err := env.ledger.Import(context.Background(), ImportInput{
		VariantID:       variant.ID,
		Quantity:        15,
		CostPerItem:     &cost,
		ReferenceNumber: "PO-1001",
		ActorID:         uintPtr(7),
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if change.Entry.Kind != constants.StockEntryImport || change.Entry.Quantity != 15 {
		t.Fatalf("unexpected entry: %+v", change.Entry)
	}
	if change.Entry.QuantityBefore != 10 || change.Entry.QuantityAfter != 25 {
		t.Fatalf("unexpected snapshots: %+v", change.Entry)
	}

	current := reloadVariant(t, env.db, variant.ID)
	if current.StockQuantity != 25 {
		t.Fatalf("expected stock 25, got %d", current.StockQuantity)
	}
	if !current.CostPrice.Equal(cost) {
		t.Fatalf("expected cost 12.5, got %s", current.CostPrice.String())
	}
	if env.publisher.count(constants.StockEventEntryRecorded) != 1 {
		t.Fatalf("expected one entry event")
	}
}

func TestStockLedgerImportZeroCostKeepsCostPrice(t *testing.T) {
	env := setupStockTest(t)
	variant := createTestVariant(t, env.db, "LEDGER-COST", 0, 5, 10)
	zero := decimal.Zero

	if _, err := env.ledger.Import(context.Background(), ImportInput{VariantID: variant.ID, Quantity: 3, CostPerItem: &zero}); err != nil {
		t.Fatalf("import with zero cost failed: %v", err)
	}
	if _, err := env.ledger.Import(context.Background(), ImportInput{VariantID: variant.ID, Quantity: 3}); err != nil {
		t.Fatalf("import without cost failed: %v", err)
	}
	current := reloadVariant(t, env.db, variant.ID)
	if !current.CostPrice.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("cost price should stay 8, got %s", current.CostPrice.String())
	}
	if current.StockQuantity != 6 {
		t.Fatalf("expected stock 6, got %d", current.StockQuantity)
	}
}

func TestStockLedgerRejectsNonPositiveQuantity(t *testing.T) {
	env := setupStockTest(t)
	variant := createTestVariant(t, env.db, "LEDGER-QTY", 10, 5, 10)
	ctx := context.Background()

	if _, err := env.ledger.Import(ctx, ImportInput{VariantID: variant.ID, Quantity: 0}); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("import 0 expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := env.ledger.Export(ctx, ExportInput{VariantID: variant.ID, Quantity: -1}); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("export -1 expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := env.ledger.Return(ctx, ReturnInput{VariantID: variant.ID, Quantity: 0}); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("return 0 expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := env.ledger.Adjust(ctx, AdjustInput{VariantID: variant.ID, NewQuantity: -3}); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("adjust -3 expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := env.ledger.MarkDamaged(ctx, DamagedInput{VariantID: variant.ID, Quantity: 0}); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("damaged 0 expected ErrInvalidQuantity, got %v", err)
	}
	if entries := variantEntries(t, env.db, variant.ID); len(entries) != 0 {
		t.Fatalf("rejected operations must not write entries, got %d", len(entries))
	}
}

func TestStockLedgerUnknownVariant(t *testing.T) {
	env := setupStockTest(t)
	_, err := env.ledger.Import(context.Background(), ImportInput{VariantID: 999, Quantity: 1})
	if !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected ErrVariantNotFound, got %v", err)
	}
}

func TestStockLedgerExportRespectsReserved(t *testing.T) {
	env := setupStockTest(t)
	variant := createTestVariant(t, env.db, "LEDGER-EXPORT", 10, 2, 3)
	if err := env.db.Model(variant).Update("reserved_quantity", 4).Error; err != nil {
		t.Fatalf("seed reserved failed: %v", err)
	}

	_, err := env.ledger.Export(context.Background(), ExportInput{VariantID: variant.ID, Quantity: 7})
	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 6 || insufficient.Requested != 7 {
		t.Fatalf("unexpected insufficient detail: %+v", insufficient)
	}
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("insufficient error should match sentinel")
	}

	change, err := env.ledger.Export(context.Background(), ExportInput{VariantID: variant.ID, Quantity: 6, OrderID: uintPtr(42)})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if change.Entry.Quantity != -6 || change.Entry.QuantityAfter != 4 {
		t.Fatalf("unexpected export entry: %+v", change.Entry)
	}
	if change.Entry.OrderID == nil || *change.Entry.OrderID != 42 {
		t.Fatalf("export entry should reference order 42")
	}
	current := reloadVariant(t, env.db, variant.ID)
	if current.StockQuantity != 4 || current.ReservedQuantity != 4 || current.Available() != 0 {
		t.Fatalf("unexpected counters: stock=%d reserved=%d", current.StockQuantity, current.ReservedQuantity)
	}
}

func TestStockLedgerDamagedChecksOnHand(t *testing.T) {
	env := setupStockTest(t)
	variant := createTestVariant(t, env.db, "LEDGER-DAMAGED", 5, 1, 2)

	_, err := env.ledger.MarkDamaged(context.Background(), DamagedInput{VariantID: variant.ID, Quantity: 6, Reason: "water"})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	change, err := env.ledger.MarkDamaged(context.Background(), DamagedInput{VariantID: variant.ID, Quantity: 2, Reason: "water"})
	if err != nil {
		t.Fatalf("damaged failed: %v", err)
	}
	if change.Entry.Kind != constants.StockEntryDamaged || change.Entry.Notes != "water" {
		t.Fatalf("unexpected damaged entry: %+v", change.Entry)
	}
	if reloadVariant(t, env.db, variant.ID).StockQuantity != 3 {
		t.Fatalf("expected stock 3 after damage")
	}
}

func TestStockLedgerAdjustDefaultReason(t *testing.T) {
	env := setupStockTest(t)
	variant := createTestVariant(t, env.db, "LEDGER-ADJUST", 8, 2, 4)

	change, err := env.ledger.Adjust(context.Background(), AdjustInput{VariantID: variant.ID, NewQuantity: 12})
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if change.Entry.Quantity != 4 || change.Entry.Notes != "Stock adjusted from 8 to 12" {
		t.Fatalf("unexpected adjust entry: %+v", change.Entry)
	}

	change, err = env.ledger.Adjust(context.Background(), AdjustInput{VariantID: variant.ID, NewQuantity: 12, Reason: "recount"})
	if err != nil {
		t.Fatalf("no-op adjust failed: %v", err)
	}
	if change.Entry.Quantity != 0 || change.Entry.QuantityBefore != 12 {
		t.Fatalf("no-op adjust should still be recorded: %+v", change.Entry)
	}
}

func TestStockLedgerAdjustClampsReserved(t *testing.T) {
	env := setupStockTest(t)
	variant := createTestVariant(t, env.db, "LEDGER-CLAMP", 10, 0, 0)
	if err := env.db.Model(variant).Update("reserved_quantity", 6).Error; err != nil {
		t.Fatalf("seed reserved failed: %v", err)
	}

	if _, err := env.ledger.Adjust(context.Background(), AdjustInput{VariantID: variant.ID, NewQuantity: 4, Reason: "recount"}); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	current := reloadVariant(t, env.db, variant.ID)
	if current.StockQuantity != 4 || current.ReservedQuantity != 4 {
		t.Fatalf("expected stock=4 reserved=4, got stock=%d reserved=%d", current.StockQuantity, current.ReservedQuantity)
	}
	entries := variantEntries(t, env.db, variant.ID)
	if len(entries) != 2 {
		t.Fatalf("expected adjustment plus unreserve, got %d", len(entries))
	}
	if entries[1].Kind != constants.StockEntryUnreserve || entries[1].ReservedChange() != -2 {
		t.Fatalf("unexpected clamp entry: %+v", entries[1])
	}
	if entries[1].ReservedBefore != 6 || entries[1].ReservedAfter != 4 || entries[1].QuantityBefore != 4 || entries[1].QuantityAfter != 4 {
		t.Fatalf("clamp entry should keep on-hand and snapshot reserved: %+v", entries[1])
	}
	assertChainContinuity(t, entries)
}

func TestStockLedgerChainContinuity(t *testing.T) {
	env := setupStockTest(t)
	ctx := context.Background()
	variant := createTestVariant(t, env.db, "LEDGER-CHAIN", 0, 2, 4)

	steps := []func() error{
		func() error { _, err := env.ledger.Import(ctx, ImportInput{VariantID: variant.ID, Quantity: 20}); return err },
		func() error { _, err := env.ledger.Export(ctx, ExportInput{VariantID: variant.ID, Quantity: 5}); return err },
		func() error { _, err := env.ledger.Return(ctx, ReturnInput{VariantID: variant.ID, Quantity: 2}); return err },
		func() error {
			_, err := env.ledger.MarkDamaged(ctx, DamagedInput{VariantID: variant.ID, Quantity: 1})
			return err
		},
		func() error {
			_, err := env.ledger.Adjust(ctx, AdjustInput{VariantID: variant.ID, NewQuantity: 9})
			return err
		},
		func() error { _, err := env.ledger.Export(ctx, ExportInput{VariantID: variant.ID, Quantity: 9}); return err },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}

	entries := variantEntries(t, env.db, variant.ID)
	if len(entries) != len(steps) {
		t.Fatalf("expected %d entries, got %d", len(steps), len(entries))
	}
	assertChainContinuity(t, entries)
	sum := 0
	for _, entry := range entries {
		sum += entry.Quantity
	}
	if sum != 0 || reloadVariant(t, env.db, variant.ID).StockQuantity != 0 {
		t.Fatalf("entry sum should match stock, sum=%d", sum)
	}
}

func TestStockLedgerHistoryNewestFirst(t *testing.T) {
	env := setupStockTest(t)
	ctx := context.Background()
	variant := createTestVariant(t, env.db, "LEDGER-HISTORY", 0, 0, 0)
	for i := 1; i <= 4; i++ {
		if _, err := env.ledger.Import(ctx, ImportInput{VariantID: variant.ID, Quantity: i}); err != nil {
			t.Fatalf("import %d failed: %v", i, err)
		}
	}

	history, err := env.ledger.History(ctx, variant.ID, 3)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}
	if history[0].Quantity != 4 || history[2].Quantity != 2 {
		t.Fatalf("history should be newest first: %+v", history)
	}
	if _, err := env.ledger.History(ctx, 999, 10); !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected ErrVariantNotFound, got %v", err)
	}
}
