package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dujiao-next/stockledger/internal/constants"
	"github.com/dujiao-next/stockledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentExportsNeverOversell(t *testing.T) {
	env := setupStockTest(t)
	variant := createTestVariant(t, env.db, "CONCURRENT-EXPORT", 5, 0, 0)

	const workers = 12
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
		unexpected   []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.Export(context.Background(), ExportInput{VariantID: variant.ID, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientStock):
				insufficient++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, unexpected)
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, workers-5, insufficient)

	current := reloadVariant(t, env.db, variant.ID)
	assert.Equal(t, 0, current.StockQuantity)
	entries := variantEntries(t, env.db, variant.ID)
	assert.Len(t, entries, 5)
	assertChainContinuity(t, entries)
	assert.Len(t, unresolvedAlerts(t, env.db, variant.ID), 1)
}

func TestConcurrentReservationsRespectAvailability(t *testing.T) {
	env := setupStockTest(t)
	variant := createTestVariant(t, env.db, "CONCURRENT-RESERVE", 4, 0, 0)

	const shoppers = 10
	itemIDs := make([]uint, 0, shoppers)
	for i := 0; i < shoppers; i++ {
		itemIDs = append(itemIDs, createTestCartItem(t, env.db, uint(100+i), variant.ID, 1).ID)
	}

	results := make([]bool, shoppers)
	errs := make([]error, shoppers)
	var wg sync.WaitGroup
	for i, id := range itemIDs {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			results[i], errs[i] = env.reservations.Reserve(context.Background(), id)
		}(i, id)
	}
	wg.Wait()

	reserved := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i] {
			reserved++
		}
	}
	assert.Equal(t, 4, reserved)

	current := reloadVariant(t, env.db, variant.ID)
	assert.Equal(t, 4, current.ReservedQuantity)
	assert.Equal(t, 4, current.StockQuantity)
	assert.Zero(t, current.Available())

	entries := variantEntries(t, env.db, variant.ID)
	for _, entry := range entries {
		assert.Equal(t, constants.StockEntryReserve, entry.Kind)
	}
	assertChainContinuity(t, entries)
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	env := setupStockTest(t)
	variant := createTestVariant(t, env.db, "CONCURRENT-CHECKOUT", 5, 0, 0)
	users := []uint{201, 202}
	for _, userID := range users {
		createTestCartItem(t, env.db, userID, variant.ID, 3)
	}

	errs := make([]error, len(users))
	var wg sync.WaitGroup
	for i, userID := range users {
		wg.Add(1)
		go func(i int, userID uint) {
			defer wg.Done()
			_, errs[i] = env.orders.CheckoutFromCart(context.Background(), CheckoutInput{UserID: userID})
		}(i, userID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)

	current := reloadVariant(t, env.db, variant.ID)
	assert.Equal(t, 2, current.StockQuantity)
	assert.Zero(t, current.ReservedQuantity)

	var orders int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&orders).Error)
	assert.EqualValues(t, 1, orders)

	entries := variantEntries(t, env.db, variant.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, constants.StockEntryExport, entries[0].Kind)
	assert.Equal(t, -3, entries[0].Quantity)
}

func TestConcurrentCheckoutKeepsOtherHolds(t *testing.T) {
	env := setupStockTest(t)
	ctx := context.Background()
	variant := createTestVariant(t, env.db, "CONCURRENT-HOLDS", 10, 0, 0)
	mine := createTestCartItem(t, env.db, 301, variant.ID, 3)
	other := createTestCartItem(t, env.db, 302, variant.ID, 2)
	for _, id := range []uint{mine.ID, other.ID} {
		ok, err := env.reservations.Reserve(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		checkouts int
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.orders.CheckoutFromCart(ctx, CheckoutInput{UserID: 301})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				checkouts++
				return
			}
			assert.ErrorIs(t, err, ErrCartEmpty)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := env.reservations.Release(ctx, mine.ID); err != nil {
			assert.ErrorIs(t, err, ErrCartItemNotFound)
		}
	}()
	wg.Wait()

	assert.Equal(t, 1, checkouts)
	current := reloadVariant(t, env.db, variant.ID)
	assert.Equal(t, 7, current.StockQuantity)
	assert.Equal(t, 2, current.ReservedQuantity, "the other shopper's hold must survive")
	assertChainContinuity(t, variantEntries(t, env.db, variant.ID))
}

func TestImportThenExportRoundTrip(t *testing.T) {
	env := setupStockTest(t)
	ctx := context.Background()
	variant := createTestVariant(t, env.db, "ROUND-TRIP", 7, 0, 0)

	_, err := env.ledger.Import(ctx, ImportInput{VariantID: variant.ID, Quantity: 12})
	require.NoError(t, err)
	_, err = env.ledger.Export(ctx, ExportInput{VariantID: variant.ID, Quantity: 12})
	require.NoError(t, err)

	assert.Equal(t, 7, reloadVariant(t, env.db, variant.ID).StockQuantity)
	entries := variantEntries(t, env.db, variant.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, 12, entries[0].Quantity)
	assert.Equal(t, -12, entries[1].Quantity)
	assert.Equal(t, entries[0].QuantityBefore, entries[1].QuantityAfter)
	assertChainContinuity(t, entries)
}

func TestReservationEntriesShareOnHandChain(t *testing.T) {
	env := setupStockTest(t)
	ctx := context.Background()
	variant := createTestVariant(t, env.db, "SHARED-CHAIN", 0, 0, 0)
	item := createTestCartItem(t, env.db, 401, variant.ID, 2)

	_, err := env.ledger.Import(ctx, ImportInput{VariantID: variant.ID, Quantity: 10})
	require.NoError(t, err)
	ok, err := env.reservations.Reserve(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = env.ledger.Export(ctx, ExportInput{VariantID: variant.ID, Quantity: 1})
	require.NoError(t, err)

	entries := variantEntries(t, env.db, variant.ID)
	require.Len(t, entries, 3)
	assert.Equal(t, constants.StockEntryReserve, entries[1].Kind)
	assert.Equal(t, 10, entries[1].QuantityBefore)
	assert.Equal(t, 10, entries[1].QuantityAfter)
	assert.Equal(t, 2, entries[1].ReservedChange())
	assert.Equal(t, 9, entries[2].QuantityAfter)
	assert.Equal(t, 2, entries[2].ReservedAfter)
	assertChainContinuity(t, entries)
}
