package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dujiao-next/stockledger/internal/constants"
	"github.com/dujiao-next/stockledger/internal/events"
	"github.com/dujiao-next/stockledger/internal/models"
	"github.com/dujiao-next/stockledger/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evts ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evts...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, evt := range p.events {
		if evt.Type == eventType {
			n++
		}
	}
	return n
}

type stockTestEnv struct {
	db           *gorm.DB
	publisher    *recordingPublisher
	alerts       *AlertService
	ledger       *StockLedgerService
	reservations *ReservationService
	orders       *OrderLifecycleService
	products     *ProductService
	carts        *CartService
	reports      *InventoryReportService
}

func setupStockTest(t *testing.T) *stockTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:stock_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.UseDB(db, models.DriverSQLite)

	variantRepo := repository.NewVariantRepository(db)
	entryRepo := repository.NewStockEntryRepository(db)
	alertRepo := repository.NewStockAlertRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	transitionRepo := repository.NewOrderTransitionRepository(db)
	productRepo := repository.NewProductRepository(db)

	publisher := &recordingPublisher{}
	notifier := NewStockNotifier(nil, publisher)
	alerts := NewAlertService(alertRepo, variantRepo, notifier)
	ledger := NewStockLedgerService(variantRepo, entryRepo, alerts, notifier, constants.DefaultStockHistoryLimit)
	reservations := NewReservationService(cartRepo, variantRepo, entryRepo, notifier, 30*time.Minute)

	return &stockTestEnv{
		db:           db,
		publisher:    publisher,
		alerts:       alerts,
		ledger:       ledger,
		reservations: reservations,
		orders:       NewOrderLifecycleService(orderRepo, transitionRepo, cartRepo, variantRepo, productRepo, ledger, reservations, notifier),
		products:     NewProductService(productRepo, variantRepo, ledger, alerts, nil, notifier),
		carts:        NewCartService(cartRepo, variantRepo, reservations, notifier),
		reports:      NewInventoryReportService(repository.NewReportRepository(sqlDB, models.DriverSQLite)),
	}
}

// createTestVariant 直接写库创建规格，绕开入库流水
func createTestVariant(t *testing.T, db *gorm.DB, sku string, stock, minimum, reorder int) *models.ProductVariant {
	t.Helper()
	product := &models.Product{
		Name:        "product-" + sku,
		PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
		IsActive:    true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	variant := &models.ProductVariant{
		ProductID:     product.ID,
		SKU:           sku,
		Size:          "M",
		Color:         "black",
		StockQuantity: stock,
		MinimumStock:  minimum,
		ReorderPoint:  reorder,
		CostPrice:     models.NewMoneyFromDecimal(decimal.NewFromInt(8)),
		IsActive:      true,
	}
	if err := db.Create(variant).Error; err != nil {
		t.Fatalf("create variant failed: %v", err)
	}
	return variant
}

func createTestCartItem(t *testing.T, db *gorm.DB, userID, variantID uint, quantity int) *models.CartItem {
	t.Helper()
	item := &models.CartItem{UserID: userID, VariantID: variantID, Quantity: quantity}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("create cart item failed: %v", err)
	}
	return item
}

func createTestOrder(t *testing.T, db *gorm.DB, status string, items ...models.OrderItem) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNo: generateOrderNo(),
		UserID:  1,
		Status:  status,
	}
	if err := repository.NewOrderRepository(db).Create(order, items); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func reloadVariant(t *testing.T, db *gorm.DB, id uint) *models.ProductVariant {
	t.Helper()
	var variant models.ProductVariant
	if err := db.First(&variant, id).Error; err != nil {
		t.Fatalf("reload variant failed: %v", err)
	}
	return &variant
}

func variantEntries(t *testing.T, db *gorm.DB, variantID uint) []models.StockEntry {
	t.Helper()
	var entries []models.StockEntry
	if err := db.Where("variant_id = ?", variantID).Order("id ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load entries failed: %v", err)
	}
	return entries
}

func unresolvedAlerts(t *testing.T, db *gorm.DB, variantID uint) []models.StockAlert {
	t.Helper()
	var alerts []models.StockAlert
	if err := db.Where("variant_id = ? AND is_resolved = ?", variantID, false).Order("id ASC").Find(&alerts).Error; err != nil {
		t.Fatalf("load alerts failed: %v", err)
	}
	return alerts
}

// assertChainContinuity 同一规格全部流水的在库与预占快照均首尾相接
func assertChainContinuity(t *testing.T, entries []models.StockEntry) {
	t.Helper()
	for i := range entries {
		entry := entries[i]
		if entry.QuantityAfter-entry.QuantityBefore != entry.Quantity {
			t.Fatalf("entry %d delta mismatch: %+v", entry.ID, entry)
		}
		if entry.TracksReserved() && entry.Quantity != 0 {
			t.Fatalf("reservation entry %d must not move on-hand: %+v", entry.ID, entry)
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if prev.QuantityAfter != entry.QuantityBefore {
			t.Fatalf("on-hand chain broken between %d (%d) and %d (%d)", prev.ID, prev.QuantityAfter, entry.ID, entry.QuantityBefore)
		}
		if prev.ReservedAfter != entry.ReservedBefore {
			t.Fatalf("reserved chain broken between %d (%d) and %d (%d)", prev.ID, prev.ReservedAfter, entry.ID, entry.ReservedBefore)
		}
	}
}

func uintPtr(v uint) *uint {
	return &v
}

func intPtr(v int) *int {
	return &v
}
