//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/dujiao-next/stockledger/internal/constants"
	"github.com/dujiao-next/stockledger/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	_ = db.Migrator().DropTable(models.AllModels()...)
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(models.AllModels()...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

// exportOnce 在行锁内出库一件，库存不足时返回 false
func exportOnce(db *gorm.DB, variantID uint) (bool, error) {
	exported := false
	err := db.Transaction(func(tx *gorm.DB) error {
		variants := NewVariantRepository(tx)
		variant, err := variants.GetByIDForUpdate(variantID)
		if err != nil || variant == nil {
			return err
		}
		available := variant.StockQuantity - variant.ReservedQuantity
		if available < 1 {
			return nil
		}
		expect := StockCounters{Stock: variant.StockQuantity, Reserved: variant.ReservedQuantity}
		next := StockCounters{Stock: variant.StockQuantity - 1, Reserved: variant.ReservedQuantity}
		affected, err := variants.ApplyCounters(variantID, expect, next, nil)
		if err != nil {
			return err
		}
		if affected != 1 {
			return nil
		}
		if err := NewStockEntryRepository(tx).Create(&models.StockEntry{
			VariantID:      variantID,
			Kind:           constants.StockEntryExport,
			Quantity:       -1,
			QuantityBefore: expect.Stock,
			QuantityAfter:  next.Stock,
		}); err != nil {
			return err
		}
		exported = true
		return nil
	})
	return exported, err
}

func TestPostgresConcurrentExportsNeverOversell(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	variant := createRepoVariant(t, db, "PG-EXPORT", 10, 3)

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := exportOnce(db, variant.ID)
			if err != nil {
				t.Errorf("export failed: %v", err)
				return
			}
			if ok {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if success != 7 {
		t.Fatalf("expected exactly 7 exports, got %d", success)
	}
	current, err := NewVariantRepository(db).GetByID(variant.ID)
	if err != nil || current == nil {
		t.Fatalf("reload variant failed: %v", err)
	}
	if current.StockQuantity != 3 || current.ReservedQuantity != 3 {
		t.Fatalf("unexpected counters: stock=%d reserved=%d", current.StockQuantity, current.ReservedQuantity)
	}

	entries, err := NewStockEntryRepository(db).ListByVariant(variant.ID, 0)
	if err != nil {
		t.Fatalf("list entries failed: %v", err)
	}
	exports := 0
	for _, entry := range entries {
		if entry.Kind == constants.StockEntryExport {
			exports++
		}
	}
	if exports != 7 {
		t.Fatalf("expected 7 export entries, got %d", exports)
	}
}

func TestPostgresVariantKeywordUsesILike(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	createRepoVariant(t, db, "PG-Hoodie-RED", 1, 0)
	createRepoVariant(t, db, "PG-Hoodie-BLUE", 1, 0)

	_, total, err := NewVariantRepository(db).List(VariantListFilter{Keyword: "hoodie-red"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("case-insensitive keyword want 1 got %d", total)
	}
}
