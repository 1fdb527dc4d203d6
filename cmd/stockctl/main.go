package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dujiao-next/stockledger/internal/config"
	"github.com/dujiao-next/stockledger/internal/logger"
	"github.com/dujiao-next/stockledger/internal/models"
	"github.com/dujiao-next/stockledger/internal/provider"
	"github.com/dujiao-next/stockledger/internal/service"

	"github.com/shopspring/decimal"
)

const usage = `用法: stockctl <command> [flags]

命令:
  cleanup-reservations [-dry-run]     释放已过期的购物车预占
  refresh-alerts [-delete-resolved]   按当前库存重建预警
  seed                                写入演示商品与初始库存
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	container := provider.NewContainer(cfg)
	defer container.Close()

	ctx := context.Background()
	var err error
	switch command {
	case "cleanup-reservations":
		err = runCleanupReservations(ctx, stdLog, container, args)
	case "refresh-alerts":
		err = runRefreshAlerts(ctx, stdLog, container, args)
	case "seed":
		err = runSeed(ctx, stdLog, container)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		stdLog.Fatalf("%s failed: %v", command, err)
	}
}

func runCleanupReservations(ctx context.Context, stdLog *log.Logger, c *provider.Container, args []string) error {
	fs := flag.NewFlagSet("cleanup-reservations", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "只列出过期预占，不释放")
	if err := fs.Parse(args); err != nil {
		return err
	}

	now := time.Now()
	if *dryRun {
		items, err := c.ReservationService.ListExpired(ctx, now)
		if err != nil {
			return err
		}
		for _, item := range items {
			expiresAt := "-"
			if item.ReservationExpiresAt != nil {
				expiresAt = item.ReservationExpiresAt.Format(time.RFC3339)
			}
			stdLog.Printf("Expired reservation: cart_item=%d user=%d variant=%d quantity=%d expires_at=%s",
				item.ID, item.UserID, item.VariantID, item.Quantity, expiresAt)
		}
		stdLog.Printf("Found %d expired reservations (dry run)", len(items))
		return nil
	}

	released, err := c.ReservationService.SweepExpired(ctx, now)
	stdLog.Printf("Released %d expired reservations", released)
	return err
}

func runRefreshAlerts(ctx context.Context, stdLog *log.Logger, c *provider.Container, args []string) error {
	fs := flag.NewFlagSet("refresh-alerts", flag.ExitOnError)
	deleteResolved := fs.Bool("delete-resolved", false, "同时删除已处理的历史预警")
	if err := fs.Parse(args); err != nil {
		return err
	}

	stats, err := c.AlertService.Refresh(ctx, service.RefreshOptions{DeleteResolved: *deleteResolved})
	if err != nil {
		return err
	}
	stdLog.Printf("Alert refresh done: evaluated=%d created=%d deleted=%d", stats.Evaluated, stats.Created, stats.Deleted)
	for alertType, count := range stats.ByType {
		stdLog.Printf("  %s: %d", alertType, count)
	}
	return nil
}

type seedVariant struct {
	SKU          string
	Size         string
	Color        string
	InitialStock int
	Cost         int64
}

type seedProduct struct {
	Name     string
	Price    int64
	Variants []seedVariant
}

func runSeed(ctx context.Context, stdLog *log.Logger, c *provider.Container) error {
	products := []seedProduct{
		{
			Name:  "Classic Tee",
			Price: 25,
			Variants: []seedVariant{
				{SKU: "TEE-S-BLACK", Size: "S", Color: "black", InitialStock: 40, Cost: 9},
				{SKU: "TEE-M-BLACK", Size: "M", Color: "black", InitialStock: 8, Cost: 9},
				{SKU: "TEE-L-WHITE", Size: "L", Color: "white", InitialStock: 0, Cost: 9},
			},
		},
		{
			Name:  "Canvas Tote",
			Price: 18,
			Variants: []seedVariant{
				{SKU: "TOTE-NATURAL", Color: "natural", InitialStock: 120, Cost: 5},
			},
		},
		{
			Name:  "Wool Beanie",
			Price: 22,
			Variants: []seedVariant{
				{SKU: "BEANIE-GREY", Color: "grey", InitialStock: 4, Cost: 7},
				{SKU: "BEANIE-NAVY", Color: "navy", InitialStock: 15, Cost: 7},
			},
		},
	}

	for _, p := range products {
		product, err := c.ProductService.CreateProduct(ctx, service.CreateProductInput{
			Name:        p.Name,
			PriceAmount: decimal.NewFromInt(p.Price),
		})
		if err != nil {
			stdLog.Printf("Failed to create product %s: %v", p.Name, err)
			continue
		}
		stdLog.Printf("Created product: %s (#%d)", product.Name, product.ID)

		for _, v := range p.Variants {
			cost := decimal.NewFromInt(v.Cost)
			variant, err := c.ProductService.CreateVariant(ctx, service.CreateVariantInput{
				ProductID:    product.ID,
				SKU:          v.SKU,
				Size:         v.Size,
				Color:        v.Color,
				InitialStock: v.InitialStock,
				CostPrice:    &cost,
			})
			if err != nil {
				stdLog.Printf("Variant already exists or failed: %s: %v", v.SKU, err)
				continue
			}
			stdLog.Printf("Created variant: %s stock=%d", variant.SKU, variant.StockQuantity)
		}
	}
	return nil
}
