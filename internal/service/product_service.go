package service

import (
	"context"
	"strings"
	"time"

	"github.com/dujiao-next/stockledger/internal/cache"
	"github.com/dujiao-next/stockledger/internal/logger"
	"github.com/dujiao-next/stockledger/internal/models"
	"github.com/dujiao-next/stockledger/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateProductInput 创建商品输入
type CreateProductInput struct {
	CategoryID  uint
	Name        string
	PriceAmount decimal.Decimal
}

// CreateVariantInput 创建规格输入
type CreateVariantInput struct {
	ProductID    uint
	SKU          string
	Size         string
	Color        string
	InitialStock int
	MinimumStock *int
	ReorderPoint *int
	CostPrice    *decimal.Decimal
	ActorID      *uint
}

// ProductService 商品与规格服务
// 说明：规格库存计数不在此修改，初始库存通过库存流水入库。
type ProductService struct {
	productRepo  repository.ProductRepository
	variantRepo  repository.VariantRepository
	ledger       *StockLedgerService
	alerts       *AlertService
	availability AvailabilityCache
	notifier     *StockNotifier
}

// NewProductService 创建商品服务
func NewProductService(productRepo repository.ProductRepository, variantRepo repository.VariantRepository, ledger *StockLedgerService, alerts *AlertService, availability AvailabilityCache, notifier *StockNotifier) *ProductService {
	return &ProductService{
		productRepo:  productRepo,
		variantRepo:  variantRepo,
		ledger:       ledger,
		alerts:       alerts,
		availability: availability,
		notifier:     notifier,
	}
}

// CreateProduct 创建商品
func (s *ProductService) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidProductName
	}
	if input.PriceAmount.LessThan(decimal.Zero) {
		return nil, ErrInvalidPrice
	}
	product := &models.Product{
		CategoryID:  input.CategoryID,
		Name:        name,
		PriceAmount: models.NewMoneyFromDecimal(input.PriceAmount),
		IsActive:    true,
	}
	if err := s.productRepo.WithTx(models.DB.WithContext(ctx)).Create(product); err != nil {
		return nil, err
	}
	return product, nil
}

// GetProduct 获取商品（含规格）
func (s *ProductService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	product, err := s.productRepo.WithTx(models.DB.WithContext(ctx)).GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// CreateVariant 创建规格；初始库存以入库流水写入
func (s *ProductService) CreateVariant(ctx context.Context, input CreateVariantInput) (*models.ProductVariant, error) {
	sku := strings.TrimSpace(input.SKU)
	if sku == "" {
		return nil, ErrInvalidSKU
	}
	if input.InitialStock < 0 {
		return nil, ErrInvalidQuantity
	}
	if (input.MinimumStock != nil && *input.MinimumStock < 0) || (input.ReorderPoint != nil && *input.ReorderPoint < 0) {
		return nil, ErrInvalidThreshold
	}

	fx := newStockEffects()
	var variant *models.ProductVariant
	err := models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.productRepo.WithTx(tx).GetByID(input.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return ErrProductNotFound
		}
		variant = &models.ProductVariant{
			ProductID:    product.ID,
			SKU:          sku,
			Size:         strings.TrimSpace(input.Size),
			Color:        strings.TrimSpace(input.Color),
			MinimumStock: 5,
			ReorderPoint: 10,
			IsActive:     true,
		}
		if input.MinimumStock != nil {
			variant.MinimumStock = *input.MinimumStock
		}
		if input.ReorderPoint != nil {
			variant.ReorderPoint = *input.ReorderPoint
		}
		if input.CostPrice != nil {
			variant.CostPrice = models.NewMoneyFromDecimal(*input.CostPrice)
		}
		if err := s.variantRepo.WithTx(tx).Create(variant); err != nil {
			if repository.IsDuplicateKeyError(err) {
				return ErrInvalidSKU
			}
			return err
		}

		if input.InitialStock > 0 {
			change, err := s.ledger.ImportTx(tx, fx, ImportInput{
				VariantID:   variant.ID,
				Quantity:    input.InitialStock,
				CostPerItem: input.CostPrice,
				Notes:       "Initial stock",
				ActorID:     input.ActorID,
			})
			if err != nil {
				return err
			}
			variant = change.Variant
			return nil
		}
		_, err = s.alerts.EvaluateTx(tx, fx, variant)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifier.flush(ctx, fx)
	return variant, nil
}

// GetVariant 获取规格
func (s *ProductService) GetVariant(ctx context.Context, id uint) (*models.ProductVariant, error) {
	variant, err := s.variantRepo.WithTx(models.DB.WithContext(ctx)).GetByID(id)
	if err != nil {
		return nil, err
	}
	if variant == nil {
		return nil, ErrVariantNotFound
	}
	return variant, nil
}

// ListVariants 分页查询规格
func (s *ProductService) ListVariants(filter repository.VariantListFilter) ([]models.ProductVariant, int64, error) {
	return s.variantRepo.List(filter)
}

// GetAvailability 查询可售数量，优先读缓存
func (s *ProductService) GetAvailability(ctx context.Context, id uint) (*cache.VariantAvailability, error) {
	if s.availability != nil {
		snapshot, hit, err := s.availability.GetAvailability(ctx, id)
		if err != nil {
			logger.Ctx(ctx).Warnw("stock_availability_cache_get_failed", "variant_id", id, "error", err)
		} else if hit {
			return snapshot, nil
		}
	}
	variant, err := s.GetVariant(ctx, id)
	if err != nil {
		return nil, err
	}
	snapshot := buildAvailability(variant)
	if s.availability != nil {
		if err := s.availability.SetAvailability(ctx, *snapshot); err != nil {
			logger.Ctx(ctx).Warnw("stock_availability_cache_set_failed", "variant_id", id, "error", err)
		}
	}
	return snapshot, nil
}

// UpdateThresholds 更新规格阈值并重新评估预警
func (s *ProductService) UpdateThresholds(ctx context.Context, id uint, patch repository.VariantThresholdPatch) (*models.ProductVariant, error) {
	if (patch.MinimumStock != nil && *patch.MinimumStock < 0) || (patch.ReorderPoint != nil && *patch.ReorderPoint < 0) {
		return nil, ErrInvalidThreshold
	}
	fx := newStockEffects()
	var variant *models.ProductVariant
	err := models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.variantRepo.WithTx(tx)
		current, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrVariantNotFound
		}
		if err := repo.UpdateThresholds(id, patch); err != nil {
			return err
		}
		variant, err = repo.GetByID(id)
		if err != nil {
			return err
		}
		if variant == nil {
			return ErrVariantNotFound
		}
		fx.touch(variant.ID)
		if !variant.IsActive {
			return nil
		}
		_, err = s.alerts.EvaluateTx(tx, fx, variant)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifier.flush(ctx, fx)
	return variant, nil
}

// Deactivate 停用规格（不物理删除，流水与订单仍引用）
func (s *ProductService) Deactivate(ctx context.Context, id uint) (*models.ProductVariant, error) {
	inactive := false
	return s.UpdateThresholds(ctx, id, repository.VariantThresholdPatch{IsActive: &inactive})
}

func buildAvailability(variant *models.ProductVariant) *cache.VariantAvailability {
	return &cache.VariantAvailability{
		VariantID:        variant.ID,
		StockQuantity:    variant.StockQuantity,
		ReservedQuantity: variant.ReservedQuantity,
		Available:        variant.Available(),
		IsLowStock:       variant.IsLowStock(),
		NeedsReorder:     variant.NeedsReorder(),
		CachedAt:         time.Now(),
	}
}
