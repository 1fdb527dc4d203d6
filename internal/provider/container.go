package provider

import (
	"github.com/dujiao-next/stockledger/internal/cache"
	"github.com/dujiao-next/stockledger/internal/config"
	"github.com/dujiao-next/stockledger/internal/events"
	"github.com/dujiao-next/stockledger/internal/logger"
	"github.com/dujiao-next/stockledger/internal/models"
	"github.com/dujiao-next/stockledger/internal/queue"
	"github.com/dujiao-next/stockledger/internal/repository"
	"github.com/dujiao-next/stockledger/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Publisher   events.Publisher

	// Repositories
	ProductRepo    repository.ProductRepository
	VariantRepo    repository.VariantRepository
	StockEntryRepo repository.StockEntryRepository
	StockAlertRepo repository.StockAlertRepository
	CartRepo       repository.CartRepository
	OrderRepo      repository.OrderRepository
	TransitionRepo repository.OrderTransitionRepository
	ReportRepo     repository.ReportRepository

	// Services
	Notifier           *service.StockNotifier
	AlertService       *service.AlertService
	StockLedgerService *service.StockLedgerService
	ReservationService *service.ReservationService
	ProductService     *service.ProductService
	CartService        *service.CartService
	OrderService       *service.OrderLifecycleService
	ReportService      *service.InventoryReportService
	ActorTokens        *service.ActorTokenService
}

// NewContainer 初始化容器，调用前须已完成 models.InitDB
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Publisher:   events.NewPublisher(&cfg.Kafka),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.ProductRepo = repository.NewProductRepository(db)
	c.VariantRepo = repository.NewVariantRepository(db)
	c.StockEntryRepo = repository.NewStockEntryRepository(db)
	c.StockAlertRepo = repository.NewStockAlertRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.TransitionRepo = repository.NewOrderTransitionRepository(db)

	sqlDB, err := db.DB()
	if err != nil {
		logger.Errorw("provider_init_report_repo_failed", "error", err)
		panic(err)
	}
	c.ReportRepo = repository.NewReportRepository(sqlDB, models.Driver())
}

func (c *Container) initServices() {
	stockCfg := c.Config.Stock

	var availability service.AvailabilityCache
	if cache.Enabled() {
		availability = cache.NewVariantCache(stockCfg.CacheTTL())
	}
	c.Notifier = service.NewStockNotifier(availability, c.Publisher)

	c.AlertService = service.NewAlertService(c.StockAlertRepo, c.VariantRepo, c.Notifier)
	c.StockLedgerService = service.NewStockLedgerService(c.VariantRepo, c.StockEntryRepo, c.AlertService, c.Notifier, stockCfg.HistoryLimit)
	c.ReservationService = service.NewReservationService(c.CartRepo, c.VariantRepo, c.StockEntryRepo, c.Notifier, stockCfg.ReservationTTL())
	c.ProductService = service.NewProductService(c.ProductRepo, c.VariantRepo, c.StockLedgerService, c.AlertService, availability, c.Notifier)
	c.CartService = service.NewCartService(c.CartRepo, c.VariantRepo, c.ReservationService, c.Notifier)
	c.OrderService = service.NewOrderLifecycleService(
		c.OrderRepo,
		c.TransitionRepo,
		c.CartRepo,
		c.VariantRepo,
		c.ProductRepo,
		c.StockLedgerService,
		c.ReservationService,
		c.Notifier,
	)
	c.ReportService = service.NewInventoryReportService(c.ReportRepo)
	c.ActorTokens = service.NewActorTokenService(c.Config.JWT.SecretKey, c.Config.JWT.ExpireHours)
}

// Close 释放外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			logger.Warnw("provider_close_publisher_failed", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
