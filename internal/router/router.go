package router

import (
	"fmt"
	"strings"

	"github.com/dujiao-next/stockledger/internal/cache"
	"github.com/dujiao-next/stockledger/internal/config"
	adminhandlers "github.com/dujiao-next/stockledger/internal/http/handlers/admin"
	publichandlers "github.com/dujiao-next/stockledger/internal/http/handlers/public"
	"github.com/dujiao-next/stockledger/internal/logger"
	"github.com/dujiao-next/stockledger/internal/provider"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "sl"
	}
	checkoutRule := NewRateLimitRule(fmt.Sprintf("%s:rate:checkout", redisPrefix), cfg.Security.CheckoutRateLimit, true)
	checkoutLimiter := RateLimitMiddleware(cache.Client(), checkoutRule, KeyByActorOrIP)

	serviceName := strings.TrimSpace(cfg.Telemetry.ServiceName)
	if serviceName == "" {
		serviceName = "stockledger"
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		apiV1.GET("/variants/:id/availability", publicHandler.GetVariantAvailability)

		// 用户接口（需令牌）
		user := apiV1.Group("")
		user.Use(ActorMiddleware(c.ActorTokens, ActorOptions{Required: true, Realm: "user"}))
		{
			user.GET("/cart", publicHandler.GetCart)
			user.POST("/cart/items", publicHandler.UpsertCartItem)
			user.DELETE("/cart/items/:id", publicHandler.DeleteCartItem)
			user.POST("/cart/items/:id/reserve", checkoutLimiter, publicHandler.ReserveCartItem)
			user.DELETE("/cart/items/:id/reserve", publicHandler.ReleaseCartItem)
			user.POST("/cart/reserve", checkoutLimiter, publicHandler.ReserveCart)
			user.POST("/orders/checkout", checkoutLimiter, publicHandler.Checkout)
			user.GET("/orders/:id", publicHandler.GetOrder)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		admin.Use(ActorMiddleware(c.ActorTokens, ActorOptions{Required: cfg.JWT.Required, AdminOnly: true, Realm: "admin"}))
		{
			// 商品与规格
			admin.POST("/products", adminHandler.CreateProduct)
			admin.GET("/products/:id", adminHandler.GetProduct)
			admin.POST("/products/:id/variants", adminHandler.CreateVariant)
			admin.GET("/variants", adminHandler.ListVariants)
			admin.GET("/variants/:id", adminHandler.GetVariant)
			admin.GET("/variants/:id/availability", adminHandler.GetVariantAvailability)
			admin.PATCH("/variants/:id/thresholds", adminHandler.UpdateVariantThresholds)
			admin.POST("/variants/:id/deactivate", adminHandler.DeactivateVariant)

			// 库存流水
			admin.POST("/variants/:id/import", adminHandler.ImportStock)
			admin.POST("/variants/:id/export", adminHandler.ExportStock)
			admin.POST("/variants/:id/return", adminHandler.ReturnStock)
			admin.POST("/variants/:id/adjust", adminHandler.AdjustStock)
			admin.POST("/variants/:id/damaged", adminHandler.MarkDamaged)
			admin.GET("/variants/:id/history", adminHandler.GetVariantHistory)
			admin.GET("/stock-entries", adminHandler.ListStockEntries)

			// 库存预警
			admin.GET("/alerts", adminHandler.ListAlerts)
			admin.GET("/alerts/counts", adminHandler.CountAlerts)
			admin.POST("/alerts/refresh", adminHandler.RefreshAlerts)
			admin.POST("/alerts/:id/resolve", adminHandler.ResolveAlert)
			admin.POST("/variants/:id/alerts/resolve", adminHandler.ResolveVariantAlerts)

			// 订单
			admin.GET("/orders", adminHandler.ListOrders)
			admin.GET("/orders/:id", adminHandler.GetOrder)
			admin.POST("/orders/:id/status", adminHandler.TransitionOrder)
			admin.GET("/orders/:id/transitions", adminHandler.ListOrderTransitions)
			admin.GET("/orders/:id/stock-entries", adminHandler.ListOrderStockEntries)
			admin.POST("/orders/:id/items", adminHandler.AddOrderItem)
			admin.DELETE("/orders/:id/items/:item_id", adminHandler.RemoveOrderItem)

			// 报表与维护
			admin.GET("/reports/inventory", adminHandler.GetInventoryReport)
			admin.POST("/reservations/sweep", adminHandler.SweepReservations)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
