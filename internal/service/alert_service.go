package service

import (
	"context"
	"strings"
	"time"

	"github.com/dujiao-next/stockledger/internal/constants"
	"github.com/dujiao-next/stockledger/internal/events"
	"github.com/dujiao-next/stockledger/internal/logger"
	"github.com/dujiao-next/stockledger/internal/models"
	"github.com/dujiao-next/stockledger/internal/repository"
	"github.com/dujiao-next/stockledger/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// RefreshOptions 预警重建选项
type RefreshOptions struct {
	DeleteResolved bool // 同时删除已处理的历史预警
}

// RefreshStats 预警重建结果
type RefreshStats struct {
	Deleted   int64          `json:"deleted"`
	Evaluated int            `json:"evaluated"`
	Created   int            `json:"created"`
	ByType    map[string]int `json:"by_type"`
}

// AlertService 库存预警服务
type AlertService struct {
	alertRepo   repository.StockAlertRepository
	variantRepo repository.VariantRepository
	notifier    *StockNotifier
}

// NewAlertService 创建库存预警服务
func NewAlertService(alertRepo repository.StockAlertRepository, variantRepo repository.VariantRepository, notifier *StockNotifier) *AlertService {
	return &AlertService{
		alertRepo:   alertRepo,
		variantRepo: variantRepo,
		notifier:    notifier,
	}
}

// classifyAlert 优先级：缺货 > 低库存 > 需补货
func classifyAlert(variant *models.ProductVariant) (string, int, bool) {
	available := variant.Available()
	switch {
	case available == 0:
		return constants.StockAlertOutOfStock, 0, true
	case available <= variant.MinimumStock:
		return constants.StockAlertLowStock, variant.MinimumStock, true
	case available <= variant.ReorderPoint:
		return constants.StockAlertReorderNeeded, variant.ReorderPoint, true
	}
	return "", 0, false
}

// EvaluateTx 在事务内评估规格预警，调用方须已持有规格行锁
// 返回新建的预警；已存在同类未处理预警时返回 nil。
func (s *AlertService) EvaluateTx(tx *gorm.DB, fx *stockEffects, variant *models.ProductVariant) (*models.StockAlert, error) {
	if variant == nil {
		return nil, nil
	}
	alertType, threshold, ok := classifyAlert(variant)
	if !ok {
		return nil, nil
	}
	repo := s.alertRepo.WithTx(tx)
	existing, err := repo.FindUnresolved(variant.ID, alertType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}
	alert := &models.StockAlert{
		VariantID:       variant.ID,
		AlertType:       alertType,
		CurrentQuantity: variant.Available(),
		Threshold:       threshold,
	}
	if err := repo.Create(alert); err != nil {
		return nil, err
	}

	evt := events.New(constants.StockEventAlertOpened)
	evt.VariantID = variant.ID
	evt.AlertID = alert.ID
	evt.AlertType = alertType
	evt.QuantityAfter = alert.CurrentQuantity
	fx.emit(evt)
	return alert, nil
}

// ResolveAllTx 在事务内处理规格全部未处理预警
func (s *AlertService) ResolveAllTx(tx *gorm.DB, fx *stockEffects, variantID uint, actorID *uint) (int64, error) {
	count, err := s.alertRepo.WithTx(tx).ResolveByVariant(variantID, actorID, time.Now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		evt := events.New(constants.StockEventAlertsResolved)
		evt.VariantID = variantID
		evt.Resolved = count
		evt.ActorID = actorID
		fx.emit(evt)
	}
	return count, nil
}

// Evaluate 独立评估规格预警
func (s *AlertService) Evaluate(ctx context.Context, variantID uint) (alert *models.StockAlert, err error) {
	ctx, span := telemetry.StartSpan(ctx, "stock.alert.evaluate", attribute.Int64("variant_id", int64(variantID)))
	defer func() { telemetry.EndSpan(span, err) }()

	fx := newStockEffects()
	err = models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		variant, err := s.variantRepo.WithTx(tx).GetByIDForUpdate(variantID)
		if err != nil {
			return err
		}
		if variant == nil {
			return ErrVariantNotFound
		}
		alert, err = s.EvaluateTx(tx, fx, variant)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifier.flush(ctx, fx)
	return alert, nil
}

// ResolveAll 处理规格全部未处理预警
func (s *AlertService) ResolveAll(ctx context.Context, variantID uint, actorID *uint) (int64, error) {
	if variantID == 0 {
		return 0, ErrVariantNotFound
	}
	fx := newStockEffects()
	var count int64
	err := models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		count, err = s.ResolveAllTx(tx, fx, variantID, actorID)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.notifier.flush(ctx, fx)
	return count, nil
}

// Resolve 处理单条预警，重复处理不改变原处理时间
func (s *AlertService) Resolve(ctx context.Context, alertID uint, actorID *uint) (*models.StockAlert, error) {
	alert, err := s.alertRepo.GetByID(alertID)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, ErrAlertNotFound
	}
	if alert.IsResolved {
		return alert, nil
	}
	count, err := s.alertRepo.ResolveByID(alertID, actorID, time.Now())
	if err != nil {
		return nil, err
	}
	if count > 0 {
		evt := events.New(constants.StockEventAlertsResolved)
		evt.VariantID = alert.VariantID
		evt.AlertID = alert.ID
		evt.AlertType = alert.AlertType
		evt.Resolved = count
		evt.ActorID = actorID
		fx := newStockEffects()
		fx.emit(evt)
		s.notifier.flush(ctx, fx)
	}
	return s.alertRepo.GetByID(alertID)
}

// List 分页查询预警
func (s *AlertService) List(filter repository.StockAlertListFilter) ([]models.StockAlert, int64, error) {
	filter.AlertType = strings.TrimSpace(filter.AlertType)
	if filter.AlertType != "" && !isAlertType(filter.AlertType) {
		return nil, 0, ErrInvalidAlertType
	}
	return s.alertRepo.List(filter)
}

// CountUnresolved 按类型统计未处理预警
func (s *AlertService) CountUnresolved() (map[string]int64, error) {
	return s.alertRepo.CountUnresolvedByType()
}

// Refresh 清理并重新评估全部启用规格的预警
func (s *AlertService) Refresh(ctx context.Context, opts RefreshOptions) (stats *RefreshStats, err error) {
	ctx, span := telemetry.StartSpan(ctx, "stock.alert.refresh", attribute.Bool("delete_resolved", opts.DeleteResolved))
	defer func() { telemetry.EndSpan(span, err) }()

	stats = &RefreshStats{ByType: make(map[string]int)}
	repo := s.alertRepo.WithTx(models.DB.WithContext(ctx))
	if opts.DeleteResolved {
		stats.Deleted, err = repo.DeleteAll()
	} else {
		stats.Deleted, err = repo.DeleteUnresolved()
	}
	if err != nil {
		return nil, err
	}

	ids, err := s.variantRepo.ListActiveIDs()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		alert, evalErr := s.Evaluate(ctx, id)
		if evalErr != nil {
			logger.Ctx(ctx).Warnw("stock_alert_refresh_evaluate_failed", "variant_id", id, "error", evalErr)
			continue
		}
		stats.Evaluated++
		if alert != nil {
			stats.Created++
			stats.ByType[alert.AlertType]++
		}
	}
	logger.Ctx(ctx).Infow("stock_alert_refresh_done",
		"deleted", stats.Deleted,
		"evaluated", stats.Evaluated,
		"created", stats.Created,
	)
	return stats, nil
}

func isAlertType(alertType string) bool {
	switch alertType {
	case constants.StockAlertLowStock, constants.StockAlertOutOfStock, constants.StockAlertReorderNeeded:
		return true
	}
	return false
}
