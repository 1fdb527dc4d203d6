package service

import (
	"context"
	"sort"

	"github.com/dujiao-next/stockledger/internal/cache"
	"github.com/dujiao-next/stockledger/internal/constants"
	"github.com/dujiao-next/stockledger/internal/events"
	"github.com/dujiao-next/stockledger/internal/logger"
	"github.com/dujiao-next/stockledger/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
)

// AvailabilityCache 可售数量缓存
type AvailabilityCache interface {
	GetAvailability(ctx context.Context, variantID uint) (*cache.VariantAvailability, bool, error)
	SetAvailability(ctx context.Context, snapshot cache.VariantAvailability) error
	InvalidateVariants(ctx context.Context, variantIDs []uint) error
}

// stockEffects 事务内累积、提交后才执行的副作用
type stockEffects struct {
	events   []events.Event
	variants map[uint]struct{}
}

func newStockEffects() *stockEffects {
	return &stockEffects{variants: make(map[uint]struct{})}
}

func (fx *stockEffects) touch(variantID uint) {
	if fx == nil || variantID == 0 {
		return
	}
	fx.variants[variantID] = struct{}{}
}

func (fx *stockEffects) emit(evt events.Event) {
	if fx == nil {
		return
	}
	fx.events = append(fx.events, evt)
	fx.touch(evt.VariantID)
}

func (fx *stockEffects) merge(other *stockEffects) {
	if fx == nil || other == nil {
		return
	}
	fx.events = append(fx.events, other.events...)
	for id := range other.variants {
		fx.variants[id] = struct{}{}
	}
}

func (fx *stockEffects) variantIDs() []uint {
	ids := make([]uint, 0, len(fx.variants))
	for id := range fx.variants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StockNotifier 事务提交后失效缓存并投递事件
type StockNotifier struct {
	cache     AvailabilityCache
	publisher events.Publisher
}

// NewStockNotifier 创建库存变动通知器，参数均可为空
func NewStockNotifier(availability AvailabilityCache, publisher events.Publisher) *StockNotifier {
	return &StockNotifier{cache: availability, publisher: publisher}
}

// Publisher 返回事件投递器
func (n *StockNotifier) Publisher() events.Publisher {
	if n == nil || n.publisher == nil {
		return events.NopPublisher{}
	}
	return n.publisher
}

// flush 失败只记录日志，库存已提交不可回滚
func (n *StockNotifier) flush(ctx context.Context, fx *stockEffects) {
	if n == nil || fx == nil {
		return
	}
	recordEffectMetrics(ctx, fx.events)
	if n.cache != nil && len(fx.variants) > 0 {
		if err := n.cache.InvalidateVariants(ctx, fx.variantIDs()); err != nil {
			logger.Ctx(ctx).Warnw("stock_cache_invalidate_failed", "variant_ids", fx.variantIDs(), "error", err)
		}
	}
	if n.publisher != nil && len(fx.events) > 0 {
		if err := n.publisher.Publish(ctx, fx.events...); err != nil {
			logger.Ctx(ctx).Warnw("stock_event_publish_failed", "count", len(fx.events), "error", err)
		}
	}
}

func recordEffectMetrics(ctx context.Context, evts []events.Event) {
	metrics := telemetry.Metrics()
	for _, evt := range evts {
		switch evt.Type {
		case constants.StockEventEntryRecorded:
			telemetry.Add(ctx, metrics.EntriesRecorded, 1, attribute.String("kind", evt.Kind))
		case constants.StockEventAlertOpened:
			telemetry.Add(ctx, metrics.AlertsOpened, 1, attribute.String("alert_type", evt.AlertType))
		case constants.StockEventCompensationFailed:
			telemetry.Add(ctx, metrics.CompensationFailures, 1)
		}
	}
}
