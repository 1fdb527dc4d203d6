package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StockMetrics 库存相关指标
type StockMetrics struct {
	EntriesRecorded      metric.Int64Counter
	AlertsOpened         metric.Int64Counter
	ReservationsSwept    metric.Int64Counter
	CompensationFailures metric.Int64Counter
	StockConflicts       metric.Int64Counter
}

var (
	metricsOnce sync.Once
	stockMetric *StockMetrics
)

// Metrics 返回库存指标（全局 MeterProvider 设置前创建的仪表会自动委托）
func Metrics() *StockMetrics {
	metricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		m := &StockMetrics{}
		m.EntriesRecorded, _ = meter.Int64Counter("stock.entries.recorded",
			metric.WithDescription("Stock ledger entries appended"))
		m.AlertsOpened, _ = meter.Int64Counter("stock.alerts.opened",
			metric.WithDescription("Stock alerts opened"))
		m.ReservationsSwept, _ = meter.Int64Counter("stock.reservations.swept",
			metric.WithDescription("Expired reservations released by the sweeper"))
		m.CompensationFailures, _ = meter.Int64Counter("stock.compensation.failures",
			metric.WithDescription("Order item stock returns that failed"))
		m.StockConflicts, _ = meter.Int64Counter("stock.conflicts",
			metric.WithDescription("Compare-and-set counter writes that lost a race"))
		stockMetric = m
	})
	return stockMetric
}

// Add 计数器累加，计数器缺失时忽略
func Add(ctx context.Context, counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if counter == nil || value == 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}
