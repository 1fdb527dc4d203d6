package constants

// 订单状态常量
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusReturned   = "returned"
)

// 库存流水类型常量
const (
	StockEntryImport     = "import"
	StockEntryExport     = "export"
	StockEntryReturn     = "return"
	StockEntryAdjustment = "adjustment"
	StockEntryDamaged    = "damaged"
	StockEntryReserve    = "reserve"
	StockEntryUnreserve  = "unreserve"
)

// 库存预警类型常量
const (
	StockAlertLowStock      = "low_stock"
	StockAlertOutOfStock    = "out_of_stock"
	StockAlertReorderNeeded = "reorder_needed"
)

// 库存事件类型常量
const (
	StockEventEntryRecorded      = "stock.entry_recorded"
	StockEventAlertOpened        = "stock.alert_opened"
	StockEventAlertsResolved     = "stock.alerts_resolved"
	StockEventCompensationFailed = "stock.compensation_failed"
	StockEventOrderStatusChanged = "order.status_changed"
)

// 队列任务类型
const (
	TaskReservationSweep = "stock:reservation_sweep"
	TaskAlertRefresh     = "stock:alert_refresh"
)

// 队列名称
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 库存默认值
const (
	DefaultReservationTTLMinutes = 30
	DefaultStockHistoryLimit     = 50
)
