package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dujiao-next/stockledger/internal/constants"
	"github.com/dujiao-next/stockledger/internal/events"
	"github.com/dujiao-next/stockledger/internal/logger"
	"github.com/dujiao-next/stockledger/internal/models"
	"github.com/dujiao-next/stockledger/internal/repository"
	"github.com/dujiao-next/stockledger/internal/telemetry"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// ImportInput 入库参数
type ImportInput struct {
	VariantID       uint
	Quantity        int
	CostPerItem     *decimal.Decimal
	ReferenceNumber string
	Notes           string
	ActorID         *uint
}

// ExportInput 出库参数
type ExportInput struct {
	VariantID uint
	Quantity  int
	OrderID   *uint
	Notes     string
	ActorID   *uint
}

// ReturnInput 退货回库参数
type ReturnInput struct {
	VariantID uint
	Quantity  int
	OrderID   *uint
	Notes     string
	ActorID   *uint
}

// AdjustInput 盘点调整参数
type AdjustInput struct {
	VariantID   uint
	NewQuantity int
	Reason      string
	ActorID     *uint
}

// DamagedInput 报损参数
type DamagedInput struct {
	VariantID uint
	Quantity  int
	Reason    string
	ActorID   *uint
}

// StockChange 单次库存变动结果
type StockChange struct {
	Entry          *models.StockEntry     `json:"entry"`
	Variant        *models.ProductVariant `json:"variant"`
	Alert          *models.StockAlert     `json:"alert,omitempty"`
	ResolvedAlerts int64                  `json:"resolved_alerts"`
}

type entryMeta struct {
	OrderID         *uint
	ReferenceNumber string
	CostPerItem     *models.Money
	Notes           string
	ActorID         *uint
}

// StockLedgerService 库存流水服务，在库数量的唯一写入方
type StockLedgerService struct {
	variantRepo  repository.VariantRepository
	entryRepo    repository.StockEntryRepository
	alerts       *AlertService
	notifier     *StockNotifier
	historyLimit int
}

// NewStockLedgerService 创建库存流水服务
func NewStockLedgerService(variantRepo repository.VariantRepository, entryRepo repository.StockEntryRepository, alerts *AlertService, notifier *StockNotifier, historyLimit int) *StockLedgerService {
	if historyLimit <= 0 {
		historyLimit = constants.DefaultStockHistoryLimit
	}
	return &StockLedgerService{
		variantRepo:  variantRepo,
		entryRepo:    entryRepo,
		alerts:       alerts,
		notifier:     notifier,
		historyLimit: historyLimit,
	}
}

// Import 采购入库
func (s *StockLedgerService) Import(ctx context.Context, input ImportInput) (*StockChange, error) {
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return s.run(ctx, "stock.import", input.VariantID, input.Quantity, func(tx *gorm.DB, fx *stockEffects) (*StockChange, error) {
		return s.ImportTx(tx, fx, input)
	})
}

// Export 出库
func (s *StockLedgerService) Export(ctx context.Context, input ExportInput) (*StockChange, error) {
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return s.run(ctx, "stock.export", input.VariantID, input.Quantity, func(tx *gorm.DB, fx *stockEffects) (*StockChange, error) {
		return s.ExportTx(tx, fx, input)
	})
}

// Return 退货回库
func (s *StockLedgerService) Return(ctx context.Context, input ReturnInput) (*StockChange, error) {
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return s.run(ctx, "stock.return", input.VariantID, input.Quantity, func(tx *gorm.DB, fx *stockEffects) (*StockChange, error) {
		return s.ReturnTx(tx, fx, input)
	})
}

// Adjust 盘点调整为指定数量
func (s *StockLedgerService) Adjust(ctx context.Context, input AdjustInput) (*StockChange, error) {
	if input.NewQuantity < 0 {
		return nil, ErrInvalidQuantity
	}
	return s.run(ctx, "stock.adjust", input.VariantID, input.NewQuantity, func(tx *gorm.DB, fx *stockEffects) (*StockChange, error) {
		return s.AdjustTx(tx, fx, input)
	})
}

// MarkDamaged 报损
func (s *StockLedgerService) MarkDamaged(ctx context.Context, input DamagedInput) (*StockChange, error) {
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return s.run(ctx, "stock.damaged", input.VariantID, input.Quantity, func(tx *gorm.DB, fx *stockEffects) (*StockChange, error) {
		return s.DamagedTx(tx, fx, input)
	})
}

// ImportTx 在已有事务内入库
func (s *StockLedgerService) ImportTx(tx *gorm.DB, fx *stockEffects, input ImportInput) (*StockChange, error) {
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	variant, err := s.lockVariant(tx, input.VariantID)
	if err != nil {
		return nil, err
	}
	meta := entryMeta{
		ReferenceNumber: strings.TrimSpace(input.ReferenceNumber),
		CostPerItem:     models.NewMoneyPtr(input.CostPerItem),
		Notes:           strings.TrimSpace(input.Notes),
		ActorID:         input.ActorID,
	}
	entry, err := s.applyOnHand(tx, fx, variant, constants.StockEntryImport, variant.StockQuantity+input.Quantity, meta)
	if err != nil {
		return nil, err
	}
	return s.afterIncrease(tx, fx, variant, entry, input.ActorID)
}

// ExportTx 在已有事务内出库，可售数量不足时返回 *InsufficientStockError
func (s *StockLedgerService) ExportTx(tx *gorm.DB, fx *stockEffects, input ExportInput) (*StockChange, error) {
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	variant, err := s.lockVariant(tx, input.VariantID)
	if err != nil {
		return nil, err
	}
	if variant.Available() < input.Quantity {
		return nil, newInsufficientStock(variant.ID, variant.Available(), input.Quantity)
	}
	meta := entryMeta{
		OrderID: input.OrderID,
		Notes:   strings.TrimSpace(input.Notes),
		ActorID: input.ActorID,
	}
	entry, err := s.applyOnHand(tx, fx, variant, constants.StockEntryExport, variant.StockQuantity-input.Quantity, meta)
	if err != nil {
		return nil, err
	}
	return s.afterDecrease(tx, fx, variant, entry)
}

// ReturnTx 在已有事务内退货回库
func (s *StockLedgerService) ReturnTx(tx *gorm.DB, fx *stockEffects, input ReturnInput) (*StockChange, error) {
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	variant, err := s.lockVariant(tx, input.VariantID)
	if err != nil {
		return nil, err
	}
	meta := entryMeta{
		OrderID: input.OrderID,
		Notes:   strings.TrimSpace(input.Notes),
		ActorID: input.ActorID,
	}
	entry, err := s.applyOnHand(tx, fx, variant, constants.StockEntryReturn, variant.StockQuantity+input.Quantity, meta)
	if err != nil {
		return nil, err
	}
	return s.afterIncrease(tx, fx, variant, entry, input.ActorID)
}

// AdjustTx 在已有事务内盘点调整
func (s *StockLedgerService) AdjustTx(tx *gorm.DB, fx *stockEffects, input AdjustInput) (*StockChange, error) {
	if input.NewQuantity < 0 {
		return nil, ErrInvalidQuantity
	}
	variant, err := s.lockVariant(tx, input.VariantID)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = fmt.Sprintf("Stock adjusted from %d to %d", variant.StockQuantity, input.NewQuantity)
	}
	meta := entryMeta{Notes: reason, ActorID: input.ActorID}
	entry, err := s.applyOnHand(tx, fx, variant, constants.StockEntryAdjustment, input.NewQuantity, meta)
	if err != nil {
		return nil, err
	}
	return s.afterDecrease(tx, fx, variant, entry)
}

// DamagedTx 在已有事务内报损，按在库数量校验
func (s *StockLedgerService) DamagedTx(tx *gorm.DB, fx *stockEffects, input DamagedInput) (*StockChange, error) {
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	variant, err := s.lockVariant(tx, input.VariantID)
	if err != nil {
		return nil, err
	}
	if variant.StockQuantity < input.Quantity {
		return nil, newInsufficientStock(variant.ID, variant.StockQuantity, input.Quantity)
	}
	meta := entryMeta{Notes: strings.TrimSpace(input.Reason), ActorID: input.ActorID}
	entry, err := s.applyOnHand(tx, fx, variant, constants.StockEntryDamaged, variant.StockQuantity-input.Quantity, meta)
	if err != nil {
		return nil, err
	}
	return s.afterDecrease(tx, fx, variant, entry)
}

// History 规格最近的库存流水（新的在前）
func (s *StockLedgerService) History(ctx context.Context, variantID uint, limit int) ([]models.StockEntry, error) {
	variant, err := s.variantRepo.WithTx(models.DB.WithContext(ctx)).GetByID(variantID)
	if err != nil {
		return nil, err
	}
	if variant == nil {
		return nil, ErrVariantNotFound
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	return s.entryRepo.ListByVariant(variantID, limit)
}

// OrderEntries 订单关联的库存流水
func (s *StockLedgerService) OrderEntries(ctx context.Context, orderID uint) ([]models.StockEntry, error) {
	if orderID == 0 {
		return nil, ErrOrderNotFound
	}
	return s.entryRepo.WithTx(models.DB.WithContext(ctx)).ListByOrder(orderID)
}

// ListEntries 分页查询库存流水
func (s *StockLedgerService) ListEntries(filter repository.StockEntryListFilter) ([]models.StockEntry, int64, error) {
	return s.entryRepo.List(filter)
}

func (s *StockLedgerService) run(ctx context.Context, name string, variantID uint, quantity int, fn func(tx *gorm.DB, fx *stockEffects) (*StockChange, error)) (change *StockChange, err error) {
	ctx, span := telemetry.StartSpan(ctx, name,
		attribute.Int64("variant_id", int64(variantID)),
		attribute.Int("quantity", quantity),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	fx := newStockEffects()
	err = models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		change, txErr = fn(tx, fx)
		return txErr
	})
	if err != nil {
		if errors.Is(err, ErrStockConflict) {
			telemetry.Add(ctx, telemetry.Metrics().StockConflicts, 1, attribute.String("op", name))
		}
		return nil, err
	}
	s.notifier.flush(ctx, fx)
	return change, nil
}

func (s *StockLedgerService) lockVariant(tx *gorm.DB, variantID uint) (*models.ProductVariant, error) {
	if variantID == 0 {
		return nil, ErrVariantNotFound
	}
	variant, err := s.variantRepo.WithTx(tx).GetByIDForUpdate(variantID)
	if err != nil {
		return nil, err
	}
	if variant == nil {
		return nil, ErrVariantNotFound
	}
	return variant, nil
}

// applyOnHand 写入在库数量与流水；在库低于预占时预占被压到在库并追加一条 unreserve 流水
func (s *StockLedgerService) applyOnHand(tx *gorm.DB, fx *stockEffects, variant *models.ProductVariant, kind string, newStock int, meta entryMeta) (*models.StockEntry, error) {
	if newStock < 0 {
		return nil, newInsufficientStock(variant.ID, variant.StockQuantity, variant.StockQuantity-newStock)
	}
	before := repository.StockCounters{Stock: variant.StockQuantity, Reserved: variant.ReservedQuantity}
	after := repository.StockCounters{Stock: newStock, Reserved: variant.ReservedQuantity}
	clamped := 0
	if after.Reserved > after.Stock {
		clamped = after.Reserved - after.Stock
		after.Reserved = after.Stock
	}

	var cost *models.Money
	if kind == constants.StockEntryImport && meta.CostPerItem != nil && meta.CostPerItem.GreaterThan(decimal.Zero) {
		cost = meta.CostPerItem
	}
	rows, err := s.variantRepo.WithTx(tx).ApplyCounters(variant.ID, before, after, cost)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrStockConflict
	}

	entryRepo := s.entryRepo.WithTx(tx)
	entry := &models.StockEntry{
		VariantID:       variant.ID,
		Kind:            kind,
		Quantity:        after.Stock - before.Stock,
		QuantityBefore:  before.Stock,
		QuantityAfter:   after.Stock,
		ReservedBefore:  before.Reserved,
		ReservedAfter:   before.Reserved,
		OrderID:         meta.OrderID,
		ReferenceNumber: meta.ReferenceNumber,
		CostPerItem:     meta.CostPerItem,
		Notes:           meta.Notes,
		ActorID:         meta.ActorID,
	}
	if err := entryRepo.Create(entry); err != nil {
		return nil, err
	}
	fx.emit(entryEvent(entry))

	if clamped > 0 {
		release := &models.StockEntry{
			VariantID:      variant.ID,
			Kind:           constants.StockEntryUnreserve,
			QuantityBefore: after.Stock,
			QuantityAfter:  after.Stock,
			ReservedBefore: before.Reserved,
			ReservedAfter:  after.Reserved,
			Notes:          fmt.Sprintf("Reservation clamped after %s entry #%d", kind, entry.ID),
			ActorID:        meta.ActorID,
		}
		if err := entryRepo.Create(release); err != nil {
			return nil, err
		}
		fx.emit(entryEvent(release))
		logger.Warnw("stock_reservation_clamped",
			"variant_id", variant.ID,
			"kind", kind,
			"reserved_before", before.Reserved,
			"reserved_after", after.Reserved,
		)
	}

	variant.StockQuantity = after.Stock
	variant.ReservedQuantity = after.Reserved
	if cost != nil {
		variant.CostPrice = *cost
	}
	return entry, nil
}

// afterIncrease 在库高于最低库存时处理全部预警，否则重新评估
func (s *StockLedgerService) afterIncrease(tx *gorm.DB, fx *stockEffects, variant *models.ProductVariant, entry *models.StockEntry, actorID *uint) (*StockChange, error) {
	change := &StockChange{Entry: entry, Variant: variant}
	if s.alerts == nil {
		return change, nil
	}
	if variant.StockQuantity > variant.MinimumStock {
		resolved, err := s.alerts.ResolveAllTx(tx, fx, variant.ID, actorID)
		if err != nil {
			return nil, err
		}
		change.ResolvedAlerts = resolved
		return change, nil
	}
	alert, err := s.alerts.EvaluateTx(tx, fx, variant)
	if err != nil {
		return nil, err
	}
	change.Alert = alert
	return change, nil
}

func (s *StockLedgerService) afterDecrease(tx *gorm.DB, fx *stockEffects, variant *models.ProductVariant, entry *models.StockEntry) (*StockChange, error) {
	change := &StockChange{Entry: entry, Variant: variant}
	if s.alerts == nil {
		return change, nil
	}
	alert, err := s.alerts.EvaluateTx(tx, fx, variant)
	if err != nil {
		return nil, err
	}
	change.Alert = alert
	return change, nil
}

func entryEvent(entry *models.StockEntry) events.Event {
	evt := events.New(constants.StockEventEntryRecorded)
	evt.VariantID = entry.VariantID
	evt.EntryID = entry.ID
	evt.OrderID = entry.OrderID
	evt.Kind = entry.Kind
	evt.Quantity = entry.Quantity
	evt.QuantityBefore = entry.QuantityBefore
	evt.QuantityAfter = entry.QuantityAfter
	evt.ReservedBefore = entry.ReservedBefore
	evt.ReservedAfter = entry.ReservedAfter
	evt.ActorID = entry.ActorID
	evt.Message = entry.Notes
	return evt
}
