package admin

import (
	"strconv"
	"time"

	handlershared "github.com/dujiao-next/stockledger/internal/http/handlers/shared"
	"github.com/dujiao-next/stockledger/internal/http/response"
	"github.com/dujiao-next/stockledger/internal/queue"
	"github.com/dujiao-next/stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

// GetInventoryReport 库存报表
func (h *Handler) GetInventoryReport(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	report, err := h.ReportService.Report(c.Request.Context(), service.ReportFilter{
		CategoryID:  handlershared.QueryUint(c, "category_id"),
		ProductID:   handlershared.QueryUint(c, "product_id"),
		LowStock:    handlershared.QueryBool(c, "low_stock"),
		OutOfStock:  handlershared.QueryBool(c, "out_of_stock"),
		NeedReorder: handlershared.QueryBool(c, "need_reorder"),
		Limit:       limit,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "生成库存报表失败", err)
		return
	}
	response.Success(c, report)
}

// SweepReservations 手动释放过期预占
func (h *Handler) SweepReservations(c *gin.Context) {
	now := time.Now()
	if handlershared.QueryBool(c, "async") && h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueReservationSweep(queue.ReservationSweepPayload{Now: now}, 0); err != nil {
			respondError(c, response.CodeInternal, "投递预占清理任务失败", err)
			return
		}
		response.SuccessWithMsg(c, "queued", gin.H{"queued": true})
		return
	}
	released, err := h.ReservationService.SweepExpired(c.Request.Context(), now)
	if err != nil {
		respondError(c, response.CodeInternal, "预占清理失败", err)
		return
	}
	response.Success(c, gin.H{"released": released})
}
