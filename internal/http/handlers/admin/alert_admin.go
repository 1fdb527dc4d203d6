package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/dujiao-next/stockledger/internal/http/handlers/shared"
	"github.com/dujiao-next/stockledger/internal/http/response"
	"github.com/dujiao-next/stockledger/internal/queue"
	"github.com/dujiao-next/stockledger/internal/repository"
	"github.com/dujiao-next/stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

// RefreshAlertsRequest 预警重建请求
type RefreshAlertsRequest struct {
	DeleteResolved bool `json:"delete_resolved"`
	Async          bool `json:"async"` // 队列可用时异步执行
}

// ListAlerts 预警列表
func (h *Handler) ListAlerts(c *gin.Context) {
	page, pageSize := handlershared.PageParams(c)
	filter := repository.StockAlertListFilter{
		Page:      page,
		PageSize:  pageSize,
		VariantID: handlershared.QueryUint(c, "variant_id"),
		AlertType: strings.TrimSpace(c.Query("alert_type")),
	}
	if raw := strings.TrimSpace(c.Query("is_resolved")); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "is_resolved 参数无效", err)
			return
		}
		filter.IsResolved = &resolved
	}

	alerts, total, err := h.AlertService.List(filter)
	if err != nil {
		respondServiceError(c, err, "获取预警列表失败")
		return
	}
	response.SuccessWithPage(c, alerts, response.BuildPagination(page, pageSize, total))
}

// CountAlerts 未处理预警统计
func (h *Handler) CountAlerts(c *gin.Context) {
	counts, err := h.AlertService.CountUnresolved()
	if err != nil {
		respondError(c, response.CodeInternal, "获取预警统计失败", err)
		return
	}
	response.Success(c, counts)
}

// ResolveAlert 处理单条预警
func (h *Handler) ResolveAlert(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	alert, err := h.AlertService.Resolve(c.Request.Context(), id, getActorID(c))
	if err != nil {
		respondServiceError(c, err, "处理预警失败")
		return
	}
	response.Success(c, alert)
}

// ResolveVariantAlerts 处理规格下全部未处理预警
func (h *Handler) ResolveVariantAlerts(c *gin.Context) {
	variantID, ok := parseID(c, "id")
	if !ok {
		return
	}
	resolved, err := h.AlertService.ResolveAll(c.Request.Context(), variantID, getActorID(c))
	if err != nil {
		respondServiceError(c, err, "处理预警失败")
		return
	}
	response.Success(c, gin.H{"resolved": resolved})
}

// RefreshAlerts 重建预警
func (h *Handler) RefreshAlerts(c *gin.Context) {
	var req RefreshAlertsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "请求参数错误", err)
			return
		}
	}

	if req.Async && h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueAlertRefresh(queue.AlertRefreshPayload{DeleteResolved: req.DeleteResolved}); err != nil {
			respondError(c, response.CodeInternal, "投递预警重建任务失败", err)
			return
		}
		response.SuccessWithMsg(c, "queued", gin.H{"queued": true})
		return
	}

	stats, err := h.AlertService.Refresh(c.Request.Context(), service.RefreshOptions{DeleteResolved: req.DeleteResolved})
	if err != nil {
		respondError(c, response.CodeInternal, "预警重建失败", err)
		return
	}
	response.Success(c, stats)
}
