package shared

import (
	"errors"

	"github.com/dujiao-next/stockledger/internal/http/response"
	"github.com/dujiao-next/stockledger/internal/logger"
	"github.com/dujiao-next/stockledger/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Fail(c, appErr)
}

type serviceErrorRule struct {
	target error
	code   int
	msg    string
}

var serviceErrorRules = []serviceErrorRule{
	{service.ErrInvalidQuantity, response.CodeBadRequest, "数量无效"},
	{service.ErrInvalidPrice, response.CodeBadRequest, "价格无效"},
	{service.ErrInvalidProductName, response.CodeBadRequest, "商品名称无效"},
	{service.ErrInvalidSKU, response.CodeBadRequest, "SKU 无效或已存在"},
	{service.ErrInvalidThreshold, response.CodeBadRequest, "库存阈值无效"},
	{service.ErrInvalidAlertType, response.CodeBadRequest, "预警类型无效"},
	{service.ErrInvalidOrderStatus, response.CodeBadRequest, "订单状态无效"},
	{service.ErrOrderStatusTransition, response.CodeBadRequest, "订单状态不允许此流转"},
	{service.ErrCartEmpty, response.CodeBadRequest, "购物车为空"},
	{service.ErrVariantInactive, response.CodeBadRequest, "规格已下架"},
	{service.ErrVariantNotFound, response.CodeNotFound, "规格不存在"},
	{service.ErrProductNotFound, response.CodeNotFound, "商品不存在"},
	{service.ErrOrderNotFound, response.CodeNotFound, "订单不存在"},
	{service.ErrOrderItemNotFound, response.CodeNotFound, "订单项不存在"},
	{service.ErrCartItemNotFound, response.CodeNotFound, "购物车项不存在"},
	{service.ErrAlertNotFound, response.CodeNotFound, "预警不存在"},
	{service.ErrStockConflict, response.CodeConflict, "库存已被并发修改，请重试"},
}

// MapServiceError 把业务错误转换为 AppError，未匹配时返回 nil
func MapServiceError(err error) *response.AppError {
	if err == nil {
		return nil
	}
	var shortage *service.InsufficientStockError
	if errors.As(err, &shortage) {
		return response.WrapError(response.CodeConflict, "库存不足", err).WithData(gin.H{
			"variant_id":         shortage.VariantID,
			"available_quantity": shortage.Available,
			"requested_quantity": shortage.Requested,
		})
	}
	for _, rule := range serviceErrorRules {
		if errors.Is(err, rule.target) {
			return response.WrapError(rule.code, rule.msg, err)
		}
	}
	return nil
}

// RespondServiceError 按错误表映射业务错误，未知错误返回 500。
func RespondServiceError(c *gin.Context, err error, fallbackMsg string) {
	appErr := MapServiceError(err)
	if appErr == nil {
		RespondError(c, response.CodeInternal, fallbackMsg, err)
		return
	}
	var shortage *service.InsufficientStockError
	if errors.As(err, &shortage) {
		RequestLog(c).Infow("insufficient_stock",
			"variant_id", shortage.VariantID,
			"available", shortage.Available,
			"requested", shortage.Requested,
		)
	}
	response.Fail(c, appErr)
}
