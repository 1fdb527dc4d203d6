package response

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// AppError 业务错误：状态码、提示消息与可选的附加数据
type AppError struct {
	Code    int
	Message string
	Data    gin.H
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithData 附加返回给调用方的结构化数据（如库存不足时的可用数量）
func (e *AppError) WithData(data gin.H) *AppError {
	e.Data = data
	return e
}

// Fail 输出 AppError；非 AppError 统一按 500 处理
func Fail(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		Error(c, CodeInternal, "服务器内部错误")
		return
	}
	if appErr.Data != nil {
		ErrorWithData(c, appErr.Code, appErr.Message, appErr.Data)
		return
	}
	Error(c, appErr.Code, appErr.Message)
}
