package public

import "github.com/dujiao-next/stockledger/internal/provider"

// Handler 前台接口处理器入口
// 说明：该处理器仅用于用户侧购物车、预占与结算 API。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
