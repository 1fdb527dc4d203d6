package shared

import (
	"strconv"
	"strings"

	"github.com/dujiao-next/stockledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

const (
	ActorIDKey   = "actor_id"
	ActorRoleKey = "actor_role"
)

// GetActorID 读取操作人 ID，未携带令牌时返回 nil。
func GetActorID(c *gin.Context) *uint {
	value, exists := c.Get(ActorIDKey)
	if !exists {
		return nil
	}
	if id, ok := value.(uint); ok && id > 0 {
		return &id
	}
	return nil
}

// RequireActorID 读取操作人 ID，缺失时返回 401。
func RequireActorID(c *gin.Context) (uint, bool) {
	if id := GetActorID(c); id != nil {
		return *id, true
	}
	response.Unauthorized(c, "未登录或令牌无效")
	return 0, false
}

// ParseIDParam 解析路径中的正整数 ID，失败时返回 400。
func ParseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "参数 "+name+" 无效")
		return 0, false
	}
	return uint(id), true
}

// QueryUint 读取可选的 uint 查询参数，非法值按 0 处理。
func QueryUint(c *gin.Context, name string) uint {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// QueryBool 读取布尔查询参数。
func QueryBool(c *gin.Context, name string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(c.Query(name)))
	return err == nil && value
}
