package router

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dujiao-next/stockledger/internal/config"
	handlershared "github.com/dujiao-next/stockledger/internal/http/handlers/shared"
	"github.com/dujiao-next/stockledger/internal/http/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

var errBadLimitResult = errors.New("unexpected rate limit script result")

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 限流规则
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
	FailOpen      bool // Redis 不可用时放行
}

// NewRateLimitRule 由配置生成限流规则
func NewRateLimitRule(prefix string, cfg config.RateLimitConfig, failOpen bool) RateLimitRule {
	return RateLimitRule{
		Prefix:        strings.Trim(prefix, ":"),
		WindowSeconds: cfg.WindowSeconds,
		MaxRequests:   cfg.MaxRequests,
		FailOpen:      failOpen,
	}
}

// 固定窗口计数，返回 {当前计数, 剩余秒数}
var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// RateLimitMiddleware Redis 固定窗口限流中间件
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || rule.WindowSeconds <= 0 || rule.MaxRequests <= 0 {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if rule.Prefix != "" {
			key = rule.Prefix + ":" + key
		}

		result, err := rateLimitScript.Run(c.Request.Context(), client, []string{key}, rule.WindowSeconds).Result()
		var count, ttlSeconds int64
		if err == nil {
			count, ttlSeconds, err = parseLimitResult(result)
		}
		if err != nil {
			handlershared.RequestLog(c).Warnw("rate_limit_unavailable", "key", key, "fail_open", rule.FailOpen, "error", err)
			if rule.FailOpen {
				c.Next()
				return
			}
			response.Error(c, response.CodeInternal, "限流服务不可用")
			c.Abort()
			return
		}

		remaining := int64(rule.MaxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rule.MaxRequests) {
			waitSeconds := retryAfterSeconds(ttlSeconds, rule.WindowSeconds)
			c.Header("Retry-After", strconv.Itoa(waitSeconds))
			response.Error(c, response.CodeTooManyRequests, fmt.Sprintf("请求过于频繁，请 %d 秒后再试", waitSeconds))
			c.Abort()
			return
		}

		c.Next()
	}
}

func parseLimitResult(result interface{}) (count, ttlSeconds int64, err error) {
	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return 0, 0, errBadLimitResult
	}
	count, ok = toInt64(values[0])
	if !ok {
		return 0, 0, errBadLimitResult
	}
	ttlSeconds, _ = toInt64(values[1])
	return count, ttlSeconds, nil
}

func retryAfterSeconds(ttlSeconds int64, window int) int {
	if ttlSeconds >= 1 {
		return int(ttlSeconds)
	}
	if window >= 1 {
		return window
	}
	return 1
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// KeyByActorOrIP 已登录时按操作人限流，否则按 IP
func KeyByActorOrIP(c *gin.Context) string {
	if actorID := handlershared.GetActorID(c); actorID != nil {
		return fmt.Sprintf("actor:%d", *actorID)
	}
	return KeyByIP(c)
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint8:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
