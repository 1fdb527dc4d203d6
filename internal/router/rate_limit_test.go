package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dujiao-next/stockledger/internal/config"
	handlershared "github.com/dujiao-next/stockledger/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func TestKeyByActorOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/orders/checkout", nil)
	c.Request.RemoteAddr = "1.2.3.4:5678"

	if key := KeyByActorOrIP(c); key != "ip:1.2.3.4" {
		t.Fatalf("anonymous key want ip:1.2.3.4 got %s", key)
	}
	c.Set(handlershared.ActorIDKey, uint(42))
	if key := KeyByActorOrIP(c); key != "actor:42" {
		t.Fatalf("actor key want actor:42 got %s", key)
	}
}

func TestRateLimitMiddlewareWithoutClient(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 1}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok":true`) {
			t.Fatalf("request %d should pass without redis, got %d %s", i, w.Code, w.Body.String())
		}
	}
}

func TestToInt64(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  int64
		ok    bool
	}{
		{name: "int64", input: int64(10), want: 10, ok: true},
		{name: "int", input: int(11), want: 11, ok: true},
		{name: "uint8", input: uint8(12), want: 12, ok: true},
		{name: "float64", input: float64(13.9), want: 13, ok: true},
		{name: "numeric string", input: "14", want: 14, ok: true},
		{name: "string", input: "bad", want: 0, ok: false},
		{name: "nil", input: nil, want: 0, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toInt64(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok want %v got %v", tc.ok, ok)
			}
			if got != tc.want {
				t.Fatalf("value want %d got %d", tc.want, got)
			}
		})
	}
}

func TestParseLimitResult(t *testing.T) {
	count, ttl, err := parseLimitResult([]interface{}{int64(3), int64(42)})
	if err != nil || count != 3 || ttl != 42 {
		t.Fatalf("unexpected parse: count=%d ttl=%d err=%v", count, ttl, err)
	}
	if _, _, err := parseLimitResult("OK"); err == nil {
		t.Fatalf("non-array result should fail")
	}
	if _, _, err := parseLimitResult([]interface{}{"x", int64(1)}); err == nil {
		t.Fatalf("non-numeric count should fail")
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	if got := retryAfterSeconds(12, 60); got != 12 {
		t.Fatalf("ttl should win, got %d", got)
	}
	if got := retryAfterSeconds(-1, 60); got != 60 {
		t.Fatalf("missing ttl falls back to window, got %d", got)
	}
	if got := retryAfterSeconds(0, 0); got != 1 {
		t.Fatalf("minimum is one second, got %d", got)
	}
}

func TestNewRateLimitRule(t *testing.T) {
	rule := NewRateLimitRule("sl:rate:checkout:", config.RateLimitConfig{WindowSeconds: 30, MaxRequests: 5}, true)
	if rule.Prefix != "sl:rate:checkout" || rule.WindowSeconds != 30 || rule.MaxRequests != 5 || !rule.FailOpen {
		t.Fatalf("unexpected rule: %+v", rule)
	}
}
