package app

import (
	"os"
	"time"

	"github.com/dujiao-next/stockledger/internal/config"
	"github.com/dujiao-next/stockledger/internal/logger"
	"github.com/dujiao-next/stockledger/internal/telemetry"

	"go.uber.org/zap"
)

const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)

// Options 应用启动选项
type Options struct {
	Config            *config.Config
	Logger            *zap.SugaredLogger
	Signals           []os.Signal
	ShutdownTimeout   time.Duration
	Mode              string
	TelemetryShutdown telemetry.ShutdownFunc // 退出时刷新链路与指标数据
}

// normalizeOptions 补齐默认参数
func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	return opts
}
