package app

import (
	"context"
	"errors"

	"github.com/dujiao-next/stockledger/internal/config"
	"github.com/dujiao-next/stockledger/internal/provider"
	"github.com/dujiao-next/stockledger/internal/router"
	"github.com/dujiao-next/stockledger/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, *provider.Container, error) {
	if cfg == nil {
		return nil, nil, errors.New("config is nil")
	}

	container := provider.NewContainer(cfg)

	var services []Service

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService(cfg.Server, engine))
	}

	if mode == ModeAll || mode == ModeWorker {
		// 周期任务：队列启用时投递，否则本进程执行
		var enqueuer worker.TaskEnqueuer
		if container.QueueClient != nil && container.QueueClient.Enabled() {
			enqueuer = container.QueueClient
		}
		services = append(services, worker.NewScheduler(cfg.Stock, container.ReservationService, container.AlertService, enqueuer))

		// 初始化 Worker 服务
		if cfg.Queue.Enabled {
			consumer := worker.NewConsumer(container)
			workerService, err := worker.NewService(&cfg.Queue, consumer)
			if err != nil {
				return nil, nil, err
			}
			services = append(services, workerService)
		}
	}

	// 如果没有服务被启动（例如模式错误或配置导致都没起），应该报错或至少打日志
	if len(services) == 0 {
		return nil, nil, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), container, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	shutdownTelemetry := opts.TelemetryShutdown
	if shutdownTelemetry != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
			defer cancel()
			if err := shutdownTelemetry(ctx); err != nil {
				opts.Logger.Warnw("telemetry_shutdown_failed", "error", err)
			}
		}()
	}

	runner, container, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}
	defer container.Close()

	opts.Logger.Infow("app_start", "addr", opts.Config.Server.Addr(), "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
