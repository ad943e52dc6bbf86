package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	logpkg "github.com/CodingHusk3y/heartwake/internal/common/logger"
	"github.com/CodingHusk3y/heartwake/internal/config"
	httpapi "github.com/CodingHusk3y/heartwake/internal/http"
	"github.com/CodingHusk3y/heartwake/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	logger, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "heartwake-engine")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting heartwake-engine service",
		zap.String("version", "0.3.0"),
		zap.String("notify_mode", cfg.Notify.Mode),
		zap.String("device_id", cfg.Sensors.DeviceID),
		zap.Duration("tick_interval", cfg.SmartWake.TickInterval),
		zap.String("timezone", cfg.Location().String()),
	)

	// 创建服务
	smartWake, err := service.NewSmartWakeService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create smart wake service", zap.Error(err))
	}

	router := httpapi.NewRouter(logger)
	router.RegisterHealthRoutes()
	router.RegisterAlarmRoutes(httpapi.NewAlarmHandler(smartWake.Alarms(), cfg.SmartWake.DefaultWindowMinutes, logger))
	router.RegisterSessionRoutes(httpapi.NewSessionHandler(
		smartWake.Sessions(),
		smartWake.History(),
		cfg.SmartWake.DefaultWindowMinutes,
		cfg.SmartWake.SessionHistoryLimit,
		logger,
	))
	srv := service.NewServer(cfg.HTTP.Addr, router, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 在 goroutine 中启动服务
	go func() {
		if err := smartWake.Start(ctx); err != nil {
			logger.Fatal("Failed to start smart wake service", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	// 优雅关闭
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if err := smartWake.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Service stopped")
}
