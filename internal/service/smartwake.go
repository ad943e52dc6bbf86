package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/common/database"
	mqttcommon "github.com/CodingHusk3y/heartwake/internal/common/mqtt"
	rediscommon "github.com/CodingHusk3y/heartwake/internal/common/redis"
	"github.com/CodingHusk3y/heartwake/internal/config"
	"github.com/CodingHusk3y/heartwake/internal/consumer"
	"github.com/CodingHusk3y/heartwake/internal/notifier"
	"github.com/CodingHusk3y/heartwake/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 过期单次闹钟清理间隔
const maintenanceInterval = time.Minute

// SmartWakeService 智能唤醒引擎：闹钟调度、实时会话、送达回执
type SmartWakeService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client

	alarms   *AlarmService
	sessions *SessionService
	history  *repository.SessionRepository
	delivery *consumer.DeliveryConsumer
}

// NewSmartWakeService 创建智能唤醒引擎
func NewSmartWakeService(cfg *config.Config, logger *zap.Logger) (*SmartWakeService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repository.EnsureSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	// 初始化Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 初始化MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, err
	}

	// 创建Repository
	alarmRepo := repository.NewAlarmRepository(db, logger)
	sessionRepo := repository.NewSessionRepository(db, cfg.SmartWake.SessionHistoryLimit, logger)

	cacheManager := consumer.NewCacheManager(cfg, redisClient, logger)
	stateManager := consumer.NewStateManager(cfg, redisClient, logger)

	sensorConsumer := consumer.NewSensorConsumer(mqttClient, mqttClient.QoS(), logger)
	sensors := Sensors{
		Amplitude: sensorConsumer.AmplitudeSource(cfg.Sensors.AmplitudeTopic),
		Motion:    sensorConsumer.MotionSource(cfg.Sensors.MotionTopic),
		HeartRate: sensorConsumer.HeartRateSource(cfg.Sensors.HeartRateTopic),
	}

	dispatcher, err := newDispatcher(cfg, redisClient, logger)
	if err != nil {
		db.Close()
		redisClient.Close()
		mqttClient.Disconnect()
		return nil, err
	}

	alarms := NewAlarmService(alarmRepo, dispatcher, cfg.Location(), logger)
	sessions := NewSessionService(cfg, alarmRepo, sessionRepo, cacheManager, stateManager, sensors, logger)

	return &SmartWakeService{
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
		mqttClient:  mqttClient,
		alarms:      alarms,
		sessions:    sessions,
		history:     sessionRepo,
		delivery:    consumer.NewDeliveryConsumer(cfg, redisClient, alarms, logger),
	}, nil
}

func newDispatcher(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (notifier.Dispatcher, error) {
	switch cfg.Notify.Mode {
	case "", "stream":
		return notifier.NewStreamDispatcher(redisClient, cfg.Notify.TriggerStream, logger), nil
	case "http":
		return notifier.NewHTTPDispatcher(cfg.Notify.GatewayURL, cfg.Notify.GatewayTimeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown notify mode %q", cfg.Notify.Mode)
	}
}

// Alarms 闹钟调度服务
func (s *SmartWakeService) Alarms() *AlarmService { return s.alarms }

// Sessions 实时会话服务
func (s *SmartWakeService) Sessions() *SessionService { return s.sessions }

// History 会话历史
func (s *SmartWakeService) History() *repository.SessionRepository { return s.history }

// Start 启动服务（阻塞直到 ctx 取消）
func (s *SmartWakeService) Start(ctx context.Context) error {
	s.logger.Info("Starting smart wake service components")

	if err := s.sessions.LoadCalibration(ctx); err != nil {
		s.logger.Warn("Using default calibration", zap.Error(err))
	}

	// 启动时重新调度所有闹钟（单个失败只记录）
	if err := s.alarms.ScheduleAll(ctx); err != nil {
		s.logger.Warn("Some alarms could not be scheduled", zap.Error(err))
	}

	go s.alarms.RunMaintenance(ctx, maintenanceInterval)

	s.logger.Info("Smart wake service started successfully")

	// 启动送达回执消费者
	if err := s.delivery.Start(ctx); err != nil {
		return fmt.Errorf("failed to start delivery consumer: %w", err)
	}
	return nil
}

// Stop 停止服务
func (s *SmartWakeService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping smart wake service")

	if err := s.sessions.Stop(ctx); err != nil && !errors.Is(err, ErrNoActiveSession) {
		s.logger.Error("Error stopping active session", zap.Error(err))
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	// 关闭Redis
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Error closing Redis client", zap.Error(err))
		}
	}

	// 关闭数据库
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Error closing database connection", zap.Error(err))
		}
	}

	s.logger.Info("Smart wake service stopped")
	return nil
}
