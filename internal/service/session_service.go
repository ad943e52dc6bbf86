package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/config"
	"github.com/CodingHusk3y/heartwake/internal/detector"
	"github.com/CodingHusk3y/heartwake/internal/models"
	"github.com/CodingHusk3y/heartwake/internal/monitor"
	"github.com/CodingHusk3y/heartwake/internal/scheduler"
	"github.com/CodingHusk3y/heartwake/internal/staging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoActiveSession 当前没有监测会话
var ErrNoActiveSession = errors.New("no active session")

// 回调中访问外部存储的超时
const callbackTimeout = 5 * time.Second

// MotionSource 体动源
type MotionSource interface {
	Start(ctx context.Context, handler func(models.MotionSample)) error
	Stop()
}

// HeartRateSource 外部心率源
type HeartRateSource interface {
	Start(ctx context.Context, handler func(models.HeartRateSample)) error
	Stop()
}

// Sensors 会话使用的传感器（HeartRate 可为空）
type Sensors struct {
	Amplitude detector.AmplitudeSource
	Motion    MotionSource
	HeartRate HeartRateSource
}

// SessionRecorder 会话结果记录（*repository.SessionRepository 实现）
type SessionRecorder interface {
	Save(ctx context.Context, outcome models.SessionOutcome) error
}

// LiveCache 实时状态缓存（*consumer.CacheManager 实现）
type LiveCache interface {
	SetLiveState(ctx context.Context, state models.LiveState) error
	SetOutcome(ctx context.Context, outcome models.SessionOutcome) error
	SetActiveSession(ctx context.Context, sessionID string) error
	ClearActiveSession(ctx context.Context, sessionID string) error
}

// BaselineStore 校准状态存储（*consumer.StateManager 实现）
type BaselineStore interface {
	LoadBaseline(ctx context.Context, deviceID string) (detector.BaselineState, bool, error)
	SaveBaseline(ctx context.Context, deviceID string, state detector.BaselineState) error
}

// ThresholdsFromConfig 分期阈值
func ThresholdsFromConfig(cfg *config.Config) staging.Thresholds {
	return staging.Thresholds{
		MovingThreshold: cfg.Staging.MovingThreshold,
		StillThreshold:  cfg.Staging.StillThreshold,
		DeepHRMin:       cfg.Staging.DeepHRMin,
		DeepHRMax:       cfg.Staging.DeepHRMax,
		REMHRMin:        cfg.Staging.REMHRMin,
		REMHRMax:        cfg.Staging.REMHRMax,
		REMMotionMax:    cfg.Staging.REMMotionMax,
	}
}

// activeSession 一个正在监测的会话
type activeSession struct {
	cfg      models.SessionConfig
	monitor  *monitor.WakeMonitor
	feed     *detector.Feed
	external bool // 使用外部心率源

	hr       *float64
	hrSource string
	motion   *float64
	stage    models.Stage
}

// SessionService 实时唤醒会话：音量 -> 心跳检测 -> 分期（结合体动）-> 唤醒监测
type SessionService struct {
	config     *config.Config
	alarms     AlarmStore
	recorder   SessionRecorder
	cache      LiveCache
	baselines  BaselineStore
	sensors    Sensors
	detector   *detector.BeatDetector
	classifier *staging.Classifier
	now        func() time.Time
	logger     *zap.Logger

	mu      sync.Mutex
	session *activeSession
	last    *models.SessionOutcome
}

// NewSessionService 创建会话服务
func NewSessionService(
	cfg *config.Config,
	alarms AlarmStore,
	recorder SessionRecorder,
	cache LiveCache,
	baselines BaselineStore,
	sensors Sensors,
	logger *zap.Logger,
) *SessionService {
	state := detector.DefaultBaselineState()
	state.Sensitivity = cfg.SmartWake.Sensitivity
	state.MinFloor = cfg.SmartWake.MinFloor

	return &SessionService{
		config:     cfg,
		alarms:     alarms,
		recorder:   recorder,
		cache:      cache,
		baselines:  baselines,
		sensors:    sensors,
		detector:   detector.NewBeatDetector(state),
		classifier: staging.NewClassifier(ThresholdsFromConfig(cfg)),
		now:        time.Now,
		logger:     logger,
	}
}

// LoadCalibration 恢复上一次保存的校准状态
func (s *SessionService) LoadCalibration(ctx context.Context) error {
	state, found, err := s.baselines.LoadBaseline(ctx, s.config.Sensors.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to load calibration: %w", err)
	}
	if found {
		s.detector.Restore(state)
		s.logger.Info("Calibration restored",
			zap.String("device_id", s.config.Sensors.DeviceID),
			zap.Float64("baseline", state.Baseline),
			zap.Float64("sensitivity", state.Sensitivity),
		)
	}
	return nil
}

// StartForAlarm 按闹钟的下一次响铃开始监测
func (s *SessionService) StartForAlarm(ctx context.Context, alarmID string) (models.SessionConfig, error) {
	alarm, err := s.alarms.Get(ctx, alarmID)
	if err != nil {
		return models.SessionConfig{}, err
	}
	if err := scheduler.Validate(*alarm); err != nil {
		return models.SessionConfig{}, err
	}
	cfg := scheduler.ResolveSession(*alarm, s.now().In(s.config.Location()))
	return s.Start(ctx, cfg)
}

// Start 开始监测会话（替换当前会话）
func (s *SessionService) Start(ctx context.Context, cfg models.SessionConfig) (models.SessionConfig, error) {
	if cfg.WindowMinutes < 0 || cfg.WindowMinutes > scheduler.MaxWindowMinutes {
		return models.SessionConfig{}, models.NewConfigurationError("window_minutes",
			"%d out of range 0..%d", cfg.WindowMinutes, scheduler.MaxWindowMinutes)
	}
	if cfg.Target.IsZero() {
		return models.SessionConfig{}, models.NewConfigurationError("target", "target instant is required")
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.New().String()
	}

	if prev := s.detach(); prev != nil {
		s.logger.Info("Replacing active session", zap.String("session_id", prev.cfg.SessionID))
		prev.monitor.Stop()
		s.stopSensors(prev)
	}

	// 校准状态跨会话保留，只清除心跳计时
	s.detector.Reset()

	sess := &activeSession{
		cfg:   cfg,
		stage: models.StageUnknown,
		monitor: monitor.NewWakeMonitor(
			monitor.WithInterval(s.config.SmartWake.TickInterval),
			monitor.WithClock(s.now),
			monitor.WithLogger(s.logger),
		),
	}
	sid := cfg.SessionID
	sess.feed = detector.NewFeed(s.detector, func(beat models.BeatEvent) {
		s.onHeartRate(sid, beat.SmoothedHR, "amplitude")
	}, s.logger)

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	// 会话生命周期不随请求结束
	sessCtx := context.WithoutCancel(ctx)
	s.startSensors(sessCtx, sess)

	if err := sess.monitor.Start(sessCtx, cfg, func(outcome models.SessionOutcome) {
		s.onFired(sid, outcome)
	}); err != nil {
		s.detach()
		s.stopSensors(sess)
		return models.SessionConfig{}, err
	}

	if err := s.cache.SetActiveSession(ctx, sid); err != nil {
		s.logger.Warn("Failed to mark active session", zap.Error(err))
	}
	s.publishLive(sid)

	s.logger.Info("Session started",
		zap.String("session_id", sid),
		zap.String("alarm_id", cfg.AlarmID),
		zap.Time("target", cfg.Target),
		zap.Int("window_minutes", cfg.WindowMinutes),
	)
	return cfg, nil
}

func (s *SessionService) startSensors(ctx context.Context, sess *activeSession) {
	sid := sess.cfg.SessionID

	amplitudeOK := s.sensors.Amplitude != nil && sess.feed.Start(ctx, s.sensors.Amplitude)
	if !amplitudeOK {
		// 音量源不可用：回退到外部心率源，否则在没有心率的情况下继续（分期为 Unknown）
		if s.sensors.HeartRate != nil {
			err := s.sensors.HeartRate.Start(ctx, func(sample models.HeartRateSample) {
				s.onHeartRate(sid, sample.HR, sample.Source)
			})
			if err == nil {
				sess.external = true
				s.logger.Info("Using external heart rate source", zap.String("session_id", sid))
			} else {
				s.logger.Warn("External heart rate source unavailable", zap.Error(err))
			}
		}
		if !sess.external {
			s.logger.Warn("No heart rate source, proceeding without heart rate", zap.String("session_id", sid))
		}
	}

	if s.sensors.Motion != nil {
		if err := s.sensors.Motion.Start(ctx, func(sample models.MotionSample) {
			s.onMotion(sid, sample.Magnitude)
		}); err != nil {
			s.logger.Warn("Motion source unavailable", zap.String("session_id", sid), zap.Error(err))
		}
	}
}

func (s *SessionService) stopSensors(sess *activeSession) {
	sess.feed.Stop()
	if sess.external && s.sensors.HeartRate != nil {
		s.sensors.HeartRate.Stop()
	}
	if s.sensors.Motion != nil {
		s.sensors.Motion.Stop()
	}
}

// detach 取下当前会话（之后的传感器回调均被忽略）
func (s *SessionService) detach() *activeSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session
	s.session = nil
	return sess
}

func (s *SessionService) onHeartRate(sessionID string, hr float64, source string) {
	s.update(sessionID, func(sess *activeSession) {
		sess.hr = &hr
		sess.hrSource = source
	})
}

func (s *SessionService) onMotion(sessionID string, magnitude float64) {
	s.update(sessionID, func(sess *activeSession) {
		sess.motion = &magnitude
	})
}

// update 更新输入并重新分期，然后通知唤醒监测
func (s *SessionService) update(sessionID string, apply func(*activeSession)) {
	s.mu.Lock()
	sess := s.session
	if sess == nil || sess.cfg.SessionID != sessionID {
		s.mu.Unlock()
		return
	}
	apply(sess)
	sess.stage = s.classifier.Classify(sess.hr, sess.motion)
	stage := sess.stage
	s.mu.Unlock()

	sess.monitor.OnStageUpdate(stage)
	s.publishLive(sessionID)
}

func (s *SessionService) publishLive(sessionID string) {
	state, ok := s.liveState(sessionID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()
	if err := s.cache.SetLiveState(ctx, state); err != nil {
		s.logger.Debug("Failed to cache live state", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *SessionService) liveState(sessionID string) (models.LiveState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session
	if sess == nil || (sessionID != "" && sess.cfg.SessionID != sessionID) {
		return models.LiveState{}, false
	}
	return models.LiveState{
		SessionID: sess.cfg.SessionID,
		AlarmID:   sess.cfg.AlarmID,
		HR:        sess.hr,
		HRSource:  sess.hrSource,
		Motion:    sess.motion,
		Stage:     sess.stage,
		Target:    sess.cfg.Target,
		Window:    sess.cfg.WindowMinutes,
		UpdatedAt: s.now(),
	}, true
}

// Live 当前会话的实时状态
func (s *SessionService) Live() (models.LiveState, error) {
	state, ok := s.liveState("")
	if !ok {
		return models.LiveState{}, ErrNoActiveSession
	}
	return state, nil
}

// onFired 唤醒监测回调：保存结果、缓存、重置检测器并保存校准
func (s *SessionService) onFired(sessionID string, outcome models.SessionOutcome) {
	s.mu.Lock()
	sess := s.session
	if sess == nil || sess.cfg.SessionID != sessionID {
		s.mu.Unlock()
		return
	}
	s.session = nil
	s.last = &outcome
	s.mu.Unlock()

	s.stopSensors(sess)

	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()

	if err := s.recorder.Save(ctx, outcome); err != nil {
		s.logger.Error("Failed to record session outcome",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
	if err := s.cache.SetOutcome(ctx, outcome); err != nil {
		s.logger.Warn("Failed to cache session outcome", zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := s.cache.ClearActiveSession(ctx, sessionID); err != nil {
		s.logger.Warn("Failed to clear active session", zap.String("session_id", sessionID), zap.Error(err))
	}

	s.detector.Reset()
	s.saveCalibration(ctx)

	s.logger.Info("Session finished",
		zap.String("session_id", sessionID),
		zap.Bool("early", outcome.Early),
		zap.Int("minutes_early", outcome.MinutesEarly),
		zap.String("stage", outcome.Stage.String()),
	)
}

// Stop 手动结束当前会话，不产生结果
func (s *SessionService) Stop(ctx context.Context) error {
	sess := s.detach()
	if sess == nil {
		return ErrNoActiveSession
	}
	sess.monitor.Stop()
	s.stopSensors(sess)
	s.detector.Reset()

	if err := s.cache.ClearActiveSession(ctx, sess.cfg.SessionID); err != nil {
		s.logger.Warn("Failed to clear active session", zap.Error(err))
	}
	s.saveCalibration(ctx)

	s.logger.Info("Session stopped", zap.String("session_id", sess.cfg.SessionID))
	return nil
}

// LastOutcome 最近一次会话结果
func (s *SessionService) LastOutcome() (models.SessionOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return models.SessionOutcome{}, false
	}
	return *s.last, true
}

// Sensitivity 当前心跳检测灵敏度
func (s *SessionService) Sensitivity() float64 {
	return s.detector.Sensitivity()
}

// SetSensitivity 设置灵敏度（截断到 [1.5,8]）并保存
func (s *SessionService) SetSensitivity(ctx context.Context, v float64) float64 {
	applied := s.detector.SetSensitivity(v)
	s.saveCalibration(ctx)
	return applied
}

func (s *SessionService) saveCalibration(ctx context.Context) {
	if err := s.baselines.SaveBaseline(ctx, s.config.Sensors.DeviceID, s.detector.Snapshot()); err != nil {
		s.logger.Warn("Failed to save calibration", zap.Error(err))
	}
}

// Monitor 当前会话的唤醒监测器（测试与诊断用）
func (s *SessionService) Monitor() *monitor.WakeMonitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	return s.session.monitor
}
