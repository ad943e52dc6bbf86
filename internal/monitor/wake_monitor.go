package monitor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"

	"go.uber.org/zap"
)

// DefaultTickInterval 唤醒窗口检查间隔
const DefaultTickInterval = 15 * time.Second

// State 监测状态
type State int

const (
	StateIdle State = iota
	StateMonitoring
	StateFiredEarly
	StateFiredDeadline
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMonitoring:
		return "monitoring"
	case StateFiredEarly:
		return "fired_early"
	case StateFiredDeadline:
		return "fired_deadline"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal 是否为终止状态
func (s State) Terminal() bool {
	return s == StateFiredEarly || s == StateFiredDeadline
}

// OnFired 唤醒回调，每个会话恰好调用一次
type OnFired func(models.SessionOutcome)

// Option 可选配置
type Option func(*WakeMonitor)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(m *WakeMonitor) { m.now = now }
}

// WithInterval 设置检查间隔
func WithInterval(d time.Duration) Option {
	return func(m *WakeMonitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(m *WakeMonitor) { m.logger = logger }
}

// WakeMonitor 会话状态机：在唤醒窗口内等待可唤醒阶段，否则在截止时间唤醒
type WakeMonitor struct {
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	cfg         models.SessionConfig
	windowStart time.Time
	stage       models.Stage
	onFired     OnFired
	generation  uint64
	cancel      context.CancelFunc
}

// NewWakeMonitor 创建唤醒监测器
func NewWakeMonitor(opts ...Option) *WakeMonitor {
	m := &WakeMonitor{
		interval: DefaultTickInterval,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start 开始监测一个会话（替换之前的监测）
func (m *WakeMonitor) Start(ctx context.Context, cfg models.SessionConfig, onFired OnFired) error {
	if cfg.WindowMinutes < 0 {
		return models.NewConfigurationError("window_minutes", "%d must not be negative", cfg.WindowMinutes)
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.generation++
	gen := m.generation
	m.state = StateMonitoring
	m.cfg = cfg
	m.windowStart = cfg.WindowStart()
	m.stage = models.StageUnknown
	m.onFired = onFired

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info("Wake monitor started",
		zap.String("session_id", cfg.SessionID),
		zap.Time("target", cfg.Target),
		zap.Time("window_start", cfg.WindowStart()),
		zap.Duration("interval", m.interval),
	)

	go m.loop(loopCtx, gen)
	return nil
}

func (m *WakeMonitor) loop(ctx context.Context, gen uint64) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Wake monitor loop panic", zap.Any("panic", r))
		}
	}()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// 立即检查一次
	m.tick(gen, m.now())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(gen, m.now())
		}
	}
}

// OnStageUpdate 记录最新睡眠阶段（后写覆盖，不触发状态变化）
func (m *WakeMonitor) OnStageUpdate(stage models.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateMonitoring {
		m.stage = stage
	}
}

// Tick 以给定时间检查一次窗口
func (m *WakeMonitor) Tick(now time.Time) {
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()
	m.tick(gen, now)
}

func (m *WakeMonitor) tick(gen uint64, now time.Time) {
	m.mu.Lock()
	if gen != m.generation || m.state != StateMonitoring {
		m.mu.Unlock()
		return
	}

	target := m.cfg.Target
	outcome := models.SessionOutcome{
		SessionID:     m.cfg.SessionID,
		AlarmID:       m.cfg.AlarmID,
		Stage:         m.stage,
		WakeAt:        now,
		Target:        target,
		WindowMinutes: m.cfg.WindowMinutes,
	}

	switch {
	case now.Before(m.windowStart):
		m.mu.Unlock()
		return
	case !now.After(target) && m.stage.IsWakeEligible():
		m.state = StateFiredEarly
		outcome.Early = true
		outcome.MinutesEarly = minutesUntil(now, target)
	case now.After(target):
		m.state = StateFiredDeadline
	default:
		m.mu.Unlock()
		return
	}

	// 到这里已完成状态切换，后续 tick 均为空操作
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	onFired := m.onFired
	state := m.state
	m.mu.Unlock()

	m.logger.Info("Wake monitor fired",
		zap.String("session_id", outcome.SessionID),
		zap.String("state", state.String()),
		zap.String("stage", outcome.Stage.String()),
		zap.Int("minutes_early", outcome.MinutesEarly),
	)
	m.invoke(onFired, outcome)
}

func (m *WakeMonitor) invoke(onFired OnFired, outcome models.SessionOutcome) {
	if onFired == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Wake callback panic",
				zap.String("session_id", outcome.SessionID),
				zap.Any("panic", r),
			)
		}
	}()
	onFired(outcome)
}

// Stop 取消监测，不调用回调；任意状态下均可调用
func (m *WakeMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.state == StateMonitoring {
		m.state = StateStopped
		m.logger.Info("Wake monitor stopped", zap.String("session_id", m.cfg.SessionID))
	}
}

// State 当前状态
func (m *WakeMonitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stage 最近一次记录的阶段
func (m *WakeMonitor) Stage() models.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

func minutesUntil(now, target time.Time) int {
	remaining := target.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Minutes()))
}
