package detector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"

	"go.uber.org/zap"
)

// DefaultPollInterval 环境音量采样间隔（20Hz）
const DefaultPollInterval = 50 * time.Millisecond

// ErrNoReading 本次读取没有音量值（按静音处理）
var ErrNoReading = errors.New("no level reading")

// SampleHandler 采样回调
type SampleHandler func(models.AmplitudeSample)

// AmplitudeSource 环境音量源（推送方式）
type AmplitudeSource interface {
	// Start 获取传感器并开始推送；获取失败时返回包装了 models.ErrSensorUnavailable 的错误
	Start(ctx context.Context, handler SampleHandler) error
	Stop()
}

// LevelMeter 可轮询的音量计（返回 dB）
type LevelMeter interface {
	Open(ctx context.Context) error
	ReadLevel(ctx context.Context) (float64, error)
	Close() error
}

// PollingSource 以固定间隔轮询 LevelMeter，转换为推送源
type PollingSource struct {
	meter    LevelMeter
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPollingSource 创建轮询源
func NewPollingSource(meter LevelMeter, interval time.Duration, logger *zap.Logger) *PollingSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollingSource{
		meter:    meter,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Start 打开音量计并启动轮询
func (p *PollingSource) Start(ctx context.Context, handler SampleHandler) error {
	if err := p.meter.Open(ctx); err != nil {
		return fmt.Errorf("failed to open level meter: %w: %v", models.ErrSensorUnavailable, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx, handler, p.done)
	return nil
}

func (p *PollingSource) loop(ctx context.Context, handler SampleHandler, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, handler)
		}
	}
}

func (p *PollingSource) poll(ctx context.Context, handler SampleHandler) {
	db, err := p.meter.ReadLevel(ctx)
	switch {
	case errors.Is(err, ErrNoReading):
		db = SilenceDecibels
	case err != nil:
		// 单次读取失败：跳过该采样，继续轮询
		p.logger.Debug("Level meter read failed, skipping sample", zap.Error(err))
		return
	}
	handler(models.AmplitudeSample{
		Timestamp: p.now(),
		Amplitude: AmplitudeFromDecibels(db),
	})
}

// Stop 停止轮询并关闭音量计
func (p *PollingSource) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	if err := p.meter.Close(); err != nil {
		p.logger.Warn("Failed to close level meter", zap.Error(err))
	}
}

// BeatHandler 心跳回调
type BeatHandler func(models.BeatEvent)

// Feed 将音量源接入心跳检测器
type Feed struct {
	detector *BeatDetector
	onBeat   BeatHandler
	logger   *zap.Logger

	mu     sync.Mutex
	source AmplitudeSource
}

// NewFeed 创建检测管道
func NewFeed(detector *BeatDetector, onBeat BeatHandler, logger *zap.Logger) *Feed {
	return &Feed{
		detector: detector,
		onBeat:   onBeat,
		logger:   logger,
	}
}

// Start 启动音量源；传感器不可用时返回 false，调用方需回退到其他心率源
func (f *Feed) Start(ctx context.Context, source AmplitudeSource) bool {
	f.Stop()

	if err := source.Start(ctx, f.handle); err != nil {
		f.logger.Warn("Amplitude source unavailable",
			zap.Bool("sensor_unavailable", errors.Is(err, models.ErrSensorUnavailable)),
			zap.Error(err),
		)
		return false
	}

	f.mu.Lock()
	f.source = source
	f.mu.Unlock()

	f.logger.Info("Amplitude feed started")
	return true
}

func (f *Feed) handle(sample models.AmplitudeSample) {
	beat, ok := f.detector.Ingest(sample)
	if !ok || f.onBeat == nil {
		return
	}
	f.onBeat(beat)
}

// Stop 停止音量源
func (f *Feed) Stop() {
	f.mu.Lock()
	source := f.source
	f.source = nil
	f.mu.Unlock()

	if source != nil {
		source.Stop()
	}
}
