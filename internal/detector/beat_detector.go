package detector

import (
	"sync"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"
)

const (
	MinSensitivity     = 1.5
	MaxSensitivity     = 8.0
	DefaultSensitivity = 3.0
	DefaultMinFloor    = 0.1
	DefaultBaseline    = 0.05 // 安静卧室的环境音量

	MinBPM = 40.0
	MaxBPM = 200.0

	// 两次心跳之间的最小间隔（对应 200 bpm）
	Debounce = 300 * time.Millisecond

	baselineKeep   = 0.98
	baselineAdapt  = 0.02
	smoothingKeep  = 0.7
	smoothingAdapt = 0.3
)

// BaselineState 心跳检测的校准状态，可跨会话保留
type BaselineState struct {
	Baseline    float64 `json:"baseline"`
	Sensitivity float64 `json:"sensitivity"`
	MinFloor    float64 `json:"min_floor"`
}

// DefaultBaselineState 默认校准状态
func DefaultBaselineState() BaselineState {
	return BaselineState{
		Baseline:    DefaultBaseline,
		Sensitivity: DefaultSensitivity,
		MinFloor:    DefaultMinFloor,
	}
}

// Clamped 返回修正到合法范围内的状态
func (s BaselineState) Clamped() BaselineState {
	s.Baseline = clamp(s.Baseline, 0, 1)
	s.Sensitivity = ClampSensitivity(s.Sensitivity)
	if s.MinFloor < 0 {
		s.MinFloor = 0
	}
	return s
}

// ClampSensitivity 灵敏度限制在 [1.5, 8]
func ClampSensitivity(v float64) float64 {
	return clamp(v, MinSensitivity, MaxSensitivity)
}

// BeatDetector 从环境音量采样中检测心跳并输出平滑心率
type BeatDetector struct {
	mu    sync.Mutex
	state BaselineState

	lastBeat    time.Time
	hasLastBeat bool
	smoothedHR  float64
	hasSmoothed bool
}

// NewBeatDetector 创建心跳检测器
func NewBeatDetector(state BaselineState) *BeatDetector {
	return &BeatDetector{state: state.Clamped()}
}

// Ingest 处理一个采样；只有被接受且存在上一次心跳时才返回 BeatEvent
func (d *BeatDetector) Ingest(sample models.AmplitudeSample) (models.BeatEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	amplitude := clamp(sample.Amplitude, 0, 1)
	spike := amplitude > d.state.Baseline*d.state.Sensitivity && amplitude > d.state.MinFloor
	if !spike {
		// 尖峰期间基线冻结
		d.state.Baseline = clamp(d.state.Baseline*baselineKeep+amplitude*baselineAdapt, 0, 1)
		return models.BeatEvent{}, false
	}

	if !d.hasLastBeat {
		d.lastBeat = sample.Timestamp
		d.hasLastBeat = true
		return models.BeatEvent{}, false
	}

	interval := sample.Timestamp.Sub(d.lastBeat)
	if interval < Debounce {
		return models.BeatEvent{}, false
	}
	d.lastBeat = sample.Timestamp

	bpm := clamp(float64(time.Minute)/float64(interval), MinBPM, MaxBPM)
	if d.hasSmoothed {
		d.smoothedHR = d.smoothedHR*smoothingKeep + bpm*smoothingAdapt
	} else {
		d.smoothedHR = bpm
		d.hasSmoothed = true
	}

	return models.BeatEvent{
		Timestamp:        sample.Timestamp,
		InstantaneousBPM: bpm,
		SmoothedHR:       d.smoothedHR,
	}, true
}

// Reset 清除心跳时间与平滑心率，基线和灵敏度保留
func (d *BeatDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasLastBeat = false
	d.lastBeat = time.Time{}
	d.hasSmoothed = false
	d.smoothedHR = 0
}

// SmoothedHR 当前平滑心率
func (d *BeatDetector) SmoothedHR() (float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.smoothedHR, d.hasSmoothed
}

// Sensitivity 当前灵敏度
func (d *BeatDetector) Sensitivity() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Sensitivity
}

// SetSensitivity 设置灵敏度（超出范围时截断），返回实际生效值
func (d *BeatDetector) SetSensitivity(v float64) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Sensitivity = ClampSensitivity(v)
	return d.state.Sensitivity
}

// Snapshot 导出校准状态
func (d *BeatDetector) Snapshot() BaselineState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Restore 恢复校准状态
func (d *BeatDetector) Restore(state BaselineState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = state.Clamped()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
