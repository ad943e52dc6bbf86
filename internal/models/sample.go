package models

import "time"

// AmplitudeSample 归一化环境音量采样（0..1）
type AmplitudeSample struct {
	Timestamp time.Time `json:"timestamp"`
	Amplitude float64   `json:"amplitude"`
}

// MotionSample 体动幅度采样（>= 0）
type MotionSample struct {
	Timestamp time.Time `json:"timestamp"`
	Magnitude float64   `json:"magnitude"`
}

// BeatEvent 一次被接受的心跳（不持久化）
type BeatEvent struct {
	Timestamp        time.Time `json:"timestamp"`
	InstantaneousBPM float64   `json:"instantaneous_bpm"`
	SmoothedHR       float64   `json:"smoothed_hr"`
}

// HeartRateSample 心率采样（来自心跳检测或外部心率源）
type HeartRateSample struct {
	Timestamp time.Time `json:"timestamp"`
	HR        float64   `json:"hr"`
	Source    string    `json:"source"` // "amplitude" 或 "external"
}

// LiveState 实时会话状态（写入 Redis 供展示端读取）
type LiveState struct {
	SessionID string    `json:"session_id"`
	AlarmID   string    `json:"alarm_id,omitempty"`
	HR        *float64  `json:"hr,omitempty"`
	HRSource  string    `json:"hr_source,omitempty"`
	Motion    *float64  `json:"motion,omitempty"`
	Stage     Stage     `json:"stage"`
	Target    time.Time `json:"target"`
	Window    int       `json:"window_minutes"`
	UpdatedAt time.Time `json:"updated_at"`
}
