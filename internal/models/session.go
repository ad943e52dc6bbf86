package models

import "time"

// SessionConfig 实时监测输入（已解析为一次具体的闹钟发生时间）
type SessionConfig struct {
	SessionID     string    `json:"session_id"`
	AlarmID       string    `json:"alarm_id,omitempty"`
	Target        time.Time `json:"target"`
	WindowMinutes int       `json:"window_minutes"`
}

// WindowStart 唤醒窗口起点
func (c SessionConfig) WindowStart() time.Time {
	return c.Target.Add(-time.Duration(c.WindowMinutes) * time.Minute)
}

// SessionOutcome 会话结果（每个会话恰好一次）
type SessionOutcome struct {
	SessionID     string    `json:"session_id"`
	AlarmID       string    `json:"alarm_id,omitempty"`
	Stage         Stage     `json:"stage"`
	Early         bool      `json:"early"`
	WakeAt        time.Time `json:"wake_at"`
	MinutesEarly  int       `json:"minutes_early"`
	Target        time.Time `json:"target"`
	WindowMinutes int       `json:"window_minutes"`
}

// StoredSession 会话历史记录
type StoredSession struct {
	SessionOutcome
	Rating    *int      `json:"rating,omitempty"` // 唤醒质量评分 1..5
	CreatedAt time.Time `json:"created_at"`
}
