package models

import "time"

// TriggerKind 触发类型
type TriggerKind string

const (
	TriggerDeadline    TriggerKind = "deadline"     // 最终闹钟时间
	TriggerWindowStart TriggerKind = "window_start" // 唤醒窗口开始提醒
)

// Trigger 一条触发请求
//   - Repeats=false: At 为绝对时间
//   - Repeats=true: Weekday（1=周日..7=周六）+ TimeOfDay
type Trigger struct {
	Kind      TriggerKind `json:"kind"`
	Repeats   bool        `json:"repeats"`
	Weekday   int         `json:"weekday,omitempty"`
	TimeOfDay TimeOfDay   `json:"time_of_day"`
	At        time.Time   `json:"at,omitempty"`
}

// TriggerPlan 调度器输出
type TriggerPlan struct {
	AlarmID  string    `json:"alarm_id"`
	Triggers []Trigger `json:"triggers"`
	NextFire time.Time `json:"next_fire"` // 下一次 Deadline 的具体时间
}

// Count 按类型计数
func (p TriggerPlan) Count(kind TriggerKind) int {
	n := 0
	for _, t := range p.Triggers {
		if t.Kind == kind {
			n++
		}
	}
	return n
}

// TriggerPayload 下发给通知分发器的内容
type TriggerPayload struct {
	AlarmID string      `json:"alarm_id"`
	Kind    TriggerKind `json:"type"`
	Title   string      `json:"title"`
	Body    string      `json:"body"`
	Sound   bool        `json:"sound"`
}

// TriggerDelivery 通知送达回执
type TriggerDelivery struct {
	TriggerID   string      `json:"trigger_id"`
	AlarmID     string      `json:"alarm_id"`
	Kind        TriggerKind `json:"type"`
	DeliveredAt time.Time   `json:"delivered_at"`
}
