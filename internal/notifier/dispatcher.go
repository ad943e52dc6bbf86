package notifier

import (
	"context"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"
)

// Dispatcher 通知分发器（实际的系统通知由外部网关负责）
type Dispatcher interface {
	// ScheduleOnce 在绝对时间触发一次
	ScheduleOnce(ctx context.Context, at time.Time, payload models.TriggerPayload) (string, error)
	// ScheduleRecurring 每周重复触发；weekday 使用触发编码 1=周日..7=周六
	ScheduleRecurring(ctx context.Context, weekday, hour, minute int, payload models.TriggerPayload) (string, error)
	// Cancel 取消已下发的触发
	Cancel(ctx context.Context, triggerID string) error
}

// 触发请求动作
const (
	ActionScheduleOnce      = "schedule_once"
	ActionScheduleRecurring = "schedule_recurring"
	ActionCancel            = "cancel"
)

// TriggerRequest 下发给网关的触发请求
type TriggerRequest struct {
	Action    string                 `json:"action"`
	TriggerID string                 `json:"trigger_id,omitempty"`
	At        *time.Time             `json:"at,omitempty"`
	Weekday   int                    `json:"weekday,omitempty"`
	Hour      int                    `json:"hour"`
	Minute    int                    `json:"minute"`
	Payload   *models.TriggerPayload `json:"payload,omitempty"`
}

// Dispatch 按触发类型调用分发器
func Dispatch(ctx context.Context, d Dispatcher, trigger models.Trigger, payload models.TriggerPayload) (string, error) {
	if trigger.Repeats {
		return d.ScheduleRecurring(ctx, trigger.Weekday, trigger.TimeOfDay.Hour, trigger.TimeOfDay.Minute, payload)
	}
	return d.ScheduleOnce(ctx, trigger.At, payload)
}
