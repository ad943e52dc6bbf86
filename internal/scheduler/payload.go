package scheduler

import "github.com/CodingHusk3y/heartwake/internal/models"

const (
	defaultAlarmTitle  = "Alarm"
	windowStartTitle   = "Smart wake window"
	windowStartMessage = "Window started, keep app open for early wake"
)

// BuildPayload 生成触发的通知内容
func BuildPayload(alarm models.AlarmDefinition, trigger models.Trigger) models.TriggerPayload {
	if trigger.Kind == models.TriggerWindowStart {
		return models.TriggerPayload{
			AlarmID: alarm.ID,
			Kind:    models.TriggerWindowStart,
			Title:   windowStartTitle,
			Body:    windowStartMessage,
			Sound:   false,
		}
	}

	title := alarm.Label
	if title == "" {
		title = defaultAlarmTitle
	}
	return models.TriggerPayload{
		AlarmID: alarm.ID,
		Kind:    models.TriggerDeadline,
		Title:   title,
		Body:    alarm.TimeOfDay.String(),
		Sound:   true,
	}
}
