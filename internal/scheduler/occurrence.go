package scheduler

import (
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"
)

// NextOccurrence 闹钟下一次响铃的具体时间
//   - 重复闹钟：7 天内第一个晚于 now 的已选日期，否则顺延一周
//   - 单次闹钟：今天该时刻，已过则为明天
func NextOccurrence(alarm models.AlarmDefinition, now time.Time) time.Time {
	if !alarm.Repeating() {
		next := instantOn(now, 0, alarm.TimeOfDay)
		if next.Before(now) {
			next = instantOn(now, 1, alarm.TimeOfDay)
		}
		return next
	}

	selected := make(map[time.Weekday]bool, len(alarm.RepeatDays))
	for _, d := range alarm.RepeatDays {
		selected[d] = true
	}
	for offset := 0; offset < 7; offset++ {
		candidate := instantOn(now, offset, alarm.TimeOfDay)
		if selected[candidate.Weekday()] && candidate.After(now) {
			return candidate
		}
	}
	// 只选了今天且今天已过
	return instantOn(now, 7, alarm.TimeOfDay)
}

// ResolveSession 将闹钟解析为一次具体的监测会话
func ResolveSession(alarm models.AlarmDefinition, now time.Time) models.SessionConfig {
	return models.SessionConfig{
		AlarmID:       alarm.ID,
		Target:        NextOccurrence(alarm, now),
		WindowMinutes: alarm.SmartWindow(),
	}
}

// CheckWindowFits 唤醒窗口不得覆盖到 now 之前
func CheckWindowFits(alarm models.AlarmDefinition, now time.Time) error {
	if err := Validate(alarm); err != nil {
		return err
	}
	window := alarm.SmartWindow()
	if window == 0 {
		return nil
	}
	remaining := NextOccurrence(alarm, now).Sub(now)
	if time.Duration(window)*time.Minute >= remaining {
		return models.NewConfigurationError("window_minutes",
			"wake window of %d minutes is not shorter than the %d minutes until the alarm",
			window, int(remaining.Minutes()))
	}
	return nil
}
