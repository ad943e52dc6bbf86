package scheduler

import (
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"
)

const (
	MaxWindowMinutes     = 180
	DefaultWindowMinutes = 30
	minutesPerDay        = 24 * 60
)

// Plan 计算闹钟的触发计划（给定 now 时为纯函数）
func Plan(alarm models.AlarmDefinition, now time.Time) (models.TriggerPlan, error) {
	if err := Validate(alarm); err != nil {
		return models.TriggerPlan{}, err
	}
	if alarm.Repeating() {
		return planRepeating(alarm, now)
	}
	return planOnce(alarm, now)
}

// Validate 校验闹钟参数（窗口不做截断，超出范围直接报错）
func Validate(alarm models.AlarmDefinition) error {
	if !alarm.TimeOfDay.Valid() {
		return models.NewConfigurationError("time_of_day", "%02d:%02d is not a valid time of day",
			alarm.TimeOfDay.Hour, alarm.TimeOfDay.Minute)
	}
	if alarm.WindowMinutes < 0 || alarm.WindowMinutes > MaxWindowMinutes {
		return models.NewConfigurationError("window_minutes", "%d out of range 0..%d",
			alarm.WindowMinutes, MaxWindowMinutes)
	}
	for _, d := range alarm.RepeatDays {
		if _, err := TriggerWeekday(d); err != nil {
			return err
		}
	}
	return nil
}

func planOnce(alarm models.AlarmDefinition, now time.Time) (models.TriggerPlan, error) {
	deadline := instantOn(now, 0, alarm.TimeOfDay)
	if deadline.Before(now) {
		deadline = instantOn(now, 1, alarm.TimeOfDay)
	}

	plan := models.TriggerPlan{
		AlarmID:  alarm.ID,
		NextFire: deadline,
		Triggers: []models.Trigger{{
			Kind:      models.TriggerDeadline,
			TimeOfDay: alarm.TimeOfDay,
			At:        deadline,
		}},
	}

	if window := alarm.SmartWindow(); window > 0 {
		windowStart := deadline.Add(-time.Duration(window) * time.Minute)
		if !windowStart.After(now) {
			return models.TriggerPlan{}, models.NewConfigurationError("window_minutes",
				"wake window of %d minutes starts at %s, not after now", window, windowStart.Format(time.RFC3339))
		}
		plan.Triggers = append(plan.Triggers, models.Trigger{
			Kind:      models.TriggerWindowStart,
			TimeOfDay: models.TimeOfDay{Hour: windowStart.Hour(), Minute: windowStart.Minute()},
			At:        windowStart,
		})
	}
	return plan, nil
}

func planRepeating(alarm models.AlarmDefinition, now time.Time) (models.TriggerPlan, error) {
	days := alarm.SortedRepeatDays()
	window := alarm.SmartWindow()

	plan := models.TriggerPlan{
		AlarmID:  alarm.ID,
		NextFire: NextOccurrence(alarm, now),
		Triggers: make([]models.Trigger, 0, len(days)*2),
	}

	for _, d := range days {
		weekday, err := TriggerWeekday(d)
		if err != nil {
			return models.TriggerPlan{}, err
		}
		plan.Triggers = append(plan.Triggers, models.Trigger{
			Kind:      models.TriggerDeadline,
			Repeats:   true,
			Weekday:   weekday,
			TimeOfDay: alarm.TimeOfDay,
		})

		if window == 0 {
			continue
		}
		total := alarm.TimeOfDay.Minutes() - window
		startDay := d
		if total < 0 {
			total += minutesPerDay
			startDay = previousWeekday(d)
		}
		startWeekday, err := TriggerWeekday(startDay)
		if err != nil {
			return models.TriggerPlan{}, err
		}
		plan.Triggers = append(plan.Triggers, models.Trigger{
			Kind:      models.TriggerWindowStart,
			Repeats:   true,
			Weekday:   startWeekday,
			TimeOfDay: models.TimeOfDay{Hour: total / 60, Minute: total % 60},
		})
	}
	return plan, nil
}

// instantOn now 所在日期加 days 天后的指定时刻（使用 now 的时区）
func instantOn(now time.Time, days int, tod models.TimeOfDay) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+days, tod.Hour, tod.Minute, 0, 0, now.Location())
}

// ClampWindow 调用方在保存闹钟前把窗口截断到 [0,180]
func ClampWindow(minutes int) int {
	if minutes < 0 {
		return 0
	}
	if minutes > MaxWindowMinutes {
		return MaxWindowMinutes
	}
	return minutes
}
