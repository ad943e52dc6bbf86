package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimeOfDay 一天中的时刻（24 小时制）
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseTimeOfDay 解析 "HH:MM"
func ParseTimeOfDay(hhmm string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(strings.TrimSpace(hhmm), "%d:%d", &t.Hour, &t.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", hhmm, err)
	}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", hhmm)
	}
	return t, nil
}

// Valid 小时 0..23，分钟 0..59
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// Minutes 距零点的分钟数
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// AlarmDefinition 闹钟定义（由闹钟存储持有，调度器只读）
// RepeatDays 使用存储编码：0=周日 .. 6=周六（与 time.Weekday 一致），为空表示单次闹钟
type AlarmDefinition struct {
	ID               string         `json:"id"`
	Label            string         `json:"label,omitempty"`
	TimeOfDay        TimeOfDay      `json:"time_of_day"`
	RepeatDays       []time.Weekday `json:"repeat_days,omitempty"`
	WindowMinutes    int            `json:"window_minutes"`
	SmartWakeEnabled bool           `json:"smart_wake_enabled"`
	Enabled          bool           `json:"enabled"`

	// 调度结果（由调度服务回写）
	TriggerIDs []string   `json:"trigger_ids,omitempty"`
	NextFireAt *time.Time `json:"next_fire_at,omitempty"`
}

// Repeating 是否为重复闹钟
func (a AlarmDefinition) Repeating() bool {
	return len(a.RepeatDays) > 0
}

// SmartWindow 生效的智能唤醒窗口（未启用时为 0）
func (a AlarmDefinition) SmartWindow() int {
	if !a.SmartWakeEnabled || a.WindowMinutes <= 0 {
		return 0
	}
	return a.WindowMinutes
}

// SortedRepeatDays 去重并升序排列的重复日
func (a AlarmDefinition) SortedRepeatDays() []time.Weekday {
	seen := make(map[time.Weekday]bool, len(a.RepeatDays))
	days := make([]time.Weekday, 0, len(a.RepeatDays))
	for _, d := range a.RepeatDays {
		if seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

var weekdayShort = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// RepeatSummary 重复日的简短描述
func RepeatSummary(days []time.Weekday) string {
	a := AlarmDefinition{RepeatDays: days}
	sorted := a.SortedRepeatDays()
	set := make(map[time.Weekday]bool, len(sorted))
	for _, d := range sorted {
		set[d] = true
	}

	switch {
	case len(sorted) == 0:
		return "Once"
	case len(sorted) == 7:
		return "Every day"
	case len(sorted) == 5 && !set[time.Sunday] && !set[time.Saturday]:
		return "Weekdays"
	case len(sorted) == 2 && set[time.Sunday] && set[time.Saturday]:
		return "Weekends"
	}

	names := make([]string, 0, len(sorted))
	for _, d := range sorted {
		if d >= time.Sunday && d <= time.Saturday {
			names = append(names, weekdayShort[d])
		}
	}
	return strings.Join(names, ", ")
}
