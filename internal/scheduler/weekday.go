package scheduler

import (
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"
)

// 闹钟存储使用 0=周日..6=周六（time.Weekday）；
// 通知分发器的重复触发使用 1=周日..7=周六。两种编码只在这里互转。

// TriggerWeekday 存储编码 => 触发编码
func TriggerWeekday(d time.Weekday) (int, error) {
	if d < time.Sunday || d > time.Saturday {
		return 0, models.NewConfigurationError("repeat_days", "weekday %d out of range 0..6", int(d))
	}
	if d == time.Sunday {
		return 1, nil
	}
	return int(d) + 1, nil
}

// StoreWeekday 触发编码 => 存储编码
func StoreWeekday(triggerWeekday int) (time.Weekday, error) {
	if triggerWeekday < 1 || triggerWeekday > 7 {
		return 0, models.NewConfigurationError("weekday", "trigger weekday %d out of range 1..7", triggerWeekday)
	}
	return time.Weekday(triggerWeekday - 1), nil
}

// previousWeekday 前一天（周日的前一天为周六）
func previousWeekday(d time.Weekday) time.Weekday {
	return (d + 6) % 7
}
