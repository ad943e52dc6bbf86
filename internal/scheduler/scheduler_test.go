package scheduler

import (
	"testing"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-03-04 为周一
func at(day, hour, minute int) time.Time {
	return time.Date(2024, 3, day, hour, minute, 0, 0, time.UTC)
}

func alarmAt(hour, minute, window int, days ...time.Weekday) models.AlarmDefinition {
	return models.AlarmDefinition{
		ID:               "alarm-1",
		TimeOfDay:        models.TimeOfDay{Hour: hour, Minute: minute},
		RepeatDays:       days,
		WindowMinutes:    window,
		SmartWakeEnabled: true,
		Enabled:          true,
	}
}

func TestWeekdayRoundTrip(t *testing.T) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		tw, err := TriggerWeekday(d)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, tw, 1)
		assert.LessOrEqual(t, tw, 7)

		back, err := StoreWeekday(tw)
		require.NoError(t, err)
		assert.Equal(t, d, back)
	}

	sunday, _ := TriggerWeekday(time.Sunday)
	assert.Equal(t, 1, sunday)
	saturday, _ := TriggerWeekday(time.Saturday)
	assert.Equal(t, 7, saturday)
}

func TestWeekdayOutOfRange(t *testing.T) {
	_, err := TriggerWeekday(time.Weekday(7))
	assert.True(t, models.IsConfigurationError(err))
	_, err = StoreWeekday(0)
	assert.True(t, models.IsConfigurationError(err))
	_, err = StoreWeekday(8)
	assert.True(t, models.IsConfigurationError(err))
}

func TestPlan_OnceWithWindow(t *testing.T) {
	plan, err := Plan(alarmAt(7, 0, 30), at(4, 6, 0))
	require.NoError(t, err)

	require.Len(t, plan.Triggers, 2)
	assert.Equal(t, models.TriggerDeadline, plan.Triggers[0].Kind)
	assert.False(t, plan.Triggers[0].Repeats)
	assert.Equal(t, at(4, 7, 0), plan.Triggers[0].At)

	assert.Equal(t, models.TriggerWindowStart, plan.Triggers[1].Kind)
	assert.Equal(t, at(4, 6, 30), plan.Triggers[1].At)
	assert.Equal(t, models.TimeOfDay{Hour: 6, Minute: 30}, plan.Triggers[1].TimeOfDay)

	assert.Equal(t, at(4, 7, 0), plan.NextFire)
	assert.Equal(t, "alarm-1", plan.AlarmID)
}

func TestPlan_OnceRollsToTomorrow(t *testing.T) {
	plan, err := Plan(alarmAt(7, 0, 30), at(4, 8, 15))
	require.NoError(t, err)

	assert.Equal(t, at(5, 7, 0), plan.Triggers[0].At)
	assert.Equal(t, at(5, 6, 30), plan.Triggers[1].At)
}

func TestPlan_OnceExactlyNowIsValid(t *testing.T) {
	a := alarmAt(7, 0, 0)
	plan, err := Plan(a, at(4, 7, 0))
	require.NoError(t, err)
	require.Len(t, plan.Triggers, 1)
	assert.Equal(t, at(4, 7, 0), plan.Triggers[0].At)
}

func TestPlan_OnceWindowAlreadyStarted(t *testing.T) {
	_, err := Plan(alarmAt(7, 0, 30), at(4, 6, 45))
	require.Error(t, err)
	assert.True(t, models.IsConfigurationError(err))

	// 窗口起点恰好等于 now 同样是配置错误
	_, err = Plan(alarmAt(7, 0, 30), at(4, 6, 30))
	assert.True(t, models.IsConfigurationError(err))
}

func TestPlan_OnceSmartWakeDisabled(t *testing.T) {
	a := alarmAt(7, 0, 30)
	a.SmartWakeEnabled = false
	plan, err := Plan(a, at(4, 6, 45))
	require.NoError(t, err)
	require.Len(t, plan.Triggers, 1)
	assert.Equal(t, models.TriggerDeadline, plan.Triggers[0].Kind)
}

func TestPlan_OnceInvariant(t *testing.T) {
	for _, window := range []int{0, 15, 90, 180} {
		for hour := 0; hour < 24; hour += 5 {
			plan, err := Plan(alarmAt(hour, 20, window), at(4, 1, 0))
			if err != nil {
				assert.True(t, models.IsConfigurationError(err))
				continue
			}
			assert.Equal(t, 1, plan.Count(models.TriggerDeadline))
			assert.LessOrEqual(t, plan.Count(models.TriggerWindowStart), 1)
		}
	}
}

func TestPlan_RepeatingWindowCrossesMidnight(t *testing.T) {
	plan, err := Plan(alarmAt(0, 10, 30, time.Monday), at(4, 12, 0))
	require.NoError(t, err)
	require.Len(t, plan.Triggers, 2)

	deadline := plan.Triggers[0]
	assert.Equal(t, models.TriggerDeadline, deadline.Kind)
	assert.True(t, deadline.Repeats)
	assert.Equal(t, 2, deadline.Weekday)
	assert.Equal(t, models.TimeOfDay{Hour: 0, Minute: 10}, deadline.TimeOfDay)

	start := plan.Triggers[1]
	assert.Equal(t, models.TriggerWindowStart, start.Kind)
	assert.True(t, start.Repeats)
	assert.Equal(t, 1, start.Weekday)
	assert.Equal(t, models.TimeOfDay{Hour: 23, Minute: 40}, start.TimeOfDay)

	store, err := StoreWeekday(start.Weekday)
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, store)
}

func TestPlan_RepeatingSundayWrapsToSaturday(t *testing.T) {
	plan, err := Plan(alarmAt(0, 5, 60, time.Sunday), at(4, 12, 0))
	require.NoError(t, err)
	require.Len(t, plan.Triggers, 2)
	assert.Equal(t, 1, plan.Triggers[0].Weekday)
	assert.Equal(t, 7, plan.Triggers[1].Weekday)
	assert.Equal(t, models.TimeOfDay{Hour: 23, Minute: 5}, plan.Triggers[1].TimeOfDay)
}

func TestPlan_RepeatingOnePerWeekday(t *testing.T) {
	// 重复日乱序且重复，按集合处理
	a := alarmAt(6, 30, 20, time.Friday, time.Monday, time.Wednesday, time.Monday)
	plan, err := Plan(a, at(4, 12, 0))
	require.NoError(t, err)

	assert.Equal(t, 3, plan.Count(models.TriggerDeadline))
	assert.Equal(t, 3, plan.Count(models.TriggerWindowStart))

	var deadlineDays, startDays []int
	for _, tr := range plan.Triggers {
		if tr.Kind == models.TriggerDeadline {
			deadlineDays = append(deadlineDays, tr.Weekday)
		} else {
			startDays = append(startDays, tr.Weekday)
			assert.Equal(t, models.TimeOfDay{Hour: 6, Minute: 10}, tr.TimeOfDay)
		}
	}
	assert.Equal(t, []int{2, 4, 6}, deadlineDays)
	assert.Equal(t, []int{2, 4, 6}, startDays)

	// 周一 12:00 之后的下一次是周三
	assert.Equal(t, at(6, 6, 30), plan.NextFire)
}

func TestPlan_RepeatingNoWindow(t *testing.T) {
	plan, err := Plan(alarmAt(6, 30, 0, time.Saturday, time.Sunday), at(4, 12, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Count(models.TriggerDeadline))
	assert.Equal(t, 0, plan.Count(models.TriggerWindowStart))
}

func TestPlan_ConfigurationErrors(t *testing.T) {
	now := at(4, 1, 0)
	tests := []struct {
		name  string
		alarm models.AlarmDefinition
	}{
		{"window above max", alarmAt(7, 0, 181)},
		{"negative window", alarmAt(7, 0, -1)},
		{"bad hour", alarmAt(24, 0, 0)},
		{"bad minute", alarmAt(7, 60, 0)},
		{"bad weekday", alarmAt(7, 0, 0, time.Weekday(9))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Plan(tt.alarm, now)
			require.Error(t, err)
			assert.True(t, models.IsConfigurationError(err))
			assert.Empty(t, plan.Triggers)
		})
	}
}

func TestNextOccurrence(t *testing.T) {
	// 单次
	assert.Equal(t, at(4, 7, 0), NextOccurrence(alarmAt(7, 0, 0), at(4, 6, 0)))
	assert.Equal(t, at(5, 7, 0), NextOccurrence(alarmAt(7, 0, 0), at(4, 7, 1)))

	// 重复：今天（周一）尚未到点
	assert.Equal(t, at(4, 7, 0), NextOccurrence(alarmAt(7, 0, 0, time.Monday), at(4, 6, 0)))
	// 重复：只选周一且已过 => 下周一
	assert.Equal(t, at(11, 7, 0), NextOccurrence(alarmAt(7, 0, 0, time.Monday), at(4, 7, 0)))
	// 重复：周六
	assert.Equal(t, at(9, 7, 0), NextOccurrence(alarmAt(7, 0, 0, time.Saturday), at(4, 7, 0)))
}

func TestResolveSession(t *testing.T) {
	cfg := ResolveSession(alarmAt(7, 0, 30, time.Tuesday), at(4, 22, 0))
	assert.Equal(t, "alarm-1", cfg.AlarmID)
	assert.Equal(t, at(5, 7, 0), cfg.Target)
	assert.Equal(t, 30, cfg.WindowMinutes)
	assert.Equal(t, at(5, 6, 30), cfg.WindowStart())

	a := alarmAt(7, 0, 30)
	a.SmartWakeEnabled = false
	assert.Equal(t, 0, ResolveSession(a, at(4, 22, 0)).WindowMinutes)
}

func TestCheckWindowFits(t *testing.T) {
	assert.NoError(t, CheckWindowFits(alarmAt(7, 0, 30), at(4, 6, 0)))
	assert.True(t, models.IsConfigurationError(CheckWindowFits(alarmAt(7, 0, 30), at(4, 6, 40))))
	assert.True(t, models.IsConfigurationError(CheckWindowFits(alarmAt(7, 0, 30, time.Monday), at(4, 6, 30))))
	assert.NoError(t, CheckWindowFits(alarmAt(7, 0, 0), at(4, 6, 59)))
}

func TestClampWindow(t *testing.T) {
	assert.Equal(t, 0, ClampWindow(-5))
	assert.Equal(t, 45, ClampWindow(45))
	assert.Equal(t, 180, ClampWindow(240))
}

func TestBuildPayload(t *testing.T) {
	a := alarmAt(6, 5, 30)
	deadline := BuildPayload(a, models.Trigger{Kind: models.TriggerDeadline})
	assert.Equal(t, "Alarm", deadline.Title)
	assert.Equal(t, "06:05", deadline.Body)
	assert.True(t, deadline.Sound)
	assert.Equal(t, "alarm-1", deadline.AlarmID)

	a.Label = "Gym"
	assert.Equal(t, "Gym", BuildPayload(a, models.Trigger{Kind: models.TriggerDeadline}).Title)

	start := BuildPayload(a, models.Trigger{Kind: models.TriggerWindowStart})
	assert.Equal(t, "Smart wake window", start.Title)
	assert.False(t, start.Sound)
	assert.Equal(t, models.TriggerWindowStart, start.Kind)
}
