package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseDays(t *testing.T) {
	days, err := ParseDays("mon, Wed,fri")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, days)

	days, err = ParseDays("0,6")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, days)

	days, err = ParseDays("weekdays")
	require.NoError(t, err)
	assert.Len(t, days, 5)

	days, err = ParseDays("")
	require.NoError(t, err)
	assert.Nil(t, days)

	_, err = ParseDays("mon,7")
	assert.Error(t, err)
	_, err = ParseDays("someday")
	assert.Error(t, err)
}

func TestPlanJSON(t *testing.T) {
	out, err := run(t, "plan", "--time", "00:10", "--days", "mon", "--window", "30",
		"--now", "2024-03-04T00:00:00Z", "--tz", "UTC", "--format", "json")
	require.NoError(t, err)

	var plan models.TriggerPlan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Len(t, plan.Triggers, 2)
	assert.Equal(t, 2, plan.Triggers[0].Weekday)
	// 窗口跨过午夜，落在前一天（周日）
	assert.Equal(t, models.TriggerWindowStart, plan.Triggers[1].Kind)
	assert.Equal(t, 1, plan.Triggers[1].Weekday)
	assert.Equal(t, models.TimeOfDay{Hour: 23, Minute: 40}, plan.Triggers[1].TimeOfDay)
	assert.True(t, plan.NextFire.Equal(time.Date(2024, 3, 4, 0, 10, 0, 0, time.UTC)))
}

func TestPlanText(t *testing.T) {
	out, err := run(t, "plan", "-t", "07:00", "-w", "0", "--label", "Gym",
		"--now", "2024-03-04T08:00:00Z", "--tz", "UTC")
	require.NoError(t, err)
	assert.Contains(t, out, "Alarm 07:00 (Once), window 0 min")
	assert.Contains(t, out, "Next fire: 2024-03-05T07:00:00Z")
	assert.Contains(t, out, `"Gym"`)
}

func TestPlanConfigurationError(t *testing.T) {
	_, err := run(t, "plan", "-t", "06:10", "-w", "30", "--now", "2024-03-04T06:00:00Z", "--tz", "UTC")
	require.Error(t, err)
	assert.True(t, models.IsConfigurationError(err))

	_, err = run(t, "plan", "-t", "24:00")
	assert.Error(t, err)
}

func TestNext(t *testing.T) {
	out, err := run(t, "next", "-t", "07:00", "-d", "tue", "-w", "20",
		"--now", "2024-03-04T06:00:00Z", "--tz", "UTC", "-f", "json")
	require.NoError(t, err)

	var res nextResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Target.Equal(time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC)))
	assert.True(t, res.WindowStart.Equal(time.Date(2024, 3, 5, 6, 40, 0, 0, time.UTC)))
	assert.Equal(t, 25*60, res.InMinutes)
}

func TestNextWarnsWhenWindowDoesNotFit(t *testing.T) {
	out, err := run(t, "next", "-t", "06:20", "-w", "30", "--now", "2024-03-04T06:00:00Z", "--tz", "UTC")
	require.NoError(t, err)
	assert.Contains(t, out, "Window: 05:50 .. 06:20")
	assert.Contains(t, out, "Warning: configuration error")
}

func TestWeekday(t *testing.T) {
	out, err := run(t, "weekday", "sun", "sat", "-f", "json")
	require.NoError(t, err)

	var res []weekdayResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []weekdayResult{
		{Day: "Sunday", Storage: 0, Trigger: 1},
		{Day: "Saturday", Storage: 6, Trigger: 7},
	}, res)

	_, err = run(t, "weekday", "9")
	assert.Error(t, err)
	_, err = run(t, "weekday")
	assert.Error(t, err)
}
