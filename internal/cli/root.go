// Package cli 离线检查闹钟触发计划的命令行工具
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"

	"github.com/spf13/cobra"
)

// NewRootCmd 创建根命令
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "heartwake-cli",
		Short:         "Inspect smart wake alarm schedules",
		Long:          "Offline tools for the heartwake engine: preview trigger plans, next occurrences and weekday encodings.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("format", "f", "text", "Output format: json or text")
	root.PersistentFlags().String("tz", "Local", "Timezone used to resolve alarm times")
	root.PersistentFlags().String("now", "", "Reference time (RFC3339), defaults to the current time")

	root.AddCommand(newPlanCmd(), newNextCmd(), newWeekdayCmd())
	return root
}

// addAlarmFlags plan/next 共用的闹钟参数
func addAlarmFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("time", "t", "", "Alarm time of day (HH:MM)")
	cmd.Flags().StringP("days", "d", "", "Repeat days, e.g. mon,wed,fri or weekdays (empty for one-time)")
	cmd.Flags().IntP("window", "w", 30, "Smart wake window in minutes (0 disables smart wake)")
	cmd.Flags().String("label", "", "Alarm label")
	_ = cmd.MarkFlagRequired("time")
}

func alarmFromFlags(cmd *cobra.Command) (models.AlarmDefinition, error) {
	hhmm, _ := cmd.Flags().GetString("time")
	days, _ := cmd.Flags().GetString("days")
	window, _ := cmd.Flags().GetInt("window")
	label, _ := cmd.Flags().GetString("label")

	tod, err := models.ParseTimeOfDay(hhmm)
	if err != nil {
		return models.AlarmDefinition{}, err
	}
	repeat, err := ParseDays(days)
	if err != nil {
		return models.AlarmDefinition{}, err
	}
	return models.AlarmDefinition{
		ID:               "cli",
		Label:            label,
		TimeOfDay:        tod,
		RepeatDays:       repeat,
		WindowMinutes:    window,
		SmartWakeEnabled: window > 0,
		Enabled:          true,
	}, nil
}

// referenceTime --now 与 --tz 解析出的当前时间
func referenceTime(cmd *cobra.Command) (time.Time, error) {
	tz, _ := cmd.Flags().GetString("tz")
	loc := time.Local
	if tz != "" && tz != "Local" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		loc = l
	}

	nowStr, _ := cmd.Flags().GetString("now")
	if nowStr == "" {
		return time.Now().In(loc), nil
	}
	now, err := time.Parse(time.RFC3339, nowStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now %q: %w", nowStr, err)
	}
	return now.In(loc), nil
}

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseDays 解析重复日：名称（mon,tue）、存储编码数字（0=周日）或 weekdays/weekends/daily
func ParseDays(s string) ([]time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "once":
		return nil, nil
	case "weekdays":
		return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, nil
	case "weekends":
		return []time.Weekday{time.Sunday, time.Saturday}, nil
	case "daily", "everyday":
		return []time.Weekday{0, 1, 2, 3, 4, 5, 6}, nil
	}

	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := parseDay(part)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, nil
}

func parseDay(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		if d, ok := dayNames[s[:3]]; ok {
			return d, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("invalid day %q", s)
	}
	return time.Weekday(n), nil
}

func isJSON(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("format")
	return format == "json"
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
