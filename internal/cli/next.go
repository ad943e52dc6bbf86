package cli

import (
	"fmt"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/scheduler"

	"github.com/spf13/cobra"
)

func newNextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the next occurrence and the wake window of an alarm",
		RunE:  runNext,
	}
	addAlarmFlags(cmd)
	return cmd
}

type nextResult struct {
	Target        time.Time `json:"target"`
	WindowStart   time.Time `json:"window_start"`
	WindowMinutes int       `json:"window_minutes"`
	InMinutes     int       `json:"in_minutes"`
}

func runNext(cmd *cobra.Command, args []string) error {
	alarm, err := alarmFromFlags(cmd)
	if err != nil {
		return err
	}
	alarm.WindowMinutes = scheduler.ClampWindow(alarm.WindowMinutes)
	now, err := referenceTime(cmd)
	if err != nil {
		return err
	}
	if err := scheduler.Validate(alarm); err != nil {
		return err
	}

	session := scheduler.ResolveSession(alarm, now)
	result := nextResult{
		Target:        session.Target,
		WindowStart:   session.WindowStart(),
		WindowMinutes: session.WindowMinutes,
		InMinutes:     int(session.Target.Sub(now).Minutes()),
	}

	out := cmd.OutOrStdout()
	if isJSON(cmd) {
		return printJSON(out, result)
	}
	fmt.Fprintf(out, "Next: %s (in %d min)\n", result.Target.Format(time.RFC3339), result.InMinutes)
	if result.WindowMinutes > 0 {
		fmt.Fprintf(out, "Window: %s .. %s\n", result.WindowStart.Format("15:04"), result.Target.Format("15:04"))
	}
	if err := scheduler.CheckWindowFits(alarm, now); err != nil {
		fmt.Fprintf(out, "Warning: %v\n", err)
	}
	return nil
}
