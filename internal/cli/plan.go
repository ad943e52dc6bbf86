package cli

import (
	"fmt"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"
	"github.com/CodingHusk3y/heartwake/internal/scheduler"

	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview the triggers an alarm would schedule",
		Example: "  heartwake-cli plan --time 06:45 --days weekdays --window 20\n" +
			"  heartwake-cli plan -t 00:10 -w 30 --now 2024-03-04T00:00:00Z --tz UTC",
		RunE: runPlan,
	}
	addAlarmFlags(cmd)
	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	alarm, err := alarmFromFlags(cmd)
	if err != nil {
		return err
	}
	alarm.WindowMinutes = scheduler.ClampWindow(alarm.WindowMinutes)
	now, err := referenceTime(cmd)
	if err != nil {
		return err
	}

	plan, err := scheduler.Plan(alarm, now)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if isJSON(cmd) {
		return printJSON(out, plan)
	}

	fmt.Fprintf(out, "Alarm %s (%s), window %d min\n", alarm.TimeOfDay, models.RepeatSummary(alarm.RepeatDays), alarm.SmartWindow())
	fmt.Fprintf(out, "Next fire: %s\n", plan.NextFire.Format(time.RFC3339))
	for _, t := range plan.Triggers {
		payload := scheduler.BuildPayload(alarm, t)
		if t.Repeats {
			fmt.Fprintf(out, "  %-12s weekly  weekday=%d %s  %q\n", t.Kind, t.Weekday, t.TimeOfDay, payload.Title)
		} else {
			fmt.Fprintf(out, "  %-12s once    %s  %q\n", t.Kind, t.At.Format(time.RFC3339), payload.Title)
		}
	}
	return nil
}
