package cli

import (
	"fmt"

	"github.com/CodingHusk3y/heartwake/internal/scheduler"

	"github.com/spf13/cobra"
)

func newWeekdayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weekday <day>...",
		Short: "Convert between storage weekdays (0=Sun) and trigger weekdays (1=Sun)",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWeekday,
	}
}

type weekdayResult struct {
	Day     string `json:"day"`
	Storage int    `json:"storage"`
	Trigger int    `json:"trigger"`
}

func runWeekday(cmd *cobra.Command, args []string) error {
	results := make([]weekdayResult, 0, len(args))
	for _, arg := range args {
		d, err := parseDay(arg)
		if err != nil {
			return err
		}
		trigger, err := scheduler.TriggerWeekday(d)
		if err != nil {
			return err
		}
		results = append(results, weekdayResult{Day: d.String(), Storage: int(d), Trigger: trigger})
	}

	out := cmd.OutOrStdout()
	if isJSON(cmd) {
		return printJSON(out, results)
	}
	for _, r := range results {
		fmt.Fprintf(out, "%-9s storage=%d trigger=%d\n", r.Day, r.Storage, r.Trigger)
	}
	return nil
}
