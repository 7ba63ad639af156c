package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"timetrack/internal/app"
	"timetrack/internal/domain"
	"timetrack/internal/export"
	"timetrack/internal/usecase"
)

func timesheetCmd() *cobra.Command {
	var (
		user, from, to string
		project, task  string
		format         string
	)
	cmd := &cobra.Command{
		Use:   "timesheet",
		Short: "Print a user's timesheet for a date range",
		Long: `Print a user's timesheet for a date range.

Dates accept RFC3339 or YYYY-MM-DD; a date-only --to covers the whole day.

Examples:
  timetrack timesheet --user u1 --from 2025-01-01 --to 2025-01-31
  timetrack timesheet --user u1 --project p1 --format csv > jan.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return fmt.Errorf("%w: --user is required", domain.ErrBadArguments)
			}
			now := time.Now().UTC()
			toTime, err := app.ParseEnd(to, now)
			if err != nil {
				return err
			}
			fromTime, err := app.ParseStart(from, toTime.Add(-app.DefaultWindow))
			if err != nil {
				return err
			}

			logger, cfg, err := setup()
			if err != nil {
				return err
			}
			application, err := app.New(cmd.Context(), logger, cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			ts, err := application.Timesheet().Summarize(cmd.Context(), user,
				domain.DateRange{From: fromTime, To: toTime},
				usecase.TimesheetFilter{ProjectID: project, TaskID: task})
			if err != nil {
				return err
			}

			switch format {
			case "csv":
				return export.WriteCSV(os.Stdout, ts.Entries)
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(ts)
			case "text":
				return export.WriteText(os.Stdout, ts)
			default:
				return fmt.Errorf("%w: unknown format %q", domain.ErrBadArguments, format)
			}
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "User id (required)")
	cmd.Flags().StringVar(&from, "from", "", "Start of range (default: --to minus 7 days)")
	cmd.Flags().StringVar(&to, "to", "", "End of range (default: now)")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Only entries of this project")
	cmd.Flags().StringVarP(&task, "task", "t", "", "Only entries of this task")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json or csv")

	return cmd
}
