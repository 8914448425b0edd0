package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/agentq/internal/cleanup"
	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/status"
)

func newCleanupCmd() *cobra.Command {
	var (
		maxAgeHours    float64
		includeResults bool
		dryRun         bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired complete and failed tasks",
		Long: `Delete complete and failed task records whose files are at least
--max-age-hours old. Pending and running tasks are never touched. Prints the
number of records removed.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			maxAge := a.cfg.Retention.MaxAge()
			if cmd.Flags().Changed("max-age-hours") {
				if maxAgeHours < 0 {
					return errors.NewValidationError("max age must not be negative").
						WithField("max-age-hours").WithValue(maxAgeHours)
				}
				maxAge = time.Duration(maxAgeHours * float64(time.Hour))
			}
			if !cmd.Flags().Changed("include-results") {
				includeResults = a.cfg.Retention.IncludeResults
			}

			sweeper := cleanup.NewSweeper(a.store,
				cleanup.WithResults(includeResults),
				cleanup.WithPublisher(a.bus),
				cleanup.WithStatusPublisher(status.NewAggregator(a.store,
					status.WithRecentCompleted(a.cfg.Status.RecentCompleted),
					status.WithPublisher(a.bus),
				)),
			)

			if dryRun {
				plan, err := sweeper.Plan(maxAge)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}

			removed, err := sweeper.Sweep(maxAge)
			fmt.Fprintln(cmd.OutOrStdout(), removed)
			return err
		}),
	}

	cmd.Flags().Float64Var(&maxAgeHours, "max-age-hours", 72, "remove records at least this many hours old (default from retention.max_age_hours)")
	cmd.Flags().BoolVar(&includeResults, "include-results", false, "also remove result files of the same age")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be removed without removing it")
	return cmd
}
