package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/agentq/internal/status"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
	"github.com/Iron-Ham/agentq/internal/tui"
	"github.com/Iron-Ham/agentq/internal/watch"
)

func newStatusCmd() *cobra.Command {
	var (
		output  string
		recent  int
		watchUI bool
		noColor bool
		refresh time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue status",
		Long: `Aggregate every partition into a snapshot, write it to tasks/status.json
and render it. With --watch, open a live dashboard instead.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if !cmd.Flags().Changed("recent") {
				recent = a.cfg.Status.RecentCompleted
			}
			if !cmd.Flags().Changed("output") {
				output = a.cfg.Status.Output
			}
			agg := status.NewAggregator(a.store,
				status.WithRecentCompleted(recent),
				status.WithPublisher(a.bus),
			)

			if watchUI {
				return runDashboard(a, agg, refresh)
			}

			snap, err := agg.Publish()
			if err != nil {
				return err
			}
			opts := status.RenderOptions{StaleAfter: a.cfg.Status.StaleAfter()}
			if noColor {
				plain := false
				opts.Color = &plain
			}
			return status.Render(cmd.OutOrStdout(), snap, output, opts)
		}),
	}

	cmd.Flags().StringVarP(&output, "output", "o", status.FormatTable, "output format: table, json or yaml")
	cmd.Flags().IntVar(&recent, "recent", 20, "number of recently completed tasks to list")
	cmd.Flags().BoolVarP(&watchUI, "watch", "w", false, "open a live dashboard")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable styled table output")
	cmd.Flags().DurationVar(&refresh, "refresh", tui.DefaultRefresh, "dashboard refresh interval")
	return cmd
}

// runDashboard opens the dashboard. Arrivals in the pending partition are
// published on the app's bus so the view refreshes without waiting for the
// next tick.
func runDashboard(a *app, agg *status.Aggregator, refresh time.Duration) error {
	if err := a.store.Init(); err != nil {
		return err
	}
	w, err := watch.New(a.store.PartitionDir(taskqueue.PartitionPending),
		watch.WithPublisher(a.bus),
		watch.WithLogger(a.logger),
	)
	if err != nil {
		// Polling still works.
		a.logger.Warn("pending watcher unavailable", "error", err)
	} else {
		w.Start()
		defer w.Stop()
	}
	return tui.New(agg, a.bus, refresh, a.cfg.Status.StaleAfter()).Run()
}
