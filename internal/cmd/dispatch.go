package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/agentq/internal/dispatch"
	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/status"
)

func (a *app) dispatcher(state dispatch.State) *dispatch.Dispatcher {
	return dispatch.New(a.store, a.factory, a.bus, state,
		dispatch.WithScanSources(a.cfg.Dispatch.ScanSources...),
		dispatch.WithStatusPublisher(status.NewAggregator(a.store,
			status.WithRecentCompleted(a.cfg.Status.RecentCompleted),
			status.WithPublisher(a.bus),
		)),
		dispatch.WithLogger(a.logger),
	)
}

func printIDs(w io.Writer, ids []string) {
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
}

func newCreateCycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-cycle",
		Short: "Dispatch a full research cycle",
		Long: `Increment the cycle counter and create the scan, extraction, grading and
synthesis tasks of the new cycle, each depending on the tasks before it.
Prints the IDs of the created tasks, one per line.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			state, err := dispatch.LoadState(a.store)
			if err != nil {
				return err
			}

			cycle, next, dispatchErr := a.dispatcher(state).DispatchFullCycle(cmd.Context())
			// The counter advances even when a phase fails so that a retry
			// never reuses the cycle number.
			if err := dispatch.SaveState(a.store, next); err != nil {
				return errors.Join(dispatchErr, fmt.Errorf("save state: %w", err))
			}
			printIDs(cmd.OutOrStdout(), cycle.TaskIDs())
			if dispatchErr != nil {
				return fmt.Errorf("cycle %d: %w", cycle.Number, dispatchErr)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "cycle %d dispatched (%d tasks)\n", cycle.Number, len(cycle.TaskIDs()))
			return nil
		}),
	}
}

func newDispatchPhaseCmd() *cobra.Command {
	var dependsOn []string

	cmd := &cobra.Command{
		Use:   "dispatch-phase <scan|extraction|grading|verification|synthesis>",
		Short: "Dispatch a single phase of the current cycle",
		Long: `Create the task (or, for scan, tasks) of one phase under the current cycle
number. Without --depends-on, the new task depends on every pending or
running task of the upstream phase.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: phaseNames(),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			phase, err := dispatch.ParsePhase(args[0])
			if err != nil {
				return err
			}
			state, err := dispatch.LoadState(a.store)
			if err != nil {
				return err
			}
			ids, err := a.dispatcher(state).DispatchPhase(cmd.Context(), phase, dependsOn)
			printIDs(cmd.OutOrStdout(), ids)
			return err
		}),
	}

	cmd.Flags().StringSliceVar(&dependsOn, "depends-on", nil, "task IDs the new task depends on (repeatable)")
	return cmd
}

func phaseNames() []string {
	names := make([]string, len(dispatch.Phases))
	for i, p := range dispatch.Phases {
		names[i] = string(p)
	}
	return names
}

func newExploreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explore <topic>...",
		Short: "Create exploration tasks",
		Long:  "Create one low-priority exploration task per topic, outside the cycle pipeline.",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			state, err := dispatch.LoadState(a.store)
			if err != nil {
				return err
			}
			ids, err := a.dispatcher(state).DispatchExploration(cmd.Context(), args)
			printIDs(cmd.OutOrStdout(), ids)
			return err
		}),
	}
}
