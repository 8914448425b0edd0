package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/scaling"
	"github.com/Iron-Ham/agentq/internal/status"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
	"github.com/Iron-Ham/agentq/internal/watch"
	"github.com/Iron-Ham/agentq/internal/worker"
)

// pendingWatcher watches the pending partition. It returns nil when the
// platform cannot watch; callers then poll.
func (a *app) pendingWatcher() *watch.Watcher {
	if err := a.store.Init(); err != nil {
		a.logger.Warn("queue init failed", "error", err)
		return nil
	}
	w, err := watch.New(a.store.PartitionDir(taskqueue.PartitionPending),
		watch.WithPublisher(a.bus),
		watch.WithLogger(a.logger),
	)
	if err != nil {
		a.logger.Warn("pending watcher unavailable, polling", "error", err)
		return nil
	}
	w.Start()
	return w
}

func newWaitCmd() *cobra.Command {
	var (
		types   string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Block until a claimable task is pending",
		Long: `Wait until a pending task matching --type has all of its dependencies
completed, then print its ID. Exits with status 2 if --timeout elapses
first. The task is not claimed.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			filter, err := worker.NewTypeFilter(types)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			w := a.pendingWatcher()
			if w != nil {
				defer w.Stop()
			}

			for {
				pending, _, err := a.store.Records(taskqueue.PartitionPending)
				if err != nil {
					return err
				}
				ready, err := a.store.Claimable(filter.Filter(pending))
				if err != nil {
					return err
				}
				if len(ready) > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), ready[0].ID)
					return nil
				}
				if err := w.Wait(ctx, a.cfg.Worker.PollInterval()); err != nil {
					return errors.NewNotFoundError("claimable task", filter.String()).
						WithPartition(string(taskqueue.PartitionPending)).
						WithCause(err)
				}
			}
		}),
	}

	cmd.Flags().StringVarP(&types, "type", "t", "*", "glob matched against task types")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits forever)")
	return cmd
}

func newWorkCmd() *cobra.Command {
	var (
		types      string
		workerID   string
		once       bool
		maxWorkers int
		minWorkers int
	)

	cmd := &cobra.Command{
		Use:   "work [flags] -- <command> [args...]",
		Short: "Run a worker that executes tasks with a command",
		Long: `Claim tasks matching --type and run the command once per task. The
claimed record is written to the command's stdin as JSON and AGENTQ_TASK_ID
and AGENTQ_TASK_TYPE are set in its environment. Standard output becomes the
task result; a non-zero exit fails the task with the command's stderr.

With --max-workers above 1, runners are added while pending tasks outnumber
running ones and removed one at a time once the queue is idle. The worker
identity then becomes a prefix: {worker}-1, {worker}-2, ...`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if !cmd.Flags().Changed("type") {
				types = a.cfg.Worker.Types
			}
			w := a.pendingWatcher()
			if w != nil {
				defer w.Stop()
			}

			if !cmd.Flags().Changed("max-workers") {
				maxWorkers = a.cfg.Worker.MaxWorkers
			}
			runnerOpts := []worker.Option{
				worker.WithTypes(types),
				worker.WithPollInterval(a.cfg.Worker.PollInterval()),
				worker.WithWatcher(w),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if maxWorkers > 1 && !once {
				pool, err := worker.NewPool(a.store, commandHandler(args), a.bus,
					worker.WithPolicy(scaling.NewPolicy(
						scaling.WithMinWorkers(minWorkers),
						scaling.WithMaxWorkers(maxWorkers),
					)),
					worker.WithRunnerOptions(runnerOpts...),
					worker.WithIDPrefix(workerID),
					worker.WithPoolStatusPublisher(status.NewAggregator(a.store,
						status.WithRecentCompleted(a.cfg.Status.RecentCompleted),
						status.WithPublisher(a.bus),
					)),
				)
				if err != nil {
					return err
				}
				return pool.Run(ctx)
			}

			runner, err := worker.NewRunner(a.store, commandHandler(args),
				append(runnerOpts, worker.WithID(workerID))...)
			if err != nil {
				return err
			}

			if once {
				processed, err := runner.RunOnce(ctx)
				if err != nil {
					return err
				}
				if !processed {
					return errors.NewNotFoundError("claimable task", types).
						WithPartition(string(taskqueue.PartitionPending))
				}
				return nil
			}
			return runner.Run(ctx)
		}),
	}

	cmd.Flags().StringVarP(&types, "type", "t", "*", "glob matched against task types (default from worker.types)")
	cmd.Flags().StringVar(&workerID, "worker", "", "worker identity (default is a random UUID)")
	cmd.Flags().BoolVar(&once, "once", false, "process at most one task and exit")
	cmd.Flags().IntVar(&maxWorkers, "max-workers", 1, "grow to this many concurrent runners while the backlog lasts (default from worker.max_workers)")
	cmd.Flags().IntVar(&minWorkers, "min-workers", 1, "runners kept when the queue is idle")
	return cmd
}

// commandHandler runs argv for each task.
func commandHandler(argv []string) worker.Handler {
	return func(ctx context.Context, rec *taskqueue.Record) (json.RawMessage, error) {
		input, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}

		c := exec.CommandContext(ctx, argv[0], argv[1:]...)
		c.Stdin = bytes.NewReader(input)
		c.Env = append(os.Environ(),
			"AGENTQ_TASK_ID="+rec.ID,
			"AGENTQ_TASK_TYPE="+string(rec.Type),
		)
		var stdout, stderr bytes.Buffer
		c.Stdout = &stdout
		c.Stderr = &stderr

		if err := c.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return nil, fmt.Errorf("%w: %s", err, msg)
			}
			return nil, err
		}

		out := bytes.TrimSpace(stdout.Bytes())
		if len(out) == 0 {
			return nil, nil
		}
		if !json.Valid(out) {
			// Plain text output is stored as a JSON string.
			return json.Marshal(string(out))
		}
		return out, nil
	}
}
