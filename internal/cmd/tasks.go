package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
	"github.com/Iron-Ham/agentq/internal/worker"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readJSONArg resolves a JSON argument given inline, as @file, or as "-"
// for stdin.
func readJSONArg(cmd *cobra.Command, field, value string) (json.RawMessage, error) {
	var data []byte
	switch {
	case value == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, errors.NewIOError("read", "stdin", err)
		}
		data = b
	case strings.HasPrefix(value, "@"):
		path := strings.TrimPrefix(value, "@")
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewIOError("read", path, err)
		}
		data = b
	default:
		data = []byte(value)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, errors.NewValidationError("value is not valid JSON").WithField(field)
	}
	return data, nil
}

func newCreateCmd() *cobra.Command {
	var (
		payload   string
		dependsOn []string
		priority  int
		schema    int
	)

	cmd := &cobra.Command{
		Use:   "create <type> <description>",
		Short: "Create a pending task",
		Long:  "Write a new task to the pending partition and print its ID.",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			raw, err := readJSONArg(cmd, "payload", payload)
			if err != nil {
				return err
			}
			opts := []taskqueue.CreateOption{taskqueue.WithDependencies(dependsOn...)}
			if cmd.Flags().Changed("priority") {
				opts = append(opts, taskqueue.WithPriority(priority))
			}
			if cmd.Flags().Changed("schema-version") {
				opts = append(opts, taskqueue.WithSchemaVersion(schema))
			}
			id, err := a.factory.Create(taskqueue.Type(args[0]), args[1], raw, opts...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}

	cmd.Flags().StringVar(&payload, "payload", "", "task payload as JSON, @file or - for stdin")
	cmd.Flags().StringSliceVar(&dependsOn, "depends-on", nil, "task IDs this task depends on (repeatable)")
	cmd.Flags().IntVar(&priority, "priority", 0, "advisory priority, lower is more urgent")
	cmd.Flags().IntVar(&schema, "schema-version", taskqueue.CurrentSchemaVersion, "payload schema version")
	return cmd
}

func newListCmd() *cobra.Command {
	var (
		types     string
		claimable bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "list <pending|running|complete|failed>",
		Short: "List tasks in a partition",
		Long: `Print the IDs of the tasks in a partition, most urgent first. Malformed
records are reported on stderr and skipped.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: partitionNames(),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			p, err := taskqueue.ParsePartition(args[0])
			if err != nil {
				return err
			}
			filter, err := worker.NewTypeFilter(types)
			if err != nil {
				return err
			}
			if claimable && p != taskqueue.PartitionPending {
				return errors.NewValidationError("--claimable applies only to the pending partition").
					WithField("claimable")
			}

			recs, skipped, err := a.store.Records(p)
			if err != nil {
				return err
			}
			for _, s := range skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %v\n", s)
			}
			recs = filter.Filter(recs)
			if claimable {
				if recs, err = a.store.Claimable(recs); err != nil {
					return err
				}
			} else {
				taskqueue.SortByPriority(recs)
			}

			switch output {
			case "json":
				if recs == nil {
					recs = []*taskqueue.Record{}
				}
				return writeJSON(cmd.OutOrStdout(), recs)
			case "", "ids":
				for _, rec := range recs {
					fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
				}
				return nil
			default:
				return errors.NewValidationError("unknown output format").WithField("output").WithValue(output)
			}
		}),
	}

	cmd.Flags().StringVarP(&types, "type", "t", "*", "glob matched against task types")
	cmd.Flags().BoolVar(&claimable, "claimable", false, "only pending tasks whose dependencies are satisfied")
	cmd.Flags().StringVarP(&output, "output", "o", "ids", "output format: ids or json")
	return cmd
}

func partitionNames() []string {
	names := make([]string, len(taskqueue.Partitions))
	for i, p := range taskqueue.Partitions {
		names[i] = string(p)
	}
	return names
}

func newClaimCmd() *cobra.Command {
	var workerID string

	cmd := &cobra.Command{
		Use:   "claim <id>",
		Short: "Claim a pending task",
		Long: `Move a task from pending to running and print the claimed record. Exits
with status 2 when another worker claimed it first or its dependencies have
not completed.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			rec, err := a.store.ClaimAs(args[0], workerID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		}),
	}

	cmd.Flags().StringVar(&workerID, "worker", "", "worker identity recorded on the task")
	return cmd
}

func newCompleteCmd() *cobra.Command {
	var result string

	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete a running task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			raw, err := readJSONArg(cmd, "result", result)
			if err != nil {
				return err
			}
			_, err = a.store.Complete(args[0], raw)
			return err
		}),
	}

	cmd.Flags().StringVar(&result, "result", "", "result as JSON, @file or - for stdin")
	return cmd
}

func newFailCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "fail <id>",
		Short: "Fail a running task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			_, err := a.store.Fail(args[0], reason)
			return err
		}),
	}

	cmd.Flags().StringVar(&reason, "error", "", "failure reason")
	_ = cmd.MarkFlagRequired("error")
	return cmd
}

func newReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <id>",
		Short: "Return a running task to pending",
		Long: `Move a running task back to pending so another worker can claim it. Use
this for tasks whose worker died; running tasks are never reclaimed
automatically.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			_, err := a.store.Release(args[0])
			return err
		}),
	}
}

func newResultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result <id>",
		Short: "Print the result of a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			data, err := a.store.Result(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := out.Write(data); err != nil {
				return err
			}
			if len(data) > 0 && data[len(data)-1] != '\n' {
				fmt.Fprintln(out)
			}
			return nil
		}),
	}
}
