package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/agentq/internal/config"
	"github.com/Iron-Ham/agentq/internal/errors"
)

// settableKeys maps each key accepted by "config set" to its value kind.
var settableKeys = map[string]string{
	"queue.root":                 "string",
	"queue.enforce_dependencies": "bool",
	"dispatch.scan_sources":      "list",
	"status.recent_completed":    "int",
	"status.stale_after_minutes": "int",
	"status.output":              "string",
	"retention.max_age_hours":    "int",
	"retention.include_results":  "bool",
	"worker.poll_interval_ms":    "int",
	"worker.types":               "string",
	"worker.max_workers":         "int",
	"logging.enabled":            "bool",
	"logging.level":              "string",
	"logging.max_size_mb":        "int",
	"logging.max_backups":        "int",
	"logging.compress":           "bool",
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or modify agentq configuration",
		Long: `View or modify agentq configuration.

Without arguments, displays the effective configuration.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective configuration",
			Args:  cobra.NoArgs,
			RunE:  runConfigShow,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), configTarget())
				return nil
			},
		},
		newConfigInitCmd(),
		newConfigSetCmd(),
	)
	return cmd
}

// configTarget is the file "config set" and "config init" write to: the
// file in use if there is one, otherwise the user config file.
func configTarget() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return config.ConfigFile()
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# config file: (none, using defaults)")
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default config file",
		Long:  "Write the default configuration to the config file path.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configTarget()
			if _, err := os.Stat(path); err == nil && !force {
				return errors.NewValidationError(fmt.Sprintf("config file already exists at %s", path)).
					WithField("path")
			}
			data, err := yaml.Marshal(config.Default())
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return errors.NewIOError("mkdir", filepath.Dir(path), err)
			}
			content := append([]byte("# agentq configuration\n"), data...)
			if err := os.WriteFile(path, content, 0644); err != nil {
				return errors.NewIOError("write", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigSetCmd() *cobra.Command {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the config file. Keys use dot notation,
e.g. "agentq config set retention.max_age_hours 48". Lists are comma
separated.

Valid keys:
  ` + strings.Join(keys, "\n  "),
		Args:      cobra.ExactArgs(2),
		ValidArgs: keys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			typed, err := parseConfigValue(key, value)
			if err != nil {
				return err
			}

			viper.Set(key, typed)
			// Refuse to write a file that would not load.
			if _, err := config.Load(); err != nil {
				return err
			}

			path := configTarget()
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return errors.NewIOError("mkdir", filepath.Dir(path), err)
			}
			if err := viper.WriteConfigAs(path); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typed)
			return nil
		},
	}
}

func parseConfigValue(key, value string) (any, error) {
	kind, ok := settableKeys[key]
	if !ok {
		return nil, errors.NewValidationError("unknown configuration key").WithField("key").WithValue(key)
	}
	invalid := func(want string) error {
		return errors.NewValidationError("expected " + want).WithField(key).WithValue(value)
	}
	switch kind {
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, invalid("true or false")
		}
		return b, nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, invalid("an integer")
		}
		return n, nil
	case "list":
		var items []string
		for item := range strings.SplitSeq(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	default:
		return value, nil
	}
}
