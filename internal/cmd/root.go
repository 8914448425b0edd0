// Package cmd implements the agentq command line.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/agentq/internal/config"
	"github.com/Iron-Ham/agentq/internal/errors"
)

// EnvPrefix prefixes environment overrides, e.g. AGENTQ_QUEUE_ROOT.
const EnvPrefix = "AGENTQ"

var rootCmd = newRootCmd()

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentq",
		Short: "File-based task queue for research agents",
		Long: `agentq coordinates independent worker processes through a task queue
kept on the filesystem. Tasks move between the pending, running, complete
and failed directories; a rename is a claim, so any number of workers can
share one queue without a server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/agentq/config.yaml)")
	root.PersistentFlags().String("root", "", "queue root directory (overrides queue.root)")

	root.AddCommand(
		newCreateCycleCmd(),
		newDispatchPhaseCmd(),
		newExploreCmd(),
		newStatusCmd(),
		newCleanupCmd(),
		newCreateCmd(),
		newListCmd(),
		newClaimCmd(),
		newCompleteCmd(),
		newFailCmd(),
		newReleaseCmd(),
		newResultCmd(),
		newWaitCmd(),
		newWorkCmd(),
		newConfigCmd(),
	)
	return root
}

func initConfig(cmd *cobra.Command) error {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}

	viper.SetEnvPrefix(EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	// e.g., AGENTQ_RETENTION_MAX_AGE_HOURS for retention.max_age_hours
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlag("queue.root", cmd.Flags().Lookup("root")); err != nil {
		return err
	}

	// A missing config file is fine unless one was named explicitly.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
