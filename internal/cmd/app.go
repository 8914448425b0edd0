package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/agentq/internal/config"
	"github.com/Iron-Ham/agentq/internal/event"
	"github.com/Iron-Ham/agentq/internal/logging"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
)

// app holds the components a command works with, built from configuration.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	bus     *event.Bus
	store   *taskqueue.Store
	factory *taskqueue.Factory
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	root := cfg.Queue.Root

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLoggerWithRotation(root, cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return nil, err
		}
	}
	logger = logger.With("command", cmd.Name())

	bus := event.NewBus(logger)
	store := taskqueue.NewStore(root,
		taskqueue.WithLogger(logger),
		taskqueue.WithDependencyGating(cfg.Queue.EnforceDependencies),
		taskqueue.WithPublisher(bus),
	)
	return &app{
		cfg:     cfg,
		logger:  logger,
		bus:     bus,
		store:   store,
		factory: taskqueue.NewFactory(store),
	}, nil
}

func (a *app) Close() {
	a.bus.Clear()
	_ = a.logger.Close()
}

// withApp adapts a RunE that needs an app.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}
