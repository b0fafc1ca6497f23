package main

import (
	"fmt"
	"log/slog"
	"os"

	corecfg "github.com/aevon-lab/segmentd/internal/core/config"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "segmentd.yaml"

// rootOptions is shared by every subcommand.
type rootOptions struct {
	configPath string
	cfg        *corecfg.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	command := &cobra.Command{
		Use:           "segmentd",
		Short:         "Incremental user segment membership engine",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return opts.load(cmd)
		},
	}
	command.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "Path to configuration file")

	command.AddCommand(
		newServeCommand(opts),
		newAccumulateCommand(opts),
		newResolveCommand(opts),
		newExpireCommand(opts),
		newMigrateCommand(opts),
	)
	return command
}

// load reads configuration and installs the default logger.
// A missing default config file is not an error; defaults and env vars apply.
func (o *rootOptions) load(cmd *cobra.Command) error {
	path := o.configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}

	cfg, err := corecfg.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("[Config] Loaded config",
		"path", path,
		"database_type", cfg.Database.Type,
		"segments", len(cfg.Segments),
		"cron_interval", cfg.Timing.CronInterval,
		"window_overlap", cfg.Timing.WindowOverlap,
	)
	o.cfg = cfg
	return nil
}
