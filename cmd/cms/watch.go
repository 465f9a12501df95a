package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"
)

var resaveCmd = &cobra.Command{
	Use:   "resave",
	Short: "Run pending resave jobs of the in-process queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := engine.DrainQueue(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Ran %d resave jobs\n", n)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Apply the project file on every change until interrupted",
	Long: `Applies the project file, then reapplies it whenever it changes on disk.

With CMS_NATS_URL set, watch also consumes resave jobs from NATS. With a
sync destination configured, the config is exported on CMS_SYNC_INTERVAL.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := engine.Config

		if cfg.DatabaseURL != "" {
			if err := engine.ApplyProjectFile(ctx, cfg.ProjectFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
		if cfg.NATSURL != "" {
			if err := engine.StartWorker(ctx); err != nil {
				return err
			}
		}
		if err := engine.StartSync(ctx); err != nil {
			return err
		}

		if err := engine.Watch(ctx); err != nil {
			return err
		}
		slog.Info("shutting down")
		return nil
	},
}
