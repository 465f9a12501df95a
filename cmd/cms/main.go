package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/cms/internal/app"
	"github.com/alfredjeanlab/cms/internal/config"
	"github.com/alfredjeanlab/cms/internal/ui"
)

var (
	jsonOutput  bool
	projectFile string
	noColor     bool

	engine *app.App
)

var rootCmd = &cobra.Command{
	Use:           "cms",
	Short:         "Apply and inspect project config for the content engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			ui.ForceNoColor()
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if projectFile != "" {
			cfg.ProjectFile = projectFile
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
		slog.SetDefault(logger)

		engine, err = app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to start engine: %w", err)
		}

		// The memory store starts empty on every run; seed it from the
		// project file so read commands have something to show.
		if cfg.DatabaseURL == "" {
			if err := engine.ApplyProjectFile(cmd.Context(), cfg.ProjectFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if engine != nil {
			if err := engine.Close(); err != nil {
				slog.Warn("closing engine", "err", err)
			}
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&projectFile, "project", "", "project config file (default $CMS_PROJECT_FILE or config/project.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sectionsCmd)
	rootCmd.AddCommand(resaveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(syncCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError("Error: ")+err.Error())
		os.Exit(1)
	}
}
