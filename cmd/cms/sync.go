package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cmssync "github.com/alfredjeanlab/cms/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Export, push and pull project config records",
}

var syncExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the persisted config records as JSONL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		if out == "" || out == "-" {
			return cmssync.ExportJSONL(cmd.Context(), engine.Store, os.Stdout)
		}

		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := cmssync.ExportJSONL(cmd.Context(), engine.Store, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", out)
		return nil
	},
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Export once to every configured sync destination",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sched, err := engine.Scheduler(cmd.Context())
		if err != nil {
			return err
		}
		if sched == nil {
			return errors.New("no sync destination configured (set CMS_SYNC_S3_BUCKET or CMS_SYNC_GIT_REPO)")
		}
		if err := sched.SyncOnce(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Synced")
		return nil
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace the project config with the export stored at the sync destination",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := engine.PullConfig(cmd.Context())
		if err != nil {
			return err
		}
		if err := persistProject(); err != nil {
			return err
		}
		fmt.Printf("Pulled %d records\n", n)
		return nil
	},
}

func init() {
	syncExportCmd.Flags().StringP("out", "o", "", "output file (default stdout)")

	syncCmd.AddCommand(syncExportCmd)
	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncPullCmd)
}
