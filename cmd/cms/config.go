package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/cms/internal/projectconfig"
	cmssync "github.com/alfredjeanlab/cms/internal/sync"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and change project config",
}

var configApplyCmd = &cobra.Command{
	Use:   "apply [file]",
	Short: "Apply a YAML project file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := engine.Config.ProjectFile
		if len(args) == 1 {
			path = args[0]
		}
		if err := engine.ApplyProjectFile(cmd.Context(), path); err != nil {
			return err
		}
		fmt.Printf("Applied %s\n", path)
		return nil
	},
}

var configExportCmd = &cobra.Command{
	Use:   "export [file|-]",
	Short: "Write the current project config as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree := engine.Manager.Snapshot()
		if len(args) == 0 || args[0] == "-" {
			if jsonOutput {
				printJSON(tree)
				return nil
			}
			return projectconfig.EncodeYAML(os.Stdout, tree)
		}
		if err := projectconfig.WriteFile(args[0], tree); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", args[0])
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Print the value at a dotted config path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v := engine.Manager.Get(args[0])
		if v == nil {
			return fmt.Errorf("%s is not set", args[0])
		}
		if m, ok := v.(map[string]any); ok && !jsonOutput {
			return projectconfig.EncodeYAML(os.Stdout, m)
		}
		printJSON(v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a config value; JSON values are decoded, anything else is a string",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := engine.Manager.Set(cmd.Context(), args[0], parseValue(args[1])); err != nil {
			return err
		}
		if err := persistProject(); err != nil {
			return err
		}
		n, err := engine.DrainQueue(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Set %s", args[0])
		if n > 0 {
			fmt.Printf(" (%d resave jobs)", n)
		}
		fmt.Println()
		return nil
	},
}

var configRemoveCmd = &cobra.Command{
	Use:     "rm <path>",
	Aliases: []string{"remove"},
	Short:   "Remove a config value and everything under it",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := engine.Manager.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		if err := persistProject(); err != nil {
			return err
		}
		if _, err := engine.DrainQueue(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

var configImportCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Apply a JSONL config export produced by `cms sync export`",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		records, err := cmssync.ReadJSONL(f)
		if err != nil {
			return fmt.Errorf("import %s: %w", args[0], err)
		}
		tree, err := projectconfig.TreeFromRecords(records)
		if err != nil {
			return fmt.Errorf("import %s: %w", args[0], err)
		}
		if err := engine.Manager.ApplySnapshot(cmd.Context(), tree); err != nil {
			return err
		}
		if err := persistProject(); err != nil {
			return err
		}
		if _, err := engine.DrainQueue(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Imported %d records\n", len(records))
		return nil
	},
}

// persistProject writes the current tree back to the project file in
// memory mode, where the file is the only durable copy.
func persistProject() error {
	if engine.Config.DatabaseURL != "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(engine.Config.ProjectFile), 0o755); err != nil {
		return err
	}
	return engine.Manager.SaveFile(engine.Config.ProjectFile)
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func init() {
	configCmd.AddCommand(configApplyCmd)
	configCmd.AddCommand(configExportCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configRemoveCmd)
	configCmd.AddCommand(configImportCmd)
}
