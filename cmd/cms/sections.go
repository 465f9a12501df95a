package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/cms/internal/model"
)

var sectionsCmd = &cobra.Command{
	Use:     "sections",
	Aliases: []string{"section"},
	Short:   "Inspect and delete sections",
}

var sectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var (
			list []*model.Section
			err  error
		)
		if t, _ := cmd.Flags().GetString("type"); t != "" {
			list, err = engine.Sections.SectionsByType(ctx, model.SectionType(t))
		} else {
			list, err = engine.Sections.AllSections(ctx)
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(list)
			return nil
		}
		printSectionTable(list)
		return nil
	},
}

var sectionsShowCmd = &cobra.Command{
	Use:   "show <handle>",
	Short: "Show a section with its site settings and entry types",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		section, err := engine.Sections.SectionByHandle(ctx, args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		types, err := engine.Sections.EntryTypesBySectionID(ctx, section.ID)
		if err != nil {
			return err
		}
		detail := sectionDetail{Section: section, EntryTypes: types}
		if jsonOutput {
			printJSON(detail)
			return nil
		}

		sites, err := engine.Sites.AllSites(ctx)
		if err != nil {
			return err
		}
		handles := make(map[int64]string, len(sites))
		for _, site := range sites {
			handles[site.ID] = site.Handle
		}
		printSectionDetail(detail, handles)
		return nil
	},
}

var sectionsDeleteCmd = &cobra.Command{
	Use:   "delete <handle>",
	Short: "Delete a section, its entry types and its entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		section, err := engine.Sections.SectionByHandle(ctx, args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if err := engine.Sections.DeleteSection(ctx, section); err != nil {
			return err
		}
		if err := persistProject(); err != nil {
			return err
		}
		fmt.Printf("Deleted section %s\n", section.Handle)
		return nil
	},
}

func init() {
	sectionsListCmd.Flags().String("type", "", "only list sections of this type (single, channel, structure)")

	sectionsCmd.AddCommand(sectionsListCmd)
	sectionsCmd.AddCommand(sectionsShowCmd)
	sectionsCmd.AddCommand(sectionsDeleteCmd)
}
