package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printSectionTable(sections []*model.Section) {
	if len(sections) == 0 {
		fmt.Println(ui.RenderMuted("No sections."))
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tHANDLE\tTYPE\tNAME\tPROPAGATE")
	for _, s := range sections {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n",
			s.ID,
			ui.RenderAccent(s.Handle),
			ui.RenderSectionType(string(s.Type)),
			s.Name,
			s.PropagateEntries,
		)
	}
	w.Flush()
	fmt.Printf("\n%d sections\n", len(sections))
}

// sectionDetail is the JSON shape of `sections show`.
type sectionDetail struct {
	*model.Section
	EntryTypes []*model.EntryType `json:"entry_types"`
}

func printSectionDetail(d sectionDetail, siteHandles map[int64]string) {
	s := d.Section
	fmt.Printf("ID:          %d\n", s.ID)
	fmt.Printf("UID:         %s\n", s.UID)
	fmt.Printf("Name:        %s\n", s.Name)
	fmt.Printf("Handle:      %s\n", ui.RenderAccent(s.Handle))
	fmt.Printf("Type:        %s\n", ui.RenderSectionType(string(s.Type)))
	fmt.Printf("Propagate:   %t\n", s.PropagateEntries)
	if s.Type == model.SectionTypeStructure {
		fmt.Printf("Max Levels:  %d\n", s.MaxLevels)
	}

	if len(s.SiteSettings) > 0 {
		siteIDs := make([]int64, 0, len(s.SiteSettings))
		for id := range s.SiteSettings {
			siteIDs = append(siteIDs, id)
		}
		sort.Slice(siteIDs, func(i, j int) bool { return siteIDs[i] < siteIDs[j] })

		fmt.Println("\nSites:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, id := range siteIDs {
			ss := s.SiteSettings[id]
			uri := ui.RenderMuted("(no urls)")
			if ss.HasURLs {
				uri = ss.URIFormat
			}
			fmt.Fprintf(w, "  %s\t%s\tenabled=%t\n", siteHandles[id], uri, ss.EnabledByDefault)
		}
		w.Flush()
	}

	fmt.Println("\nEntry types:")
	for _, et := range d.EntryTypes {
		fmt.Printf("  %d. %s %s\n", et.SortOrder, ui.RenderAccent(et.Handle), ui.RenderMuted(et.Name))
	}
}
