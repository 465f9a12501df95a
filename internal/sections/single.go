package sections

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/cms/internal/idgen"
	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/store"
)

// ensureSingleEntry makes a single section hold exactly one entry with a
// valid type and a row on every site the section is enabled on. It does
// nothing while the section has no entry types.
func (s *Service) ensureSingleEntry(ctx context.Context, sectionID int64) error {
	return s.store.RunInTransaction(ctx, func(tx store.Store) error {
		section, err := tx.GetSection(ctx, sectionID)
		if err != nil {
			return fmt.Errorf("loading section %d: %w", sectionID, err)
		}
		types, err := tx.ListEntryTypes(ctx, sectionID)
		if err != nil {
			return fmt.Errorf("listing entry types: %w", err)
		}
		if len(types) == 0 {
			return nil
		}
		settings, err := tx.ListSiteSettings(ctx, sectionID)
		if err != nil {
			return fmt.Errorf("listing site settings: %w", err)
		}
		if len(settings) == 0 {
			return model.Invariantf("section %s has no site settings", section.UID)
		}

		entries, err := tx.ListEntries(ctx, model.EntryFilter{SectionID: sectionID})
		if err != nil {
			return fmt.Errorf("listing entries: %w", err)
		}

		var entry *model.Entry
		if len(entries) > 0 {
			entry = entries[0]
			for _, extra := range entries[1:] {
				if err := tx.DeleteEntry(ctx, extra.ID); err != nil {
					return fmt.Errorf("deleting extra entry %d: %w", extra.ID, err)
				}
			}
			if !hasType(types, entry.TypeID) {
				entry.TypeID = types[0].ID
				if err := tx.UpdateEntry(ctx, entry); err != nil {
					return fmt.Errorf("retyping entry %d: %w", entry.ID, err)
				}
			}
		} else {
			entry = &model.Entry{UID: idgen.UID(), SectionID: sectionID, TypeID: types[0].ID}
			if err := tx.CreateEntry(ctx, entry); err != nil {
				return fmt.Errorf("creating single entry: %w", err)
			}
		}

		enabled := make(map[int64]bool, len(settings))
		for _, ss := range settings {
			enabled[ss.SiteID] = true
			row := &model.EntrySite{
				EntryID: entry.ID,
				SiteID:  ss.SiteID,
				Title:   section.Name,
				Slug:    section.Handle,
				Enabled: true,
			}
			if ss.HasURLs {
				row.URI = RenderURI(ss.URIFormat, section, entry, row.Slug)
			}
			if err := tx.UpsertEntrySite(ctx, row); err != nil {
				return fmt.Errorf("saving single entry on site %d: %w", ss.SiteID, err)
			}
		}

		rows, err := tx.ListEntrySites(ctx, entry.ID)
		if err != nil {
			return fmt.Errorf("listing entry sites: %w", err)
		}
		for _, row := range rows {
			if !enabled[row.SiteID] {
				if err := tx.DeleteEntrySite(ctx, entry.ID, row.SiteID); err != nil {
					return fmt.Errorf("deleting entry site %d: %w", row.SiteID, err)
				}
			}
		}
		return nil
	})
}

func hasType(types []*model.EntryType, id int64) bool {
	for _, et := range types {
		if et.ID == id {
			return true
		}
	}
	return false
}
