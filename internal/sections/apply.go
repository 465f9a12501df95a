package sections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/alfredjeanlab/cms/internal/dispatch"
	"github.com/alfredjeanlab/cms/internal/events"
	"github.com/alfredjeanlab/cms/internal/fields"
	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/projectconfig"
	"github.com/alfredjeanlab/cms/internal/queue"
	"github.com/alfredjeanlab/cms/internal/sites"
	"github.com/alfredjeanlab/cms/internal/store"
	"github.com/alfredjeanlab/cms/internal/structures"
)

// HandleChangedSection applies sections.<uid>. Sites and fields are
// processed first since site settings and layouts refer to them.
func (s *Service) HandleChangedSection(ctx context.Context, ev dispatch.Event) error {
	uid := ev.Tokens[0]
	cfg := projectconfig.AsMap(ev.NewValue)

	if err := s.config.Process(ctx, sites.ConfigKey); err != nil {
		return err
	}
	if err := s.config.Process(ctx, fields.ConfigKey); err != nil {
		return err
	}

	siteCfg := projectconfig.Map(cfg, "siteSettings")
	if len(siteCfg) == 0 {
		return model.Invariantf("section %s has no site settings", uid)
	}
	siteUIDs, err := s.sites.SortedUIDs(ctx, siteCfg)
	if err != nil {
		return err
	}
	siteIDs, err := s.sites.IDsForUIDs(ctx, siteUIDs)
	if err != nil {
		return err
	}
	for _, siteUID := range siteUIDs {
		if _, ok := siteIDs[siteUID]; !ok {
			return model.Invariantf("section %s has settings for unknown site %s", uid, siteUID)
		}
	}

	var (
		section          *model.Section
		isNew            bool
		structureCreated bool
		jobs             []queue.Job
	)
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		section, err = tx.GetSectionByUID(ctx, uid)
		if errors.Is(err, sql.ErrNoRows) {
			section = &model.Section{UID: uid}
			isNew = true
		} else if err != nil {
			return fmt.Errorf("loading section: %w", err)
		}
		old := *section

		section.Name = projectconfig.String(cfg, "name")
		section.Handle = projectconfig.String(cfg, "handle")
		section.Type = model.SectionType(projectconfig.String(cfg, "type"))
		section.EnableVersioning = projectconfig.Bool(cfg, "enableVersioning")
		section.PropagateEntries = projectconfig.Bool(cfg, "propagateEntries")

		structCfg := projectconfig.Map(cfg, "structure")
		if section.Type == model.SectionTypeStructure && structCfg != nil {
			st, created, err := structures.Resolve(ctx, tx, projectconfig.String(structCfg, "uid"), projectconfig.Int(structCfg, "maxLevels"))
			if err != nil {
				return err
			}
			structureCreated = created
			if old.StructureID != 0 && old.StructureID != st.ID {
				if err := structures.Delete(ctx, tx, old.StructureID); err != nil {
					return err
				}
			}
			section.StructureID = st.ID
			section.MaxLevels = st.MaxLevels
		} else {
			if err := structures.Delete(ctx, tx, old.StructureID); err != nil {
				return err
			}
			section.StructureID = 0
			section.MaxLevels = 0
		}

		if isNew {
			err = tx.CreateSection(ctx, section)
		} else {
			err = tx.UpdateSection(ctx, section)
		}
		if err != nil {
			return fmt.Errorf("saving section: %w", err)
		}

		oldSiteIDs, err := s.applySiteSettings(ctx, tx, section, siteCfg, siteUIDs, siteIDs)
		if err != nil {
			return err
		}

		// Existing entries join a structure the first time the section gets
		// one, whether the type changed or the structure UID did.
		if !isNew && section.Type == model.SectionTypeStructure &&
			(old.Type != model.SectionTypeStructure || structureCreated) {
			if err := populateStructure(ctx, tx, section); err != nil {
				return err
			}
		}

		if !isNew {
			newSiteIDs := make([]int64, len(siteUIDs))
			for i, siteUID := range siteUIDs {
				newSiteIDs[i] = siteIDs[siteUID]
			}
			jobs, err = s.resaveJobs(ctx, section, 0, oldSiteIDs, newSiteIDs)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.pushJobs(ctx, jobs)
	s.cache.invalidate()
	if live, err := s.SectionByUID(ctx, uid); err == nil {
		section = live
	}
	s.notify.After(ctx, events.AfterSaveSection, events.TopicSectionSaved, events.SectionSaved{Section: section, IsNew: isNew})

	if section.Type == model.SectionTypeSingle && !s.config.AreChangesPending(entryTypesPath(uid)) {
		if err := s.ensureSingleEntry(ctx, section.ID); err != nil {
			return fmt.Errorf("ensuring single entry: %w", err)
		}
	}
	return nil
}

// applySiteSettings diffs the section's settings rows against config by
// site. Rows of kept sites are updated in place. It returns the site IDs the
// section was enabled on before.
func (s *Service) applySiteSettings(ctx context.Context, tx store.Store, section *model.Section, siteCfg map[string]any, siteUIDs []string, siteIDs map[string]int64) ([]int64, error) {
	rows, err := tx.ListSiteSettings(ctx, section.ID)
	if err != nil {
		return nil, fmt.Errorf("listing site settings: %w", err)
	}
	bySite := make(map[int64]*model.SiteSettings, len(rows))
	oldSiteIDs := make([]int64, 0, len(rows))
	for _, row := range rows {
		bySite[row.SiteID] = row
		oldSiteIDs = append(oldSiteIDs, row.SiteID)
	}

	section.SiteSettings = make(map[int64]*model.SiteSettings, len(siteUIDs))
	for _, siteUID := range siteUIDs {
		siteID := siteIDs[siteUID]
		c := projectconfig.Map(siteCfg, siteUID)
		row, exists := bySite[siteID]
		if !exists {
			row = &model.SiteSettings{SectionID: section.ID, SiteID: siteID}
		}
		row.EnabledByDefault = projectconfig.Bool(c, "enabledByDefault")
		row.HasURLs = projectconfig.Bool(c, "hasUrls")
		row.URIFormat = ""
		row.Template = ""
		if row.HasURLs {
			row.URIFormat = projectconfig.String(c, "uriFormat")
			row.Template = projectconfig.String(c, "template")
		}

		if exists {
			err = tx.UpdateSiteSettings(ctx, row)
		} else {
			err = tx.CreateSiteSettings(ctx, row)
		}
		if err != nil {
			return nil, fmt.Errorf("saving settings for site %d: %w", siteID, err)
		}
		delete(bySite, siteID)
		section.SiteSettings[siteID] = row
	}

	removed := make([]int64, 0, len(bySite))
	for siteID := range bySite {
		removed = append(removed, siteID)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	for _, siteID := range removed {
		if err := tx.DeleteSiteSettings(ctx, bySite[siteID].ID); err != nil {
			return nil, fmt.Errorf("deleting settings for site %d: %w", siteID, err)
		}
		if err := tx.DeleteEntrySitesBySection(ctx, section.ID, siteID); err != nil {
			return nil, fmt.Errorf("deleting entries on site %d: %w", siteID, err)
		}
	}
	return oldSiteIDs, nil
}

// populateStructure appends the section's existing entries to its new
// structure in ID order. Entries already placed are left alone, so a
// redelivered change adds nothing.
func populateStructure(ctx context.Context, tx store.Store, section *model.Section) error {
	entries, err := tx.ListEntries(ctx, model.EntryFilter{SectionID: section.ID})
	if err != nil {
		return fmt.Errorf("listing entries: %w", err)
	}
	for _, entry := range entries {
		if _, err := structures.AppendToRoot(ctx, tx, section.StructureID, entry.ID, structures.ModeInsert); err != nil {
			return err
		}
	}
	return nil
}

// HandleDeletedSection removes a section with its entry types, layouts,
// entries on every site, settings and structure. A section that is already
// gone is ignored.
func (s *Service) HandleDeletedSection(ctx context.Context, ev dispatch.Event) error {
	uid := ev.Tokens[0]
	section, err := s.store.GetSectionByUID(ctx, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading section: %w", err)
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		types, err := tx.ListEntryTypes(ctx, section.ID)
		if err != nil {
			return fmt.Errorf("listing entry types: %w", err)
		}
		for _, et := range types {
			if err := s.layouts.DeleteLayout(ctx, tx, et.FieldLayoutID); err != nil {
				return err
			}
		}

		entries, err := tx.ListEntries(ctx, model.EntryFilter{SectionID: section.ID})
		if err != nil {
			return fmt.Errorf("listing entries: %w", err)
		}
		for _, entry := range entries {
			if err := tx.DeleteEntry(ctx, entry.ID); err != nil {
				return fmt.Errorf("deleting entry %d: %w", entry.ID, err)
			}
		}

		for _, et := range types {
			if err := tx.DeleteEntryType(ctx, et.ID); err != nil {
				return fmt.Errorf("deleting entry type %d: %w", et.ID, err)
			}
		}

		settings, err := tx.ListSiteSettings(ctx, section.ID)
		if err != nil {
			return fmt.Errorf("listing site settings: %w", err)
		}
		for _, ss := range settings {
			if err := tx.DeleteSiteSettings(ctx, ss.ID); err != nil {
				return fmt.Errorf("deleting site settings %d: %w", ss.ID, err)
			}
		}

		if err := structures.Delete(ctx, tx, section.StructureID); err != nil {
			return err
		}
		return tx.DeleteSection(ctx, section.ID)
	})
	if err != nil {
		return err
	}

	s.cache.invalidate()
	s.notify.After(ctx, events.AfterDeleteSection, events.TopicSectionDeleted,
		events.SectionDeleted{SectionID: section.ID, SectionUID: uid})
	return nil
}

// HandleChangedEntryType applies sections.<sectionUid>.entryTypes.<uid>.
// Fields and the owning section are processed first.
func (s *Service) HandleChangedEntryType(ctx context.Context, ev dispatch.Event) error {
	sectionUID, uid := ev.Tokens[0], ev.Tokens[1]
	cfg := projectconfig.AsMap(ev.NewValue)

	if err := s.config.Process(ctx, fields.ConfigKey); err != nil {
		return err
	}
	if err := s.config.Process(ctx, sectionPath(sectionUID)); err != nil {
		return err
	}

	section, err := s.store.GetSectionByUID(ctx, sectionUID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Invariantf("entry type %s belongs to unknown section %s", uid, sectionUID)
	}
	if err != nil {
		return fmt.Errorf("loading section: %w", err)
	}

	var (
		et    *model.EntryType
		isNew bool
		jobs  []queue.Job
	)
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		et, err = tx.GetEntryTypeByUID(ctx, uid)
		if errors.Is(err, sql.ErrNoRows) {
			et = &model.EntryType{UID: uid}
			isNew = true
		} else if err != nil {
			return fmt.Errorf("loading entry type: %w", err)
		}

		et.SectionID = section.ID
		et.Name = projectconfig.String(cfg, "name")
		et.Handle = projectconfig.String(cfg, "handle")
		et.HasTitleField = projectconfig.Bool(cfg, "hasTitleField")
		et.TitleLabel = projectconfig.String(cfg, "titleLabel")
		et.TitleFormat = projectconfig.String(cfg, "titleFormat")
		et.SortOrder = projectconfig.Int(cfg, "sortOrder")

		if err := s.applyFieldLayout(ctx, tx, et, projectconfig.Map(cfg, "fieldLayouts")); err != nil {
			return err
		}

		if isNew {
			err = tx.CreateEntryType(ctx, et)
		} else {
			err = tx.UpdateEntryType(ctx, et)
		}
		if err != nil {
			return fmt.Errorf("saving entry type: %w", err)
		}

		if !isNew {
			settings, err := tx.ListSiteSettings(ctx, section.ID)
			if err != nil {
				return fmt.Errorf("listing site settings: %w", err)
			}
			siteIDs := make([]int64, len(settings))
			for i, ss := range settings {
				siteIDs[i] = ss.SiteID
			}
			jobs, err = s.resaveJobs(ctx, section, et.ID, siteIDs, siteIDs)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.pushJobs(ctx, jobs)
	s.cache.invalidate()
	s.notify.After(ctx, events.AfterSaveEntryType, events.TopicEntryTypeSaved, events.EntryTypeSaved{EntryType: et, IsNew: isNew})

	if section.Type == model.SectionTypeSingle {
		if err := s.ensureSingleEntry(ctx, section.ID); err != nil {
			return fmt.Errorf("ensuring single entry: %w", err)
		}
	}
	return nil
}

// applyFieldLayout creates, updates or deletes the entry type's layout so it
// matches config. Entry types have at most one layout.
func (s *Service) applyFieldLayout(ctx context.Context, tx store.Store, et *model.EntryType, layouts map[string]any) error {
	uids := make([]string, 0, len(layouts))
	for uid := range layouts {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	if len(uids) == 0 {
		err := s.layouts.DeleteLayout(ctx, tx, et.FieldLayoutID)
		et.FieldLayoutID = 0
		return err
	}

	layoutUID := uids[0]
	layoutCfg := projectconfig.Map(layouts, layoutUID)
	if et.FieldLayoutID != 0 {
		current, err := tx.GetFieldLayout(ctx, et.FieldLayoutID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("loading field layout: %w", err)
		}
		if current != nil && current.UID == layoutUID {
			return s.layouts.SaveLayout(ctx, tx, current, layoutCfg)
		}
		if err := s.layouts.DeleteLayout(ctx, tx, et.FieldLayoutID); err != nil {
			return err
		}
	}

	layout, err := s.layouts.CreateLayout(ctx, tx, layoutUID, layoutCfg)
	if err != nil {
		return err
	}
	et.FieldLayoutID = layout.ID
	return nil
}

// HandleDeletedEntryType removes an entry type with its entries on every
// site and its layout. An entry type that is already gone is ignored.
func (s *Service) HandleDeletedEntryType(ctx context.Context, ev dispatch.Event) error {
	uid := ev.Tokens[1]
	et, err := s.store.GetEntryTypeByUID(ctx, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading entry type: %w", err)
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		entries, err := tx.ListEntries(ctx, model.EntryFilter{SectionID: et.SectionID, TypeID: et.ID})
		if err != nil {
			return fmt.Errorf("listing entries: %w", err)
		}
		for _, entry := range entries {
			if err := tx.DeleteEntry(ctx, entry.ID); err != nil {
				return fmt.Errorf("deleting entry %d: %w", entry.ID, err)
			}
		}
		if err := s.layouts.DeleteLayout(ctx, tx, et.FieldLayoutID); err != nil {
			return err
		}
		return tx.DeleteEntryType(ctx, et.ID)
	})
	if err != nil {
		return err
	}

	s.cache.invalidate()
	s.notify.After(ctx, events.AfterDeleteEntryType, events.TopicEntryTypeDeleted,
		events.EntryTypeDeleted{EntryTypeID: et.ID, EntryTypeUID: uid, SectionID: et.SectionID})

	section, err := s.store.GetSection(ctx, et.SectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading section: %w", err)
	}
	if section.Type == model.SectionTypeSingle {
		if err := s.ensureSingleEntry(ctx, section.ID); err != nil {
			return fmt.Errorf("ensuring single entry: %w", err)
		}
	}
	return nil
}
