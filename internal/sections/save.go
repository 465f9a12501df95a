package sections

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/alfredjeanlab/cms/internal/events"
	"github.com/alfredjeanlab/cms/internal/idgen"
	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/projectconfig"
)

// DefaultTitleLabel is the title label of entry types created for new
// sections.
const DefaultTitleLabel = "Title"

// SingleTitleFormat titles the entry of a single section after the section.
const SingleTitleFormat = "{section.name}"

// SaveSection validates section and writes it to project config. The change
// is applied before SaveSection returns, so section.ID is set afterwards.
// A new section also gets a default entry type named after it.
//
// Validation failures are returned as *model.ValidationError and recorded
// on section.Errors; no config is written in that case.
func (s *Service) SaveSection(ctx context.Context, section *model.Section, validate bool) error {
	section.Errors = nil
	if validate {
		if err := s.validateSection(ctx, section); err != nil {
			var ve *model.ValidationError
			if errors.As(err, &ve) {
				section.Errors = ve.Errors
			}
			return err
		}
	}

	isNew := section.IsNew()
	if err := s.notify.Before(ctx, events.BeforeSaveSection, events.SectionSaved{Section: section, IsNew: isNew}); err != nil {
		return err
	}
	if isNew && section.UID == "" {
		section.UID = idgen.UID()
	}

	cfg, err := s.sectionConfig(ctx, section)
	if err != nil {
		return err
	}
	if err := s.config.Set(ctx, sectionPath(section.UID), cfg); err != nil {
		return fmt.Errorf("save section %s: %w", section.Handle, err)
	}

	live, err := s.SectionByUID(ctx, section.UID)
	if err != nil {
		return err
	}
	section.ID = live.ID
	section.StructureID = live.StructureID
	section.SiteSettings = live.SiteSettings

	if isNew {
		et := &model.EntryType{
			SectionID:     section.ID,
			Name:          section.Name,
			Handle:        section.Handle,
			HasTitleField: section.Type != model.SectionTypeSingle,
		}
		if et.HasTitleField {
			et.TitleLabel = DefaultTitleLabel
		} else {
			et.TitleFormat = SingleTitleFormat
		}
		if err := s.SaveEntryType(ctx, et, false); err != nil {
			if rmErr := s.config.Remove(ctx, sectionPath(section.UID)); rmErr != nil {
				s.logger.Error("removing section without entry type", "section", section.UID, "err", rmErr)
			} else {
				section.ID = 0
				section.StructureID = 0
			}
			return fmt.Errorf("creating default entry type: %w", err)
		}
	}
	return nil
}

// pruneDeletedSite drops a deleted site from the site settings of every
// section in project config. A section left without site settings is
// deleted.
func (s *Service) pruneDeletedSite(ctx context.Context, payload any) error {
	ev, ok := payload.(events.SiteDeleted)
	if !ok || ev.SiteUID == "" {
		return nil
	}
	all, _ := s.config.Get(ConfigKey).(map[string]any)
	var paths []string
	for uid, v := range all {
		siteCfg := projectconfig.Map(projectconfig.AsMap(v), "siteSettings")
		if _, ok := siteCfg[ev.SiteUID]; !ok {
			continue
		}
		if len(siteCfg) == 1 {
			paths = append(paths, sectionPath(uid))
		} else {
			paths = append(paths, siteSettingsPath(uid, ev.SiteUID))
		}
	}
	if len(paths) == 0 {
		return nil
	}
	sort.Strings(paths)

	return s.config.Batch(ctx, func() error {
		for _, path := range paths {
			if err := s.config.Remove(ctx, path); err != nil {
				return err
			}
			s.logger.Info("pruned deleted site from section config", "site", ev.SiteUID, "path", path)
		}
		return nil
	})
}

func (s *Service) validateSection(ctx context.Context, section *model.Section) error {
	ve := &model.ValidationError{}
	if err := model.ValidateSection(section); err != nil {
		errors.As(err, &ve)
	}

	all, err := s.AllSections(ctx)
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.ID == section.ID || other.UID == section.UID {
			continue
		}
		if other.Handle == section.Handle {
			ve.Add("handle", fmt.Sprintf("%q is already in use", section.Handle))
		}
		if other.Name == section.Name {
			ve.Add("name", fmt.Sprintf("%q is already in use", section.Name))
		}
	}

	ids := make([]int64, 0, len(section.SiteSettings))
	for id := range section.SiteSettings {
		ids = append(ids, id)
	}
	known, err := s.sites.UIDsForIDs(ctx, ids)
	if err != nil {
		return err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			ve.Add("site_settings", fmt.Sprintf("site %d does not exist", id))
		}
	}
	return ve.Err()
}

// sectionConfig builds the config of a section. Entry types already in
// config are carried over since the section value does not describe them.
func (s *Service) sectionConfig(ctx context.Context, section *model.Section) (map[string]any, error) {
	if len(section.SiteSettings) == 0 {
		return nil, model.Invariantf("section %s has no site settings", section.Handle)
	}
	ids := make([]int64, 0, len(section.SiteSettings))
	for id := range section.SiteSettings {
		ids = append(ids, id)
	}
	uids, err := s.sites.UIDsForIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	siteSettings := make(map[string]any, len(section.SiteSettings))
	for id, ss := range section.SiteSettings {
		uid, ok := uids[id]
		if !ok {
			return nil, model.Invariantf("section %s has settings for unknown site %d", section.Handle, id)
		}
		siteSettings[uid] = map[string]any{
			"enabledByDefault": ss.EnabledByDefault,
			"hasUrls":          ss.HasURLs,
			"uriFormat":        ss.URIFormat,
			"template":         ss.Template,
		}
	}

	cfg := map[string]any{
		"name":             section.Name,
		"handle":           section.Handle,
		"type":             string(section.Type),
		"enableVersioning": section.EnableVersioning,
		"propagateEntries": section.PropagateEntries,
		"siteSettings":     siteSettings,
	}

	existing := projectconfig.AsMap(s.config.Get(sectionPath(section.UID)))
	if section.Type == model.SectionTypeStructure {
		structureUID, err := s.structureUID(ctx, section, existing)
		if err != nil {
			return nil, err
		}
		cfg["structure"] = map[string]any{
			"uid":       structureUID,
			"maxLevels": section.MaxLevels,
		}
	}
	if entryTypes := projectconfig.Map(existing, "entryTypes"); entryTypes != nil {
		cfg["entryTypes"] = entryTypes
	}
	return cfg, nil
}

func (s *Service) structureUID(ctx context.Context, section *model.Section, existing map[string]any) (string, error) {
	if section.StructureID != 0 {
		st, err := s.store.GetStructure(ctx, section.StructureID)
		if err == nil {
			return st.UID, nil
		}
		s.logger.Warn("section structure missing, minting a new one",
			"section", section.Handle, "structure_id", section.StructureID, "error", err)
	}
	if uid := projectconfig.String(projectconfig.Map(existing, "structure"), "uid"); uid != "" {
		return uid, nil
	}
	return idgen.UID(), nil
}

// DeleteSection removes the section's config. Its rows are deleted when the
// removal is applied.
func (s *Service) DeleteSection(ctx context.Context, section *model.Section) error {
	if err := s.notify.Before(ctx, events.BeforeDeleteSection, events.SectionDeleted{SectionID: section.ID, SectionUID: section.UID}); err != nil {
		return err
	}
	if err := s.config.Remove(ctx, sectionPath(section.UID)); err != nil {
		return fmt.Errorf("delete section %s: %w", section.Handle, err)
	}
	return nil
}

// DeleteSectionByID looks the section up and deletes it.
func (s *Service) DeleteSectionByID(ctx context.Context, id int64) error {
	section, err := s.SectionByID(ctx, id)
	if err != nil {
		return err
	}
	return s.DeleteSection(ctx, section)
}
