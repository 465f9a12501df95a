package sections

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/alfredjeanlab/cms/internal/events"
	"github.com/alfredjeanlab/cms/internal/fields"
	"github.com/alfredjeanlab/cms/internal/idgen"
	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/projectconfig"
)

// SaveEntryType validates et and writes it to project config under its
// section. New entry types are placed after the section's existing ones.
func (s *Service) SaveEntryType(ctx context.Context, et *model.EntryType, validate bool) error {
	if validate {
		if err := s.validateEntryType(ctx, et); err != nil {
			return err
		}
	}
	section, err := s.SectionByID(ctx, et.SectionID)
	if err != nil {
		return err
	}

	isNew := et.IsNew()
	if err := s.notify.Before(ctx, events.BeforeSaveEntryType, events.EntryTypeSaved{EntryType: et, IsNew: isNew}); err != nil {
		return err
	}
	if isNew {
		if et.UID == "" {
			et.UID = idgen.UID()
		}
		maxSort, err := s.store.MaxEntryTypeSortOrder(ctx, section.ID)
		if err != nil {
			return fmt.Errorf("reading entry type sort order: %w", err)
		}
		et.SortOrder = maxSort + 1
	}

	path := entryTypePath(section.UID, et.UID)
	layouts, err := s.layoutConfig(ctx, et, projectconfig.AsMap(s.config.Get(path)))
	if err != nil {
		return err
	}
	cfg := map[string]any{
		"name":          et.Name,
		"handle":        et.Handle,
		"hasTitleField": et.HasTitleField,
		"titleLabel":    et.TitleLabel,
		"titleFormat":   et.TitleFormat,
		"sortOrder":     et.SortOrder,
		"fieldLayouts":  layouts,
	}
	if err := s.config.Set(ctx, path, cfg); err != nil {
		return fmt.Errorf("save entry type %s: %w", et.Handle, err)
	}

	live, err := s.store.GetEntryTypeByUID(ctx, et.UID)
	if err != nil {
		return fmt.Errorf("resolving entry type %s: %w", et.UID, err)
	}
	et.ID = live.ID
	et.FieldLayoutID = live.FieldLayoutID
	return nil
}

func (s *Service) validateEntryType(ctx context.Context, et *model.EntryType) error {
	ve := &model.ValidationError{}
	if err := model.ValidateEntryType(et); err != nil {
		errors.As(err, &ve)
	}
	siblings, err := s.EntryTypesBySectionID(ctx, et.SectionID)
	if err != nil {
		return err
	}
	for _, other := range siblings {
		if other.ID == et.ID || (et.UID != "" && other.UID == et.UID) {
			continue
		}
		if other.Handle == et.Handle {
			ve.Add("handle", fmt.Sprintf("%q is already in use in this section", et.Handle))
		}
	}
	return ve.Err()
}

// layoutConfig returns the fieldLayouts value of an entry type: one layout
// keyed by its UID. A layout on et wins; otherwise the layout already in
// config or in the store is carried over.
func (s *Service) layoutConfig(ctx context.Context, et *model.EntryType, existing map[string]any) (map[string]any, error) {
	prior := projectconfig.Map(existing, "fieldLayouts")
	priorUIDs := make([]string, 0, len(prior))
	for uid := range prior {
		priorUIDs = append(priorUIDs, uid)
	}
	sort.Strings(priorUIDs)

	var (
		uid string
		cfg map[string]any
	)
	if len(priorUIDs) > 0 {
		uid = priorUIDs[0]
		cfg = projectconfig.Map(prior, uid)
	}

	if et.FieldLayout != nil || (uid == "" && et.FieldLayoutID != 0) {
		layout := et.FieldLayout
		if layout == nil {
			var err error
			layout, _, err = s.layouts.LayoutConfig(ctx, et.FieldLayoutID)
			if err != nil {
				return nil, err
			}
		}
		if layout.UID != "" {
			uid = layout.UID
		}
		cfg = fields.ConfigFromLayout(layout)
	}

	if uid == "" {
		uid = idgen.UID()
	}
	if cfg == nil {
		cfg = map[string]any{"tabs": []any{}}
	}
	return map[string]any{uid: cfg}, nil
}

// ReorderEntryTypes sets the sort order of the given entry types to their
// position in ids.
func (s *Service) ReorderEntryTypes(ctx context.Context, ids []int64) error {
	return s.config.Batch(ctx, func() error {
		for i, id := range ids {
			et, err := s.EntryTypeByID(ctx, id)
			if err != nil {
				return err
			}
			section, err := s.SectionByID(ctx, et.SectionID)
			if err != nil {
				return err
			}
			if err := s.config.Set(ctx, entryTypePath(section.UID, et.UID)+".sortOrder", i+1); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteEntryType removes the entry type's config.
func (s *Service) DeleteEntryType(ctx context.Context, et *model.EntryType) error {
	section, err := s.SectionByID(ctx, et.SectionID)
	if err != nil {
		return err
	}
	payload := events.EntryTypeDeleted{EntryTypeID: et.ID, EntryTypeUID: et.UID, SectionID: et.SectionID}
	if err := s.notify.Before(ctx, events.BeforeDeleteEntryType, payload); err != nil {
		return err
	}
	if err := s.config.Remove(ctx, entryTypePath(section.UID, et.UID)); err != nil {
		return fmt.Errorf("delete entry type %s: %w", et.Handle, err)
	}
	return nil
}

// DeleteEntryTypeByID looks the entry type up and deletes it.
func (s *Service) DeleteEntryTypeByID(ctx context.Context, id int64) error {
	et, err := s.EntryTypeByID(ctx, id)
	if err != nil {
		return err
	}
	return s.DeleteEntryType(ctx, et)
}
