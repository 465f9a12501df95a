package sections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/store"
)

// cache memoizes sections and entry types. The section maps are filled
// together on the first full scan; entry types are filled per section.
// Every successful apply or delete clears everything.
type cache struct {
	store store.Store

	mu       sync.Mutex
	loaded   bool
	all      []*model.Section
	byID     map[int64]*model.Section
	byUID    map[string]*model.Section
	byHandle map[string]*model.Section

	typesBySection map[int64][]*model.EntryType
	typesByID      map[int64]*model.EntryType
}

func newCache(st store.Store) *cache {
	c := &cache{store: st}
	c.resetLocked()
	return c
}

func (c *cache) resetLocked() {
	c.loaded = false
	c.all = nil
	c.byID = make(map[int64]*model.Section)
	c.byUID = make(map[string]*model.Section)
	c.byHandle = make(map[string]*model.Section)
	c.typesBySection = make(map[int64][]*model.EntryType)
	c.typesByID = make(map[int64]*model.EntryType)
}

func (c *cache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *cache) loadLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	sections, err := c.store.ListSections(ctx)
	if err != nil {
		return fmt.Errorf("listing sections: %w", err)
	}
	for _, section := range sections {
		settings, err := c.store.ListSiteSettings(ctx, section.ID)
		if err != nil {
			return fmt.Errorf("listing site settings of section %d: %w", section.ID, err)
		}
		section.SiteSettings = make(map[int64]*model.SiteSettings, len(settings))
		for _, ss := range settings {
			section.SiteSettings[ss.SiteID] = ss
		}
		c.byID[section.ID] = section
		c.byUID[section.UID] = section
		c.byHandle[section.Handle] = section
	}
	c.all = sections
	c.loaded = true
	return nil
}

func (c *cache) sections(ctx context.Context) ([]*model.Section, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]*model.Section, len(c.all))
	for i, section := range c.all {
		out[i] = cloneSection(section)
	}
	return out, nil
}

func (c *cache) section(ctx context.Context, index func(*cache) map[string]*model.Section, key string) (*model.Section, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}
	section, ok := index(c)[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, key)
	}
	return cloneSection(section), nil
}

func (c *cache) sectionByID(ctx context.Context, id int64) (*model.Section, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}
	section, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrSectionNotFound, id)
	}
	return cloneSection(section), nil
}

func (c *cache) entryTypes(ctx context.Context, sectionID int64) ([]*model.EntryType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	types, ok := c.typesBySection[sectionID]
	if !ok {
		var err error
		types, err = c.store.ListEntryTypes(ctx, sectionID)
		if err != nil {
			return nil, fmt.Errorf("listing entry types of section %d: %w", sectionID, err)
		}
		c.typesBySection[sectionID] = types
		for _, et := range types {
			c.typesByID[et.ID] = et
		}
	}
	out := make([]*model.EntryType, len(types))
	for i, et := range types {
		cp := *et
		out[i] = &cp
	}
	return out, nil
}

func (c *cache) entryType(ctx context.Context, id int64) (*model.EntryType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	et, ok := c.typesByID[id]
	if !ok {
		var err error
		et, err = c.store.GetEntryType(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrEntryTypeNotFound, id)
		}
		if err != nil {
			return nil, fmt.Errorf("loading entry type %d: %w", id, err)
		}
		c.typesByID[id] = et
	}
	cp := *et
	return &cp, nil
}

func cloneSection(s *model.Section) *model.Section {
	cp := *s
	cp.Errors = nil
	if s.SiteSettings != nil {
		cp.SiteSettings = make(map[int64]*model.SiteSettings, len(s.SiteSettings))
		for id, ss := range s.SiteSettings {
			ssCopy := *ss
			cp.SiteSettings[id] = &ssCopy
		}
	}
	return &cp
}

// AllSections returns every section ordered by name.
func (s *Service) AllSections(ctx context.Context) ([]*model.Section, error) {
	return s.cache.sections(ctx)
}

// AllSectionIDs returns the IDs of every section.
func (s *Service) AllSectionIDs(ctx context.Context) ([]int64, error) {
	sections, err := s.cache.sections(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(sections))
	for i, section := range sections {
		ids[i] = section.ID
	}
	return ids, nil
}

// SectionByID returns the section with the given ID.
func (s *Service) SectionByID(ctx context.Context, id int64) (*model.Section, error) {
	return s.cache.sectionByID(ctx, id)
}

// SectionByUID returns the section with the given UID.
func (s *Service) SectionByUID(ctx context.Context, uid string) (*model.Section, error) {
	return s.cache.section(ctx, func(c *cache) map[string]*model.Section { return c.byUID }, uid)
}

// SectionByHandle returns the section with the given handle.
func (s *Service) SectionByHandle(ctx context.Context, handle string) (*model.Section, error) {
	return s.cache.section(ctx, func(c *cache) map[string]*model.Section { return c.byHandle }, handle)
}

// SectionsByType returns the sections of one type.
func (s *Service) SectionsByType(ctx context.Context, t model.SectionType) ([]*model.Section, error) {
	all, err := s.cache.sections(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.Section
	for _, section := range all {
		if section.Type == t {
			out = append(out, section)
		}
	}
	return out, nil
}

// SiteSettingsForSection returns a section's settings keyed by site ID.
func (s *Service) SiteSettingsForSection(ctx context.Context, sectionID int64) (map[int64]*model.SiteSettings, error) {
	section, err := s.cache.sectionByID(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	return section.SiteSettings, nil
}

// EntryTypesBySectionID returns a section's entry types ordered by sort
// order.
func (s *Service) EntryTypesBySectionID(ctx context.Context, sectionID int64) ([]*model.EntryType, error) {
	return s.cache.entryTypes(ctx, sectionID)
}

// EntryTypeByID returns the entry type with the given ID.
func (s *Service) EntryTypeByID(ctx context.Context, id int64) (*model.EntryType, error) {
	return s.cache.entryType(ctx, id)
}
