// Package memory implements store.Store in process memory. It backs the
// CLI's --memory mode and the reconciler tests.
//
// Transactions are serialized. Beginning one snapshots the whole state and
// a failed fn restores it, so a rolled-back apply leaves no rows behind.
// Reads from outside a running transaction see its uncommitted writes.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/store"
)

type entrySiteKey struct {
	entryID int64
	siteID  int64
}

type state struct {
	nextID       int64
	sites        map[int64]model.Site
	fields       map[int64]model.Field
	layouts      map[int64]model.FieldLayout
	structures   map[int64]model.Structure
	elements     map[int64]model.StructureElement
	sections     map[int64]model.Section
	siteSettings map[int64]model.SiteSettings
	entryTypes   map[int64]model.EntryType
	entries      map[int64]model.Entry
	entrySites   map[entrySiteKey]model.EntrySite
	configs      map[string]model.Config
}

func newState() *state {
	return &state{
		sites:        make(map[int64]model.Site),
		fields:       make(map[int64]model.Field),
		layouts:      make(map[int64]model.FieldLayout),
		structures:   make(map[int64]model.Structure),
		elements:     make(map[int64]model.StructureElement),
		sections:     make(map[int64]model.Section),
		siteSettings: make(map[int64]model.SiteSettings),
		entryTypes:   make(map[int64]model.EntryType),
		entries:      make(map[int64]model.Entry),
		entrySites:   make(map[entrySiteKey]model.EntrySite),
		configs:      make(map[string]model.Config),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *state) clone() *state {
	c := &state{
		nextID:       st.nextID,
		sites:        copyMap(st.sites),
		fields:       copyMap(st.fields),
		layouts:      make(map[int64]model.FieldLayout, len(st.layouts)),
		structures:   copyMap(st.structures),
		elements:     copyMap(st.elements),
		sections:     copyMap(st.sections),
		siteSettings: copyMap(st.siteSettings),
		entryTypes:   copyMap(st.entryTypes),
		entries:      copyMap(st.entries),
		entrySites:   copyMap(st.entrySites),
		configs:      make(map[string]model.Config, len(st.configs)),
	}
	for id, l := range st.layouts {
		c.layouts[id] = copyLayout(l)
	}
	for k, cfg := range st.configs {
		cfg.Value = append([]byte(nil), cfg.Value...)
		c.configs[k] = cfg
	}
	return c
}

func copyLayout(l model.FieldLayout) model.FieldLayout {
	fields := make([]*model.LayoutField, len(l.Fields))
	for i, f := range l.Fields {
		cp := *f
		fields[i] = &cp
	}
	l.Fields = fields
	return l
}

// Store is an in-memory store.Store.
type Store struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	data  *state
	fails map[string]error
	now   func() time.Time
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		data:  newState(),
		fails: make(map[string]error),
		now:   time.Now,
	}
}

// InjectFailure makes every call of the named method (e.g.
// "CreateSiteSettings") return err until ClearFailures is called.
func (s *Store) InjectFailure(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[op] = err
}

// ClearFailures removes all injected failures.
func (s *Store) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails = make(map[string]error)
}

// lock acquires the state lock and returns the injected failure for op.
// The caller must unlock s.mu in either case.
func (s *Store) lock(op string) error {
	s.mu.Lock()
	if err := s.fails[op]; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) id() int64 {
	s.data.nextID++
	return s.data.nextID
}

// RunInTransaction runs fn against a tx store sharing this state. If fn
// returns an error or panics, the state is restored to what it was on entry.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	rollback := func() {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err := fn(&txStore{Store: s}); err != nil {
		rollback()
		return err
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// txStore reuses the running transaction for nested RunInTransaction calls.
type txStore struct {
	*Store
}

func (t *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// --- Sites ---

func (s *Store) CreateSite(ctx context.Context, site *model.Site) error {
	err := s.lock("CreateSite")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	for _, existing := range s.data.sites {
		if existing.UID == site.UID {
			return fmt.Errorf("site uid %s already exists", site.UID)
		}
	}
	site.ID = s.id()
	s.data.sites[site.ID] = *site
	return nil
}

func (s *Store) UpdateSite(ctx context.Context, site *model.Site) error {
	err := s.lock("UpdateSite")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.sites[site.ID]; !ok {
		return sql.ErrNoRows
	}
	s.data.sites[site.ID] = *site
	return nil
}

func (s *Store) GetSite(ctx context.Context, id int64) (*model.Site, error) {
	err := s.lock("GetSite")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	site, ok := s.data.sites[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &site, nil
}

func (s *Store) GetSiteByUID(ctx context.Context, uid string) (*model.Site, error) {
	err := s.lock("GetSiteByUID")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, site := range s.data.sites {
		if site.UID == uid {
			return &site, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) ListSites(ctx context.Context) ([]*model.Site, error) {
	err := s.lock("ListSites")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Site, 0, len(s.data.sites))
	for _, site := range s.data.sites {
		out = append(out, &site)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) DeleteSite(ctx context.Context, id int64) error {
	err := s.lock("DeleteSite")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.sites[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.data.sites, id)
	return nil
}

// --- Fields ---

func (s *Store) CreateField(ctx context.Context, field *model.Field) error {
	err := s.lock("CreateField")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	field.ID = s.id()
	s.data.fields[field.ID] = *field
	return nil
}

func (s *Store) UpdateField(ctx context.Context, field *model.Field) error {
	err := s.lock("UpdateField")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.fields[field.ID]; !ok {
		return sql.ErrNoRows
	}
	s.data.fields[field.ID] = *field
	return nil
}

func (s *Store) GetFieldByUID(ctx context.Context, uid string) (*model.Field, error) {
	err := s.lock("GetFieldByUID")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, f := range s.data.fields {
		if f.UID == uid {
			return &f, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) ListFields(ctx context.Context) ([]*model.Field, error) {
	err := s.lock("ListFields")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Field, 0, len(s.data.fields))
	for _, f := range s.data.fields {
		out = append(out, &f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteField(ctx context.Context, id int64) error {
	err := s.lock("DeleteField")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.fields[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.data.fields, id)
	// Drop the field from every layout that places it.
	for lid, l := range s.data.layouts {
		kept := l.Fields[:0:0]
		for _, lf := range l.Fields {
			if lf.FieldID != id {
				kept = append(kept, lf)
			}
		}
		l.Fields = kept
		s.data.layouts[lid] = l
	}
	return nil
}

// --- Field layouts ---

func (s *Store) CreateFieldLayout(ctx context.Context, layout *model.FieldLayout) error {
	err := s.lock("CreateFieldLayout")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	layout.ID = s.id()
	s.data.layouts[layout.ID] = copyLayout(*layout)
	return nil
}

func (s *Store) UpdateFieldLayout(ctx context.Context, layout *model.FieldLayout) error {
	err := s.lock("UpdateFieldLayout")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.layouts[layout.ID]; !ok {
		return sql.ErrNoRows
	}
	s.data.layouts[layout.ID] = copyLayout(*layout)
	return nil
}

func (s *Store) GetFieldLayout(ctx context.Context, id int64) (*model.FieldLayout, error) {
	err := s.lock("GetFieldLayout")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	l, ok := s.data.layouts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := copyLayout(l)
	return &cp, nil
}

func (s *Store) DeleteFieldLayout(ctx context.Context, id int64) error {
	err := s.lock("DeleteFieldLayout")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.layouts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.data.layouts, id)
	return nil
}

// --- Structures ---

func (s *Store) CreateStructure(ctx context.Context, structure *model.Structure) error {
	err := s.lock("CreateStructure")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	structure.ID = s.id()
	s.data.structures[structure.ID] = *structure
	return nil
}

func (s *Store) UpdateStructure(ctx context.Context, structure *model.Structure) error {
	err := s.lock("UpdateStructure")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.structures[structure.ID]; !ok {
		return sql.ErrNoRows
	}
	s.data.structures[structure.ID] = *structure
	return nil
}

func (s *Store) GetStructure(ctx context.Context, id int64) (*model.Structure, error) {
	err := s.lock("GetStructure")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	st, ok := s.data.structures[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (s *Store) GetStructureByUID(ctx context.Context, uid string) (*model.Structure, error) {
	err := s.lock("GetStructureByUID")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, st := range s.data.structures {
		if st.UID == uid {
			return &st, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) DeleteStructure(ctx context.Context, id int64) error {
	err := s.lock("DeleteStructure")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.structures[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.data.structures, id)
	for eid, el := range s.data.elements {
		if el.StructureID == id {
			delete(s.data.elements, eid)
		}
	}
	return nil
}

func (s *Store) CreateStructureElement(ctx context.Context, el *model.StructureElement) error {
	err := s.lock("CreateStructureElement")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	for _, existing := range s.data.elements {
		if existing.StructureID == el.StructureID && existing.ElementID == el.ElementID {
			return fmt.Errorf("element %d already in structure %d", el.ElementID, el.StructureID)
		}
	}
	el.ID = s.id()
	s.data.elements[el.ID] = *el
	return nil
}

func (s *Store) UpdateStructureElement(ctx context.Context, el *model.StructureElement) error {
	err := s.lock("UpdateStructureElement")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.elements[el.ID]; !ok {
		return sql.ErrNoRows
	}
	s.data.elements[el.ID] = *el
	return nil
}

func (s *Store) GetStructureElement(ctx context.Context, structureID, elementID int64) (*model.StructureElement, error) {
	err := s.lock("GetStructureElement")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, el := range s.data.elements {
		if el.StructureID == structureID && el.ElementID == elementID {
			return &el, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) ListStructureElements(ctx context.Context, structureID int64) ([]*model.StructureElement, error) {
	err := s.lock("ListStructureElements")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []*model.StructureElement
	for _, el := range s.data.elements {
		if el.StructureID == structureID {
			out = append(out, &el)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) MaxStructureSortOrder(ctx context.Context, structureID int64) (int, error) {
	err := s.lock("MaxStructureSortOrder")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	max := 0
	for _, el := range s.data.elements {
		if el.StructureID == structureID && el.SortOrder > max {
			max = el.SortOrder
		}
	}
	return max, nil
}

// --- Sections ---

func (s *Store) CreateSection(ctx context.Context, section *model.Section) error {
	err := s.lock("CreateSection")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	for _, existing := range s.data.sections {
		if existing.UID == section.UID {
			return fmt.Errorf("section uid %s already exists", section.UID)
		}
	}
	now := s.now().UTC()
	section.ID = s.id()
	section.CreatedAt = now
	section.UpdatedAt = now
	row := *section
	row.SiteSettings = nil
	s.data.sections[section.ID] = row
	return nil
}

func (s *Store) UpdateSection(ctx context.Context, section *model.Section) error {
	err := s.lock("UpdateSection")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	existing, ok := s.data.sections[section.ID]
	if !ok {
		return sql.ErrNoRows
	}
	section.CreatedAt = existing.CreatedAt
	section.UpdatedAt = s.now().UTC()
	row := *section
	row.SiteSettings = nil
	s.data.sections[section.ID] = row
	return nil
}

func (s *Store) GetSection(ctx context.Context, id int64) (*model.Section, error) {
	err := s.lock("GetSection")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sec, ok := s.data.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &sec, nil
}

func (s *Store) GetSectionByUID(ctx context.Context, uid string) (*model.Section, error) {
	err := s.lock("GetSectionByUID")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, sec := range s.data.sections {
		if sec.UID == uid {
			return &sec, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) ListSections(ctx context.Context) ([]*model.Section, error) {
	err := s.lock("ListSections")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Section, 0, len(s.data.sections))
	for _, sec := range s.data.sections {
		out = append(out, &sec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) DeleteSection(ctx context.Context, id int64) error {
	err := s.lock("DeleteSection")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.sections[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.data.sections, id)
	for sid, ss := range s.data.siteSettings {
		if ss.SectionID == id {
			delete(s.data.siteSettings, sid)
		}
	}
	return nil
}

// --- Section site settings ---

func (s *Store) CreateSiteSettings(ctx context.Context, settings *model.SiteSettings) error {
	err := s.lock("CreateSiteSettings")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	for _, existing := range s.data.siteSettings {
		if existing.SectionID == settings.SectionID && existing.SiteID == settings.SiteID {
			return fmt.Errorf("section %d already has settings for site %d", settings.SectionID, settings.SiteID)
		}
	}
	settings.ID = s.id()
	s.data.siteSettings[settings.ID] = *settings
	return nil
}

func (s *Store) UpdateSiteSettings(ctx context.Context, settings *model.SiteSettings) error {
	err := s.lock("UpdateSiteSettings")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.siteSettings[settings.ID]; !ok {
		return sql.ErrNoRows
	}
	s.data.siteSettings[settings.ID] = *settings
	return nil
}

func (s *Store) ListSiteSettings(ctx context.Context, sectionID int64) ([]*model.SiteSettings, error) {
	err := s.lock("ListSiteSettings")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []*model.SiteSettings
	for _, ss := range s.data.siteSettings {
		if ss.SectionID == sectionID {
			out = append(out, &ss)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteID < out[j].SiteID })
	return out, nil
}

func (s *Store) DeleteSiteSettings(ctx context.Context, id int64) error {
	err := s.lock("DeleteSiteSettings")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.siteSettings[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.data.siteSettings, id)
	return nil
}

func (s *Store) DeleteSiteSettingsBySite(ctx context.Context, siteID int64) error {
	err := s.lock("DeleteSiteSettingsBySite")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	for id, ss := range s.data.siteSettings {
		if ss.SiteID == siteID {
			delete(s.data.siteSettings, id)
		}
	}
	return nil
}

// --- Entry types ---

func (s *Store) CreateEntryType(ctx context.Context, et *model.EntryType) error {
	err := s.lock("CreateEntryType")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	for _, existing := range s.data.entryTypes {
		if existing.UID == et.UID {
			return fmt.Errorf("entry type uid %s already exists", et.UID)
		}
	}
	now := s.now().UTC()
	et.ID = s.id()
	et.CreatedAt = now
	et.UpdatedAt = now
	row := *et
	row.FieldLayout = nil
	s.data.entryTypes[et.ID] = row
	return nil
}

func (s *Store) UpdateEntryType(ctx context.Context, et *model.EntryType) error {
	err := s.lock("UpdateEntryType")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	existing, ok := s.data.entryTypes[et.ID]
	if !ok {
		return sql.ErrNoRows
	}
	et.CreatedAt = existing.CreatedAt
	et.UpdatedAt = s.now().UTC()
	row := *et
	row.FieldLayout = nil
	s.data.entryTypes[et.ID] = row
	return nil
}

func (s *Store) GetEntryType(ctx context.Context, id int64) (*model.EntryType, error) {
	err := s.lock("GetEntryType")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	et, ok := s.data.entryTypes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &et, nil
}

func (s *Store) GetEntryTypeByUID(ctx context.Context, uid string) (*model.EntryType, error) {
	err := s.lock("GetEntryTypeByUID")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, et := range s.data.entryTypes {
		if et.UID == uid {
			return &et, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) ListEntryTypes(ctx context.Context, sectionID int64) ([]*model.EntryType, error) {
	err := s.lock("ListEntryTypes")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []*model.EntryType
	for _, et := range s.data.entryTypes {
		if et.SectionID == sectionID {
			out = append(out, &et)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) MaxEntryTypeSortOrder(ctx context.Context, sectionID int64) (int, error) {
	err := s.lock("MaxEntryTypeSortOrder")
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	max := 0
	for _, et := range s.data.entryTypes {
		if et.SectionID == sectionID && et.SortOrder > max {
			max = et.SortOrder
		}
	}
	return max, nil
}

func (s *Store) DeleteEntryType(ctx context.Context, id int64) error {
	err := s.lock("DeleteEntryType")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.entryTypes[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.data.entryTypes, id)
	return nil
}

// --- Entries ---

func (s *Store) CreateEntry(ctx context.Context, entry *model.Entry) error {
	err := s.lock("CreateEntry")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	entry.ID = s.id()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	s.data.entries[entry.ID] = *entry
	return nil
}

func (s *Store) UpdateEntry(ctx context.Context, entry *model.Entry) error {
	err := s.lock("UpdateEntry")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	existing, ok := s.data.entries[entry.ID]
	if !ok {
		return sql.ErrNoRows
	}
	entry.CreatedAt = existing.CreatedAt
	entry.UpdatedAt = s.now().UTC()
	s.data.entries[entry.ID] = *entry
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id int64) (*model.Entry, error) {
	err := s.lock("GetEntry")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	e, ok := s.data.entries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s *Store) ListEntries(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error) {
	err := s.lock("ListEntries")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []*model.Entry
	for _, e := range s.data.entries {
		if filter.SectionID != 0 && e.SectionID != filter.SectionID {
			continue
		}
		if filter.TypeID != 0 && e.TypeID != filter.TypeID {
			continue
		}
		if filter.SiteID != 0 {
			es, ok := s.data.entrySites[entrySiteKey{e.ID, filter.SiteID}]
			if !ok || (!es.Enabled && !filter.IncludeDisabled) {
				continue
			}
		}
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	err := s.lock("DeleteEntry")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.entries[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.data.entries, id)
	for k := range s.data.entrySites {
		if k.entryID == id {
			delete(s.data.entrySites, k)
		}
	}
	for eid, el := range s.data.elements {
		if el.ElementID == id {
			delete(s.data.elements, eid)
		}
	}
	return nil
}

func (s *Store) UpsertEntrySite(ctx context.Context, es *model.EntrySite) error {
	err := s.lock("UpsertEntrySite")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.entries[es.EntryID]; !ok {
		return fmt.Errorf("entry %d: %w", es.EntryID, sql.ErrNoRows)
	}
	for k, other := range s.data.entrySites {
		if k.siteID == es.SiteID && k.entryID != es.EntryID && es.URI != "" && strings.EqualFold(other.URI, es.URI) {
			return fmt.Errorf("uri %q already used on site %d", es.URI, es.SiteID)
		}
	}
	s.data.entrySites[entrySiteKey{es.EntryID, es.SiteID}] = *es
	return nil
}

func (s *Store) ListEntrySites(ctx context.Context, entryID int64) ([]*model.EntrySite, error) {
	err := s.lock("ListEntrySites")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []*model.EntrySite
	for k, es := range s.data.entrySites {
		if k.entryID == entryID {
			out = append(out, &es)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteID < out[j].SiteID })
	return out, nil
}

func (s *Store) DeleteEntrySite(ctx context.Context, entryID, siteID int64) error {
	err := s.lock("DeleteEntrySite")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	k := entrySiteKey{entryID, siteID}
	if _, ok := s.data.entrySites[k]; !ok {
		return sql.ErrNoRows
	}
	delete(s.data.entrySites, k)
	return nil
}

func (s *Store) DeleteEntrySitesBySection(ctx context.Context, sectionID, siteID int64) error {
	err := s.lock("DeleteEntrySitesBySection")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	for k := range s.data.entrySites {
		if k.siteID != siteID {
			continue
		}
		if e, ok := s.data.entries[k.entryID]; ok && e.SectionID == sectionID {
			delete(s.data.entrySites, k)
		}
	}
	return nil
}

func (s *Store) DeleteEntrySitesBySite(ctx context.Context, siteID int64) error {
	err := s.lock("DeleteEntrySitesBySite")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	for k := range s.data.entrySites {
		if k.siteID == siteID {
			delete(s.data.entrySites, k)
		}
	}
	return nil
}

// --- Configs ---

func (s *Store) SetConfig(ctx context.Context, config *model.Config) error {
	err := s.lock("SetConfig")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	row := model.Config{Key: config.Key, Value: append([]byte(nil), config.Value...), CreatedAt: now, UpdatedAt: now}
	if existing, ok := s.data.configs[config.Key]; ok {
		row.CreatedAt = existing.CreatedAt
	}
	s.data.configs[config.Key] = row
	config.CreatedAt = row.CreatedAt
	config.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) GetConfig(ctx context.Context, key string) (*model.Config, error) {
	err := s.lock("GetConfig")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c, ok := s.data.configs[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c.Value = append([]byte(nil), c.Value...)
	return &c, nil
}

func (s *Store) ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error) {
	err := s.lock("ListConfigs")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.listConfigsLocked(namespace + ":"), nil
}

func (s *Store) ListAllConfigs(ctx context.Context) ([]*model.Config, error) {
	err := s.lock("ListAllConfigs")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.listConfigsLocked(""), nil
}

func (s *Store) listConfigsLocked(prefix string) []*model.Config {
	var out []*model.Config
	for key, c := range s.data.configs {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		c.Value = append([]byte(nil), c.Value...)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *Store) DeleteConfig(ctx context.Context, key string) error {
	err := s.lock("DeleteConfig")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := s.data.configs[key]; !ok {
		return sql.ErrNoRows
	}
	delete(s.data.configs, key)
	return nil
}
