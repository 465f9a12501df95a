package store

import (
	"context"

	"github.com/alfredjeanlab/cms/internal/model"
)

// Store defines the persistence interface for the live project state:
// the relational rows that applied project config is reconciled into.
//
// Lookups of a missing row return sql.ErrNoRows. Create methods assign the
// row ID (and timestamps where the model has them) on the passed value.
type Store interface {
	// Sites
	CreateSite(ctx context.Context, site *model.Site) error
	UpdateSite(ctx context.Context, site *model.Site) error
	GetSite(ctx context.Context, id int64) (*model.Site, error)
	GetSiteByUID(ctx context.Context, uid string) (*model.Site, error)
	ListSites(ctx context.Context) ([]*model.Site, error) // ordered by sort_order, id
	DeleteSite(ctx context.Context, id int64) error

	// Fields
	CreateField(ctx context.Context, field *model.Field) error
	UpdateField(ctx context.Context, field *model.Field) error
	GetFieldByUID(ctx context.Context, uid string) (*model.Field, error)
	ListFields(ctx context.Context) ([]*model.Field, error)
	DeleteField(ctx context.Context, id int64) error

	// Field layouts. Layout fields are written and read with the layout.
	CreateFieldLayout(ctx context.Context, layout *model.FieldLayout) error
	UpdateFieldLayout(ctx context.Context, layout *model.FieldLayout) error
	GetFieldLayout(ctx context.Context, id int64) (*model.FieldLayout, error)
	DeleteFieldLayout(ctx context.Context, id int64) error

	// Structures
	CreateStructure(ctx context.Context, structure *model.Structure) error
	UpdateStructure(ctx context.Context, structure *model.Structure) error
	GetStructure(ctx context.Context, id int64) (*model.Structure, error)
	GetStructureByUID(ctx context.Context, uid string) (*model.Structure, error)
	DeleteStructure(ctx context.Context, id int64) error // also removes its elements
	CreateStructureElement(ctx context.Context, el *model.StructureElement) error
	UpdateStructureElement(ctx context.Context, el *model.StructureElement) error
	GetStructureElement(ctx context.Context, structureID, elementID int64) (*model.StructureElement, error)
	ListStructureElements(ctx context.Context, structureID int64) ([]*model.StructureElement, error) // ordered by sort_order
	MaxStructureSortOrder(ctx context.Context, structureID int64) (int, error)                       // 0 when empty

	// Sections
	CreateSection(ctx context.Context, section *model.Section) error
	UpdateSection(ctx context.Context, section *model.Section) error
	GetSection(ctx context.Context, id int64) (*model.Section, error)
	GetSectionByUID(ctx context.Context, uid string) (*model.Section, error)
	ListSections(ctx context.Context) ([]*model.Section, error) // ordered by name, id
	DeleteSection(ctx context.Context, id int64) error

	// Section site settings
	CreateSiteSettings(ctx context.Context, settings *model.SiteSettings) error
	UpdateSiteSettings(ctx context.Context, settings *model.SiteSettings) error
	ListSiteSettings(ctx context.Context, sectionID int64) ([]*model.SiteSettings, error)
	DeleteSiteSettings(ctx context.Context, id int64) error
	DeleteSiteSettingsBySite(ctx context.Context, siteID int64) error

	// Entry types
	CreateEntryType(ctx context.Context, et *model.EntryType) error
	UpdateEntryType(ctx context.Context, et *model.EntryType) error
	GetEntryType(ctx context.Context, id int64) (*model.EntryType, error)
	GetEntryTypeByUID(ctx context.Context, uid string) (*model.EntryType, error)
	ListEntryTypes(ctx context.Context, sectionID int64) ([]*model.EntryType, error) // ordered by sort_order, id
	MaxEntryTypeSortOrder(ctx context.Context, sectionID int64) (int, error)         // 0 when empty
	DeleteEntryType(ctx context.Context, id int64) error

	// Entries
	CreateEntry(ctx context.Context, entry *model.Entry) error
	UpdateEntry(ctx context.Context, entry *model.Entry) error
	GetEntry(ctx context.Context, id int64) (*model.Entry, error)
	ListEntries(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error) // ordered by id
	DeleteEntry(ctx context.Context, id int64) error                                  // also removes its site rows
	UpsertEntrySite(ctx context.Context, es *model.EntrySite) error
	ListEntrySites(ctx context.Context, entryID int64) ([]*model.EntrySite, error) // ordered by site_id
	DeleteEntrySite(ctx context.Context, entryID, siteID int64) error
	DeleteEntrySitesBySection(ctx context.Context, sectionID, siteID int64) error
	DeleteEntrySitesBySite(ctx context.Context, siteID int64) error

	// Configs
	SetConfig(ctx context.Context, config *model.Config) error
	GetConfig(ctx context.Context, key string) (*model.Config, error)
	ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error)
	ListAllConfigs(ctx context.Context) ([]*model.Config, error)
	DeleteConfig(ctx context.Context, key string) error

	// Transaction support. Calling RunInTransaction on the tx store reuses
	// the same transaction.
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
