package postgres

import (
	"context"

	"github.com/alfredjeanlab/cms/internal/model"
)

// sectionColumns is the column list used for SELECT statements on the sections table.
const sectionColumns = `id, uid, structure_id, name, handle, type,
	enable_versioning, propagate_entries, max_levels, created_at, updated_at`

const siteSettingsColumns = `id, section_id, site_id, enabled_by_default, has_urls, uri_format, template`

// entryTypeColumns is the column list used for SELECT statements on the entry_types table.
const entryTypeColumns = `id, uid, section_id, field_layout_id, name, handle,
	has_title_field, title_label, title_format, sort_order, created_at, updated_at`

// --- Sections ---

func (q queries) CreateSection(ctx context.Context, s *model.Section) error {
	return q.db.QueryRowContext(ctx, `
		INSERT INTO sections (
			uid, structure_id, name, handle, type,
			enable_versioning, propagate_entries, max_levels
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		s.UID,
		nullID(s.StructureID),
		s.Name,
		s.Handle,
		string(s.Type),
		s.EnableVersioning,
		s.PropagateEntries,
		s.MaxLevels,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (q queries) UpdateSection(ctx context.Context, s *model.Section) error {
	return q.db.QueryRowContext(ctx, `
		UPDATE sections SET
			structure_id = $2, name = $3, handle = $4, type = $5,
			enable_versioning = $6, propagate_entries = $7, max_levels = $8,
			updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		s.ID,
		nullID(s.StructureID),
		s.Name,
		s.Handle,
		string(s.Type),
		s.EnableVersioning,
		s.PropagateEntries,
		s.MaxLevels,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (q queries) GetSection(ctx context.Context, id int64) (*model.Section, error) {
	return scanSection(q.db.QueryRowContext(ctx, `SELECT `+sectionColumns+` FROM sections WHERE id = $1`, id))
}

func (q queries) GetSectionByUID(ctx context.Context, uid string) (*model.Section, error) {
	return scanSection(q.db.QueryRowContext(ctx, `SELECT `+sectionColumns+` FROM sections WHERE uid = $1`, uid))
}

func (q queries) ListSections(ctx context.Context) ([]*model.Section, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+sectionColumns+` FROM sections ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanSection)
}

func (q queries) DeleteSection(ctx context.Context, id int64) error {
	return q.execAffected(ctx, `DELETE FROM sections WHERE id = $1`, id)
}

// --- Section site settings ---

func (q queries) CreateSiteSettings(ctx context.Context, ss *model.SiteSettings) error {
	return q.db.QueryRowContext(ctx, `
		INSERT INTO sections_sites (section_id, site_id, enabled_by_default, has_urls, uri_format, template)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		ss.SectionID, ss.SiteID, ss.EnabledByDefault, ss.HasURLs, nullString(ss.URIFormat), nullString(ss.Template),
	).Scan(&ss.ID)
}

func (q queries) UpdateSiteSettings(ctx context.Context, ss *model.SiteSettings) error {
	return q.execAffected(ctx, `
		UPDATE sections_sites SET enabled_by_default = $2, has_urls = $3, uri_format = $4, template = $5
		WHERE id = $1`,
		ss.ID, ss.EnabledByDefault, ss.HasURLs, nullString(ss.URIFormat), nullString(ss.Template),
	)
}

func (q queries) ListSiteSettings(ctx context.Context, sectionID int64) ([]*model.SiteSettings, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+siteSettingsColumns+` FROM sections_sites
		WHERE section_id = $1 ORDER BY site_id`, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanSiteSettings)
}

func (q queries) DeleteSiteSettings(ctx context.Context, id int64) error {
	return q.execAffected(ctx, `DELETE FROM sections_sites WHERE id = $1`, id)
}

func (q queries) DeleteSiteSettingsBySite(ctx context.Context, siteID int64) error {
	return q.exec(ctx, `DELETE FROM sections_sites WHERE site_id = $1`, siteID)
}

// --- Entry types ---

func (q queries) CreateEntryType(ctx context.Context, et *model.EntryType) error {
	return q.db.QueryRowContext(ctx, `
		INSERT INTO entry_types (
			uid, section_id, field_layout_id, name, handle,
			has_title_field, title_label, title_format, sort_order
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		et.UID,
		et.SectionID,
		nullID(et.FieldLayoutID),
		et.Name,
		et.Handle,
		et.HasTitleField,
		nullString(et.TitleLabel),
		nullString(et.TitleFormat),
		et.SortOrder,
	).Scan(&et.ID, &et.CreatedAt, &et.UpdatedAt)
}

func (q queries) UpdateEntryType(ctx context.Context, et *model.EntryType) error {
	return q.db.QueryRowContext(ctx, `
		UPDATE entry_types SET
			section_id = $2, field_layout_id = $3, name = $4, handle = $5,
			has_title_field = $6, title_label = $7, title_format = $8, sort_order = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		et.ID,
		et.SectionID,
		nullID(et.FieldLayoutID),
		et.Name,
		et.Handle,
		et.HasTitleField,
		nullString(et.TitleLabel),
		nullString(et.TitleFormat),
		et.SortOrder,
	).Scan(&et.CreatedAt, &et.UpdatedAt)
}

func (q queries) GetEntryType(ctx context.Context, id int64) (*model.EntryType, error) {
	return scanEntryType(q.db.QueryRowContext(ctx, `SELECT `+entryTypeColumns+` FROM entry_types WHERE id = $1`, id))
}

func (q queries) GetEntryTypeByUID(ctx context.Context, uid string) (*model.EntryType, error) {
	return scanEntryType(q.db.QueryRowContext(ctx, `SELECT `+entryTypeColumns+` FROM entry_types WHERE uid = $1`, uid))
}

func (q queries) ListEntryTypes(ctx context.Context, sectionID int64) ([]*model.EntryType, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+entryTypeColumns+` FROM entry_types
		WHERE section_id = $1 ORDER BY sort_order, id`, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanEntryType)
}

func (q queries) MaxEntryTypeSortOrder(ctx context.Context, sectionID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sort_order), 0) FROM entry_types WHERE section_id = $1`,
		sectionID,
	).Scan(&n)
	return n, err
}

func (q queries) DeleteEntryType(ctx context.Context, id int64) error {
	return q.execAffected(ctx, `DELETE FROM entry_types WHERE id = $1`, id)
}
