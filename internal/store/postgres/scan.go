package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/alfredjeanlab/cms/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanAll collects every row of rows using scan.
func scanAll[T any](rows *sql.Rows, scan func(scannable) (*T, error)) ([]*T, error) {
	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// scanSite scans a row in siteColumns order.
func scanSite(row scannable) (*model.Site, error) {
	var s model.Site
	var baseURL sql.NullString
	if err := row.Scan(&s.ID, &s.UID, &s.Name, &s.Handle, &s.Primary, &baseURL, &s.SortOrder); err != nil {
		return nil, err
	}
	s.BaseURL = baseURL.String
	return &s, nil
}

// scanField scans a row in fieldColumns order.
func scanField(row scannable) (*model.Field, error) {
	var f model.Field
	var instructions sql.NullString
	if err := row.Scan(&f.ID, &f.UID, &f.Name, &f.Handle, &f.Type, &instructions); err != nil {
		return nil, err
	}
	f.Instructions = instructions.String
	return &f, nil
}

// scanLayoutField scans a field_layout_fields row joined with the field uid.
func scanLayoutField(row scannable) (*model.LayoutField, error) {
	var lf model.LayoutField
	if err := row.Scan(&lf.FieldID, &lf.FieldUID, &lf.Tab, &lf.TabOrder, &lf.Required, &lf.SortOrder); err != nil {
		return nil, err
	}
	return &lf, nil
}

func scanStructure(row scannable) (*model.Structure, error) {
	var s model.Structure
	if err := row.Scan(&s.ID, &s.UID, &s.MaxLevels); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanStructureElement(row scannable) (*model.StructureElement, error) {
	var el model.StructureElement
	var parentID sql.NullInt64
	if err := row.Scan(&el.ID, &el.StructureID, &el.ElementID, &parentID, &el.Level, &el.SortOrder); err != nil {
		return nil, err
	}
	el.ParentID = parentID.Int64
	return &el, nil
}

// scanSection scans a row in sectionColumns order.
func scanSection(row scannable) (*model.Section, error) {
	var s model.Section
	var structureID sql.NullInt64
	err := row.Scan(
		&s.ID,
		&s.UID,
		&structureID,
		&s.Name,
		&s.Handle,
		&s.Type,
		&s.EnableVersioning,
		&s.PropagateEntries,
		&s.MaxLevels,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.StructureID = structureID.Int64
	return &s, nil
}

// scanSiteSettings scans a row in siteSettingsColumns order.
func scanSiteSettings(row scannable) (*model.SiteSettings, error) {
	var ss model.SiteSettings
	var uriFormat, template sql.NullString
	err := row.Scan(&ss.ID, &ss.SectionID, &ss.SiteID, &ss.EnabledByDefault, &ss.HasURLs, &uriFormat, &template)
	if err != nil {
		return nil, err
	}
	ss.URIFormat = uriFormat.String
	ss.Template = template.String
	return &ss, nil
}

// scanEntryType scans a row in entryTypeColumns order.
func scanEntryType(row scannable) (*model.EntryType, error) {
	var et model.EntryType
	var (
		fieldLayoutID sql.NullInt64
		titleLabel    sql.NullString
		titleFormat   sql.NullString
	)
	err := row.Scan(
		&et.ID,
		&et.UID,
		&et.SectionID,
		&fieldLayoutID,
		&et.Name,
		&et.Handle,
		&et.HasTitleField,
		&titleLabel,
		&titleFormat,
		&et.SortOrder,
		&et.CreatedAt,
		&et.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	et.FieldLayoutID = fieldLayoutID.Int64
	et.TitleLabel = titleLabel.String
	et.TitleFormat = titleFormat.String
	return &et, nil
}

// scanEntry scans a row in entryColumns order.
func scanEntry(row scannable) (*model.Entry, error) {
	var e model.Entry
	if err := row.Scan(&e.ID, &e.UID, &e.SectionID, &e.TypeID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEntrySite(row scannable) (*model.EntrySite, error) {
	var es model.EntrySite
	var uri sql.NullString
	if err := row.Scan(&es.EntryID, &es.SiteID, &es.Title, &es.Slug, &uri, &es.Enabled); err != nil {
		return nil, err
	}
	es.URI = uri.String
	return &es, nil
}

// scanConfig scans a single row into a model.Config.
func scanConfig(row scannable) (*model.Config, error) {
	var c model.Config
	var value []byte
	err := row.Scan(&c.Key, &value, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Value = json.RawMessage(value)
	return &c, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullID converts a row id to sql.NullInt64; zero is null.
func nullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}

// expectAffected converts a zero-row result into sql.ErrNoRows.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
