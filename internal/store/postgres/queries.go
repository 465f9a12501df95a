package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alfredjeanlab/cms/internal/model"
)

const (
	siteColumns             = `id, uid, name, handle, is_primary, base_url, sort_order`
	fieldColumns            = `id, uid, name, handle, type, instructions`
	structureColumns        = `id, uid, max_levels`
	structureElementColumns = `id, structure_id, element_id, parent_id, level, sort_order`
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements every store.Store data method over an executor. It is
// embedded by both Store and txStore.
type queries struct {
	db executor
}

func (q queries) exec(ctx context.Context, query string, args ...any) error {
	_, err := q.db.ExecContext(ctx, query, args...)
	return err
}

func (q queries) execAffected(ctx context.Context, query string, args ...any) error {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if err := expectAffected(res); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("rows affected: %w", err)
	}
	return nil
}

// --- Sites ---

func (q queries) CreateSite(ctx context.Context, s *model.Site) error {
	return q.db.QueryRowContext(ctx, `
		INSERT INTO sites (uid, name, handle, is_primary, base_url, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		s.UID, s.Name, s.Handle, s.Primary, nullString(s.BaseURL), s.SortOrder,
	).Scan(&s.ID)
}

func (q queries) UpdateSite(ctx context.Context, s *model.Site) error {
	return q.execAffected(ctx, `
		UPDATE sites SET name = $2, handle = $3, is_primary = $4, base_url = $5, sort_order = $6
		WHERE id = $1`,
		s.ID, s.Name, s.Handle, s.Primary, nullString(s.BaseURL), s.SortOrder,
	)
}

func (q queries) GetSite(ctx context.Context, id int64) (*model.Site, error) {
	return scanSite(q.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = $1`, id))
}

func (q queries) GetSiteByUID(ctx context.Context, uid string) (*model.Site, error) {
	return scanSite(q.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE uid = $1`, uid))
}

func (q queries) ListSites(ctx context.Context) ([]*model.Site, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanSite)
}

func (q queries) DeleteSite(ctx context.Context, id int64) error {
	return q.execAffected(ctx, `DELETE FROM sites WHERE id = $1`, id)
}

// --- Fields ---

func (q queries) CreateField(ctx context.Context, f *model.Field) error {
	return q.db.QueryRowContext(ctx, `
		INSERT INTO fields (uid, name, handle, type, instructions)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		f.UID, f.Name, f.Handle, f.Type, nullString(f.Instructions),
	).Scan(&f.ID)
}

func (q queries) UpdateField(ctx context.Context, f *model.Field) error {
	return q.execAffected(ctx, `
		UPDATE fields SET name = $2, handle = $3, type = $4, instructions = $5
		WHERE id = $1`,
		f.ID, f.Name, f.Handle, f.Type, nullString(f.Instructions),
	)
}

func (q queries) GetFieldByUID(ctx context.Context, uid string) (*model.Field, error) {
	return scanField(q.db.QueryRowContext(ctx, `SELECT `+fieldColumns+` FROM fields WHERE uid = $1`, uid))
}

func (q queries) ListFields(ctx context.Context) ([]*model.Field, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+fieldColumns+` FROM fields ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanField)
}

func (q queries) DeleteField(ctx context.Context, id int64) error {
	return q.execAffected(ctx, `DELETE FROM fields WHERE id = $1`, id)
}

// --- Field layouts ---

func (q queries) CreateFieldLayout(ctx context.Context, l *model.FieldLayout) error {
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO field_layouts (uid, type) VALUES ($1, $2)
		RETURNING id`,
		l.UID, l.Type,
	).Scan(&l.ID)
	if err != nil {
		return err
	}
	return q.insertLayoutFields(ctx, l)
}

func (q queries) UpdateFieldLayout(ctx context.Context, l *model.FieldLayout) error {
	if err := q.execAffected(ctx, `UPDATE field_layouts SET type = $2 WHERE id = $1`, l.ID, l.Type); err != nil {
		return err
	}
	if err := q.exec(ctx, `DELETE FROM field_layout_fields WHERE layout_id = $1`, l.ID); err != nil {
		return err
	}
	return q.insertLayoutFields(ctx, l)
}

func (q queries) insertLayoutFields(ctx context.Context, l *model.FieldLayout) error {
	for _, lf := range l.Fields {
		err := q.exec(ctx, `
			INSERT INTO field_layout_fields (layout_id, field_id, tab, tab_order, required, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			l.ID, lf.FieldID, lf.Tab, lf.TabOrder, lf.Required, lf.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("insert layout field %d: %w", lf.FieldID, err)
		}
	}
	return nil
}

func (q queries) GetFieldLayout(ctx context.Context, id int64) (*model.FieldLayout, error) {
	var l model.FieldLayout
	err := q.db.QueryRowContext(ctx, `SELECT id, uid, type FROM field_layouts WHERE id = $1`, id).
		Scan(&l.ID, &l.UID, &l.Type)
	if err != nil {
		return nil, err
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT lf.field_id, f.uid, lf.tab, lf.tab_order, lf.required, lf.sort_order
		FROM field_layout_fields lf
		JOIN fields f ON f.id = lf.field_id
		WHERE lf.layout_id = $1
		ORDER BY lf.tab_order, lf.sort_order`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if l.Fields, err = scanAll(rows, scanLayoutField); err != nil {
		return nil, err
	}
	return &l, nil
}

func (q queries) DeleteFieldLayout(ctx context.Context, id int64) error {
	return q.execAffected(ctx, `DELETE FROM field_layouts WHERE id = $1`, id)
}

// --- Structures ---

func (q queries) CreateStructure(ctx context.Context, s *model.Structure) error {
	return q.db.QueryRowContext(ctx, `
		INSERT INTO structures (uid, max_levels) VALUES ($1, $2)
		RETURNING id`,
		s.UID, s.MaxLevels,
	).Scan(&s.ID)
}

func (q queries) UpdateStructure(ctx context.Context, s *model.Structure) error {
	return q.execAffected(ctx, `UPDATE structures SET max_levels = $2 WHERE id = $1`, s.ID, s.MaxLevels)
}

func (q queries) GetStructure(ctx context.Context, id int64) (*model.Structure, error) {
	return scanStructure(q.db.QueryRowContext(ctx, `SELECT `+structureColumns+` FROM structures WHERE id = $1`, id))
}

func (q queries) GetStructureByUID(ctx context.Context, uid string) (*model.Structure, error) {
	return scanStructure(q.db.QueryRowContext(ctx, `SELECT `+structureColumns+` FROM structures WHERE uid = $1`, uid))
}

// DeleteStructure relies on ON DELETE CASCADE to remove the elements.
func (q queries) DeleteStructure(ctx context.Context, id int64) error {
	return q.execAffected(ctx, `DELETE FROM structures WHERE id = $1`, id)
}

func (q queries) CreateStructureElement(ctx context.Context, el *model.StructureElement) error {
	return q.db.QueryRowContext(ctx, `
		INSERT INTO structure_elements (structure_id, element_id, parent_id, level, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		el.StructureID, el.ElementID, nullID(el.ParentID), el.Level, el.SortOrder,
	).Scan(&el.ID)
}

func (q queries) UpdateStructureElement(ctx context.Context, el *model.StructureElement) error {
	return q.execAffected(ctx, `
		UPDATE structure_elements SET parent_id = $2, level = $3, sort_order = $4
		WHERE id = $1`,
		el.ID, nullID(el.ParentID), el.Level, el.SortOrder,
	)
}

func (q queries) GetStructureElement(ctx context.Context, structureID, elementID int64) (*model.StructureElement, error) {
	return scanStructureElement(q.db.QueryRowContext(ctx, `
		SELECT `+structureElementColumns+` FROM structure_elements
		WHERE structure_id = $1 AND element_id = $2`, structureID, elementID))
}

func (q queries) ListStructureElements(ctx context.Context, structureID int64) ([]*model.StructureElement, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+structureElementColumns+` FROM structure_elements
		WHERE structure_id = $1 ORDER BY sort_order, id`, structureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanStructureElement)
}

func (q queries) MaxStructureSortOrder(ctx context.Context, structureID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sort_order), 0) FROM structure_elements WHERE structure_id = $1`,
		structureID,
	).Scan(&n)
	return n, err
}

// --- Configs ---

func (q queries) SetConfig(ctx context.Context, c *model.Config) error {
	return q.db.QueryRowContext(ctx, `
		INSERT INTO configs (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()
		RETURNING created_at, updated_at`,
		c.Key, jsonbBytes(c.Value),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (q queries) GetConfig(ctx context.Context, key string) (*model.Config, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM configs WHERE key = $1`, key)
	return scanConfig(row)
}

func (q queries) ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM configs WHERE key LIKE $1 || ':%'
		ORDER BY key`, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanConfig)
}

func (q queries) ListAllConfigs(ctx context.Context) ([]*model.Config, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM configs ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanConfig)
}

func (q queries) DeleteConfig(ctx context.Context, key string) error {
	return q.execAffected(ctx, `DELETE FROM configs WHERE key = $1`, key)
}
