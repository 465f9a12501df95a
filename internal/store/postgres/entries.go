package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/cms/internal/model"
)

const entryColumns = `id, uid, section_id, type_id, created_at, updated_at`

func (q queries) CreateEntry(ctx context.Context, e *model.Entry) error {
	return q.db.QueryRowContext(ctx, `
		INSERT INTO entries (uid, section_id, type_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		e.UID, e.SectionID, e.TypeID,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (q queries) UpdateEntry(ctx context.Context, e *model.Entry) error {
	return q.db.QueryRowContext(ctx, `
		UPDATE entries SET section_id = $2, type_id = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		e.ID, e.SectionID, e.TypeID,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (q queries) GetEntry(ctx context.Context, id int64) (*model.Entry, error) {
	return scanEntry(q.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, id))
}

func (q queries) ListEntries(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.SectionID != 0 {
		whereClauses = append(whereClauses, "e.section_id = "+nextArg())
		args = append(args, filter.SectionID)
	}
	if filter.TypeID != 0 {
		whereClauses = append(whereClauses, "e.type_id = "+nextArg())
		args = append(args, filter.TypeID)
	}
	if filter.SiteID != 0 {
		clause := "EXISTS (SELECT 1 FROM entries_sites es WHERE es.entry_id = e.id AND es.site_id = " + nextArg()
		if !filter.IncludeDisabled {
			clause += " AND es.enabled"
		}
		whereClauses = append(whereClauses, clause+")")
		args = append(args, filter.SiteID)
	}

	query := `SELECT e.id, e.uid, e.section_id, e.type_id, e.created_at, e.updated_at FROM entries e`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY e.id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanEntry)
}

// DeleteEntry relies on ON DELETE CASCADE for entries_sites; structure
// elements reference entries loosely and are removed here.
func (q queries) DeleteEntry(ctx context.Context, id int64) error {
	if err := q.exec(ctx, `DELETE FROM structure_elements WHERE element_id = $1`, id); err != nil {
		return err
	}
	return q.execAffected(ctx, `DELETE FROM entries WHERE id = $1`, id)
}

func (q queries) UpsertEntrySite(ctx context.Context, es *model.EntrySite) error {
	return q.exec(ctx, `
		INSERT INTO entries_sites (entry_id, site_id, title, slug, uri, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (entry_id, site_id) DO UPDATE SET
			title = $3, slug = $4, uri = $5, enabled = $6`,
		es.EntryID, es.SiteID, es.Title, es.Slug, nullString(es.URI), es.Enabled,
	)
}

func (q queries) ListEntrySites(ctx context.Context, entryID int64) ([]*model.EntrySite, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT entry_id, site_id, title, slug, uri, enabled
		FROM entries_sites WHERE entry_id = $1 ORDER BY site_id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanEntrySite)
}

func (q queries) DeleteEntrySite(ctx context.Context, entryID, siteID int64) error {
	return q.execAffected(ctx, `DELETE FROM entries_sites WHERE entry_id = $1 AND site_id = $2`, entryID, siteID)
}

func (q queries) DeleteEntrySitesBySection(ctx context.Context, sectionID, siteID int64) error {
	return q.exec(ctx, `
		DELETE FROM entries_sites
		WHERE site_id = $2 AND entry_id IN (SELECT id FROM entries WHERE section_id = $1)`,
		sectionID, siteID,
	)
}

func (q queries) DeleteEntrySitesBySite(ctx context.Context, siteID int64) error {
	return q.exec(ctx, `DELETE FROM entries_sites WHERE site_id = $1`, siteID)
}
