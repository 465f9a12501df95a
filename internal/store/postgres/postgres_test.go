package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var sectionRowColumns = []string{
	"id", "uid", "structure_id", "name", "handle", "type",
	"enable_versioning", "propagate_entries", "max_levels", "created_at", "updated_at",
}

var entryTypeRowColumns = []string{
	"id", "uid", "section_id", "field_layout_id", "name", "handle",
	"has_title_field", "title_label", "title_format", "sort_order", "created_at", "updated_at",
}

func TestScanHelpers(t *testing.T) {
	if nullString("").Valid {
		t.Error("nullString(\"\") should be invalid")
	}
	if ns := nullString("hello"); !ns.Valid || ns.String != "hello" {
		t.Errorf("nullString(\"hello\") = %v", ns)
	}

	if nullID(0).Valid {
		t.Error("nullID(0) should be invalid")
	}
	if n := nullID(7); !n.Valid || n.Int64 != 7 {
		t.Errorf("nullID(7) = %v", n)
	}

	if jsonbBytes(nil) != nil {
		t.Error("jsonbBytes(nil) should be nil")
	}
	input := json.RawMessage(`{"key":"value"}`)
	if string(jsonbBytes(input)) != `{"key":"value"}` {
		t.Errorf("jsonbBytes = %s", jsonbBytes(input))
	}
}

func TestCreateSite(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}

	site := &model.Site{UID: "site-a", Name: "Default", Handle: "default", Primary: true}
	mock.ExpectQuery("INSERT INTO sites").
		WithArgs("site-a", "Default", "default", true, nil, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	if err := q.CreateSite(context.Background(), site); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if site.ID != 3 {
		t.Fatalf("site.ID = %d, want 3", site.ID)
	}
}

func TestGetSiteByUID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	mock.ExpectQuery("SELECT .+ FROM sites WHERE uid = \\$1").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	if _, err := q.GetSiteByUID(context.Background(), "missing"); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListSites(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	mock.ExpectQuery("SELECT .+ FROM sites ORDER BY sort_order, id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "uid", "name", "handle", "is_primary", "base_url", "sort_order"}).
			AddRow(1, "a", "A", "a", true, "https://a.test", 1).
			AddRow(2, "b", "B", "b", false, nil, 2))

	sites, err := q.ListSites(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("expected 2 sites, got %d", len(sites))
	}
	if sites[0].BaseURL != "https://a.test" || sites[1].BaseURL != "" {
		t.Fatalf("unexpected base urls: %q, %q", sites[0].BaseURL, sites[1].BaseURL)
	}
}

func TestCreateSection(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	now := time.Now().UTC()

	sec := &model.Section{
		UID: "sec-1", Name: "News", Handle: "news", Type: model.SectionTypeChannel,
		EnableVersioning: true, PropagateEntries: true,
	}
	mock.ExpectQuery("INSERT INTO sections").
		WithArgs("sec-1", nil, "News", "news", "channel", true, true, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(10, now, now))

	if err := q.CreateSection(context.Background(), sec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sec.ID != 10 || sec.CreatedAt.IsZero() {
		t.Fatalf("got id=%d created_at=%v", sec.ID, sec.CreatedAt)
	}
}

func TestGetSectionByUID(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM sections WHERE uid = \\$1").WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows(sectionRowColumns).
			AddRow(10, "sec-1", 4, "Pages", "pages", "structure", false, true, 3, now, now))

	sec, err := q.GetSectionByUID(context.Background(), "sec-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sec.Type != model.SectionTypeStructure || sec.StructureID != 4 || sec.MaxLevels != 3 {
		t.Fatalf("unexpected section: %+v", sec)
	}
}

func TestUpdateSection_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	mock.ExpectQuery("UPDATE sections SET").WillReturnError(sql.ErrNoRows)

	err := q.UpdateSection(context.Background(), &model.Section{ID: 99, Type: model.SectionTypeChannel})
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestDeleteSection_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	mock.ExpectExec("DELETE FROM sections WHERE id = \\$1").WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := q.DeleteSection(context.Background(), 99); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListSiteSettings(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	mock.ExpectQuery("SELECT .+ FROM sections_sites").WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "section_id", "site_id", "enabled_by_default", "has_urls", "uri_format", "template"}).
			AddRow(1, 10, 1, true, true, "news/{slug}", "news/_entry").
			AddRow(2, 10, 2, false, false, nil, nil))

	settings, err := q.ListSiteSettings(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(settings) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(settings))
	}
	if settings[0].URIFormat != "news/{slug}" || settings[1].URIFormat != "" {
		t.Fatalf("unexpected uri formats: %q, %q", settings[0].URIFormat, settings[1].URIFormat)
	}
}

func TestListEntryTypes(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM entry_types\\s+WHERE section_id = \\$1 ORDER BY sort_order, id").WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows(entryTypeRowColumns).
			AddRow(5, "et-1", 10, 7, "Default", "default", true, "Title", nil, 1, now, now))

	types, err := q.ListEntryTypes(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(types) != 1 || types[0].FieldLayoutID != 7 || types[0].TitleLabel != "Title" {
		t.Fatalf("unexpected entry types: %+v", types)
	}
}

func TestMaxEntryTypeSortOrder(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(sort_order\\), 0\\) FROM entry_types").WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(4))

	n, err := q.MaxEntryTypeSortOrder(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("got %d, want 4", n)
	}
}

func TestListEntries(t *testing.T) {
	now := time.Now().UTC()
	cols := []string{"id", "uid", "section_id", "type_id", "created_at", "updated_at"}

	for _, tc := range []struct {
		name   string
		filter model.EntryFilter
		query  string
		args   []any
	}{
		{
			name:  "no filter",
			query: "SELECT .+ FROM entries e ORDER BY e.id",
		},
		{
			name:   "section and type",
			filter: model.EntryFilter{SectionID: 1, TypeID: 2},
			query:  "WHERE e.section_id = \\$1 AND e.type_id = \\$2 ORDER BY e.id",
			args:   []any{int64(1), int64(2)},
		},
		{
			name:   "site enabled only",
			filter: model.EntryFilter{SiteID: 3},
			query:  "es.site_id = \\$1 AND es.enabled\\)",
			args:   []any{int64(3)},
		},
		{
			name:   "site include disabled",
			filter: model.EntryFilter{SiteID: 3, IncludeDisabled: true},
			query:  "es.site_id = \\$1\\) ORDER BY",
			args:   []any{int64(3)},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			q := queries{db: db}
			exp := mock.ExpectQuery(tc.query)
			if len(tc.args) > 0 {
				args := make([]driver.Value, len(tc.args))
				for i, a := range tc.args {
					args[i] = a
				}
				exp = exp.WithArgs(args...)
			}
			exp.WillReturnRows(sqlmock.NewRows(cols).AddRow(1, "e-1", 1, 2, now, now))

			entries, err := q.ListEntries(context.Background(), tc.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("expected 1 entry, got %d", len(entries))
			}
		})
	}
}

func TestUpsertEntrySite(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	mock.ExpectExec("INSERT INTO entries_sites .+ ON CONFLICT \\(entry_id, site_id\\) DO UPDATE").
		WithArgs(int64(1), int64(2), "Home", "home", "__home__", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := q.UpsertEntrySite(context.Background(), &model.EntrySite{
		EntryID: 1, SiteID: 2, Title: "Home", Slug: "home", URI: "__home__", Enabled: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetFieldLayout(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	mock.ExpectQuery("SELECT id, uid, type FROM field_layouts WHERE id = \\$1").WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uid", "type"}).AddRow(7, "fl-1", "entry"))
	mock.ExpectQuery("FROM field_layout_fields lf").WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"field_id", "uid", "tab", "tab_order", "required", "sort_order"}).
			AddRow(3, "f-body", "Content", 1, true, 1))

	layout, err := q.GetFieldLayout(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(layout.Fields) != 1 || layout.Fields[0].FieldUID != "f-body" || !layout.Fields[0].Required {
		t.Fatalf("unexpected layout: %+v", layout)
	}
}

func TestUpdateFieldLayoutReplacesFields(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	mock.ExpectExec("UPDATE field_layouts SET type = \\$2 WHERE id = \\$1").WithArgs(int64(7), "entry").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM field_layout_fields WHERE layout_id = \\$1").WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO field_layout_fields").WithArgs(int64(7), int64(3), "Content", 1, false, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := q.UpdateFieldLayout(context.Background(), &model.FieldLayout{
		ID: 7, Type: "entry",
		Fields: []*model.LayoutField{{FieldID: 3, Tab: "Content", TabOrder: 1, SortOrder: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQuerySetConfig(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	now := time.Now().UTC()
	config := &model.Config{Key: "sections:sec-1", Value: json.RawMessage(`{"name":"News"}`)}
	mock.ExpectQuery("INSERT INTO configs").
		WithArgs("sections:sec-1", []byte(`{"name":"News"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	if err := q.SetConfig(context.Background(), config); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
}

func TestQueryListConfigs(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM configs WHERE key LIKE").WithArgs("sections").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "created_at", "updated_at"}).
			AddRow("sections:a", []byte(`{}`), now, now).
			AddRow("sections:b", []byte(`{}`), now, now))

	configs, err := q.ListConfigs(context.Background(), "sections")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(configs))
	}
}

func TestQueryDeleteConfig_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	q := queries{db: db}
	mock.ExpectExec("DELETE FROM configs WHERE key = \\$1").WithArgs("nonexistent").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := q.DeleteConfig(context.Background(), "nonexistent"); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestRunInTransactionCommits(t *testing.T) {
	db, mock := newMockDB(t)
	s := newWithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO structures").WithArgs("st-1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.RunInTransaction(context.Background(), func(inner store.Store) error {
			return inner.CreateStructure(context.Background(), &model.Structure{UID: "st-1", MaxLevels: 2})
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunInTransactionRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	s := newWithDB(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRunInTransactionRollsBackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)
	s := newWithDB(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	defer func() {
		if p := recover(); p != "flush exploded" {
			t.Fatalf("recovered %v, want the original panic", p)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	}()
	_ = s.RunInTransaction(context.Background(), func(store.Store) error {
		panic("flush exploded")
	})
}
