package memory

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/store"
)

func TestRunInTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()

	site := &model.Site{UID: "site-a", Name: "A", Handle: "a", Primary: true}
	if err := s.CreateSite(ctx, site); err != nil {
		t.Fatalf("CreateSite: %v", err)
	}

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateSection(ctx, &model.Section{UID: "sec-1", Name: "News", Handle: "news", Type: model.SectionTypeChannel}); err != nil {
			return err
		}
		site.Name = "Renamed"
		if err := tx.UpdateSite(ctx, site); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTransaction err = %v, want boom", err)
	}

	if _, err := s.GetSectionByUID(ctx, "sec-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("section survived rollback: err = %v", err)
	}
	got, err := s.GetSite(ctx, site.ID)
	if err != nil {
		t.Fatalf("GetSite: %v", err)
	}
	if got.Name != "A" {
		t.Errorf("site name = %q, want %q", got.Name, "A")
	}
}

func TestRunInTransactionNestedReusesTx(t *testing.T) {
	ctx := context.Background()
	s := New()

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.RunInTransaction(ctx, func(inner store.Store) error {
			return inner.CreateStructure(ctx, &model.Structure{UID: "st-1"})
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, err := s.GetStructureByUID(ctx, "st-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("nested write survived outer rollback: err = %v", err)
	}
}

func TestRunInTransactionRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := New()

	func() {
		defer func() {
			if p := recover(); p != "handler exploded" {
				t.Fatalf("recovered %v, want the original panic", p)
			}
		}()
		_ = s.RunInTransaction(ctx, func(tx store.Store) error {
			if err := tx.CreateSite(ctx, &model.Site{UID: "site-a", Name: "A", Handle: "a"}); err != nil {
				t.Fatalf("CreateSite: %v", err)
			}
			panic("handler exploded")
		})
	}()

	sites, err := s.ListSites(ctx)
	if err != nil {
		t.Fatalf("ListSites: %v", err)
	}
	if len(sites) != 0 {
		t.Errorf("sites after panic = %d, want 0", len(sites))
	}

	// The store is usable again once the panic has unwound.
	if err := s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.CreateSite(ctx, &model.Site{UID: "site-b", Name: "B", Handle: "b"})
	}); err != nil {
		t.Fatalf("RunInTransaction after panic: %v", err)
	}
}

func TestInjectFailure(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("disk full")

	s.InjectFailure("CreateSite", boom)
	if err := s.CreateSite(ctx, &model.Site{UID: "x"}); !errors.Is(err, boom) {
		t.Fatalf("CreateSite err = %v, want injected failure", err)
	}

	s.ClearFailures()
	if err := s.CreateSite(ctx, &model.Site{UID: "x"}); err != nil {
		t.Fatalf("CreateSite after clear: %v", err)
	}
}

func TestListEntriesFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	e1 := &model.Entry{SectionID: 1, TypeID: 10}
	e2 := &model.Entry{SectionID: 1, TypeID: 11}
	e3 := &model.Entry{SectionID: 2, TypeID: 20}
	for _, e := range []*model.Entry{e1, e2, e3} {
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatalf("CreateEntry: %v", err)
		}
	}
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(s.UpsertEntrySite(ctx, &model.EntrySite{EntryID: e1.ID, SiteID: 100, Enabled: true}))
	must(s.UpsertEntrySite(ctx, &model.EntrySite{EntryID: e2.ID, SiteID: 100, Enabled: false}))

	for _, tc := range []struct {
		name   string
		filter model.EntryFilter
		want   []int64
	}{
		{"section", model.EntryFilter{SectionID: 1}, []int64{e1.ID, e2.ID}},
		{"type", model.EntryFilter{TypeID: 20}, []int64{e3.ID}},
		{"site enabled only", model.EntryFilter{SiteID: 100}, []int64{e1.ID}},
		{"site include disabled", model.EntryFilter{SiteID: 100, IncludeDisabled: true}, []int64{e1.ID, e2.ID}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ListEntries(ctx, tc.filter)
			if err != nil {
				t.Fatalf("ListEntries: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d entries, want %d", len(got), len(tc.want))
			}
			for i, e := range got {
				if e.ID != tc.want[i] {
					t.Errorf("entry[%d] = %d, want %d", i, e.ID, tc.want[i])
				}
			}
		})
	}
}

func TestDeleteEntrySitesBySection(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := &model.Entry{SectionID: 1}
	b := &model.Entry{SectionID: 2}
	_ = s.CreateEntry(ctx, a)
	_ = s.CreateEntry(ctx, b)
	_ = s.UpsertEntrySite(ctx, &model.EntrySite{EntryID: a.ID, SiteID: 7})
	_ = s.UpsertEntrySite(ctx, &model.EntrySite{EntryID: a.ID, SiteID: 8})
	_ = s.UpsertEntrySite(ctx, &model.EntrySite{EntryID: b.ID, SiteID: 7})

	if err := s.DeleteEntrySitesBySection(ctx, 1, 7); err != nil {
		t.Fatalf("DeleteEntrySitesBySection: %v", err)
	}

	rows, _ := s.ListEntrySites(ctx, a.ID)
	if len(rows) != 1 || rows[0].SiteID != 8 {
		t.Errorf("entry a rows = %+v, want only site 8", rows)
	}
	rows, _ = s.ListEntrySites(ctx, b.ID)
	if len(rows) != 1 {
		t.Errorf("entry b rows = %+v, want untouched", rows)
	}
}

func TestMaxSortOrders(t *testing.T) {
	ctx := context.Background()
	s := New()

	if n, _ := s.MaxEntryTypeSortOrder(ctx, 5); n != 0 {
		t.Errorf("empty MaxEntryTypeSortOrder = %d, want 0", n)
	}
	_ = s.CreateEntryType(ctx, &model.EntryType{UID: "a", SectionID: 5, SortOrder: 3})
	_ = s.CreateEntryType(ctx, &model.EntryType{UID: "b", SectionID: 5, SortOrder: 7})
	_ = s.CreateEntryType(ctx, &model.EntryType{UID: "c", SectionID: 6, SortOrder: 9})
	if n, _ := s.MaxEntryTypeSortOrder(ctx, 5); n != 7 {
		t.Errorf("MaxEntryTypeSortOrder = %d, want 7", n)
	}

	_ = s.CreateStructureElement(ctx, &model.StructureElement{StructureID: 1, ElementID: 1, SortOrder: 4})
	if n, _ := s.MaxStructureSortOrder(ctx, 1); n != 4 {
		t.Errorf("MaxStructureSortOrder = %d, want 4", n)
	}
}

func TestConfigs(t *testing.T) {
	ctx := context.Background()
	s := New()

	_ = s.SetConfig(ctx, &model.Config{Key: "sections:a", Value: []byte(`{"name":"A"}`)})
	_ = s.SetConfig(ctx, &model.Config{Key: "sites:b", Value: []byte(`{}`)})
	_ = s.SetConfig(ctx, &model.Config{Key: "system", Value: []byte(`"live"`)})

	got, _ := s.ListConfigs(ctx, "sections")
	if len(got) != 1 || got[0].Key != "sections:a" {
		t.Errorf("ListConfigs(sections) = %+v", got)
	}
	all, _ := s.ListAllConfigs(ctx)
	if len(all) != 3 {
		t.Errorf("ListAllConfigs len = %d, want 3", len(all))
	}
	if err := s.DeleteConfig(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("DeleteConfig(missing) err = %v, want sql.ErrNoRows", err)
	}
}
