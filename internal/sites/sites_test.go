package sites

import (
	"context"
	"errors"
	"testing"

	"github.com/alfredjeanlab/cms/internal/dispatch"
	"github.com/alfredjeanlab/cms/internal/events"
	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/projectconfig"
	"github.com/alfredjeanlab/cms/internal/store/memory"
)

type fixture struct {
	svc    *Service
	store  *memory.Store
	config *projectconfig.Manager
	pub    *events.RecordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	router := dispatch.New()
	mgr := projectconfig.New(router, projectconfig.WithRecords(st))
	pub := &events.RecordingPublisher{}
	svc := New(st, mgr, events.NewNotifier(nil, pub, nil), nil)
	if err := svc.Register(router); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return &fixture{svc: svc, store: st, config: mgr, pub: pub}
}

func (f *fixture) save(t *testing.T, name, handle string, primary bool) *model.Site {
	t.Helper()
	site := &model.Site{Name: name, Handle: handle, Primary: primary}
	if err := f.svc.SaveSite(context.Background(), site, true); err != nil {
		t.Fatalf("SaveSite(%s): %v", handle, err)
	}
	return site
}

func TestSaveSite_FirstSiteIsPrimary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	site := f.save(t, "English", "en", false)
	if site.ID == 0 || site.UID == "" {
		t.Fatalf("site not persisted: %+v", site)
	}
	live, err := f.store.GetSite(ctx, site.ID)
	if err != nil {
		t.Fatalf("GetSite: %v", err)
	}
	if !live.Primary || live.Handle != "en" || live.SortOrder != 1 {
		t.Errorf("live site = %+v", live)
	}
	if got := f.config.Get("sites." + site.UID + ".handle"); got != "en" {
		t.Errorf("config handle = %v", got)
	}
	if topics := f.pub.Topics(); len(topics) != 1 || topics[0] != events.TopicSiteSaved {
		t.Errorf("published %v", topics)
	}
}

func TestSaveSite_PromotingDemotesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	en := f.save(t, "English", "en", false)
	de := f.save(t, "German", "de", false)
	if de.SortOrder != 2 {
		t.Errorf("second site sort order = %d, want 2", de.SortOrder)
	}

	de.Primary = true
	if err := f.svc.SaveSite(ctx, de, true); err != nil {
		t.Fatalf("SaveSite: %v", err)
	}

	primary, err := f.svc.PrimarySiteID(ctx)
	if err != nil {
		t.Fatalf("PrimarySiteID: %v", err)
	}
	if primary != de.ID {
		t.Errorf("primary = %d, want %d", primary, de.ID)
	}
	liveEN, _ := f.store.GetSite(ctx, en.ID)
	if liveEN.Primary {
		t.Error("previous primary was not demoted")
	}
}

func TestSaveSite_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	en := f.save(t, "English", "en", false)

	dup := &model.Site{Name: "Other", Handle: "en"}
	err := f.svc.SaveSite(ctx, dup, true)
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("SaveSite duplicate handle = %v, want ValidationError", err)
	}
	if dup.ID != 0 {
		t.Error("invalid site was persisted")
	}

	en.Primary = false
	if err := f.svc.SaveSite(ctx, en, true); !errors.As(err, &ve) {
		t.Errorf("demoting primary = %v, want ValidationError", err)
	}
}

func TestDeleteSite_RemovesDependentRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.save(t, "English", "en", false)
	de := f.save(t, "German", "de", false)

	ss := &model.SiteSettings{SectionID: 1, SiteID: de.ID}
	if err := f.store.CreateSiteSettings(ctx, ss); err != nil {
		t.Fatalf("CreateSiteSettings: %v", err)
	}
	entry := &model.Entry{UID: "e1", SectionID: 1}
	if err := f.store.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if err := f.store.UpsertEntrySite(ctx, &model.EntrySite{EntryID: entry.ID, SiteID: de.ID, Title: "Hallo"}); err != nil {
		t.Fatalf("UpsertEntrySite: %v", err)
	}

	if err := f.svc.DeleteSiteByID(ctx, de.ID); err != nil {
		t.Fatalf("DeleteSiteByID: %v", err)
	}

	if _, err := f.svc.SiteByID(ctx, de.ID); !errors.Is(err, ErrSiteNotFound) {
		t.Errorf("SiteByID after delete = %v", err)
	}
	if rows, _ := f.store.ListSiteSettings(ctx, 1); len(rows) != 0 {
		t.Errorf("site settings left behind: %d", len(rows))
	}
	if rows, _ := f.store.ListEntrySites(ctx, entry.ID); len(rows) != 0 {
		t.Errorf("entry site rows left behind: %d", len(rows))
	}
}

func TestDeleteSite_PrimaryRefused(t *testing.T) {
	f := newFixture(t)
	en := f.save(t, "English", "en", false)
	if err := f.svc.DeleteSiteByID(context.Background(), en.ID); !errors.Is(err, ErrPrimarySite) {
		t.Errorf("DeleteSiteByID(primary) = %v, want ErrPrimarySite", err)
	}
}

func TestHandleDeletedSite_MissingIsNoop(t *testing.T) {
	f := newFixture(t)
	err := f.svc.HandleDeletedSite(context.Background(), dispatch.Event{Kind: dispatch.Deleted, Tokens: []string{"gone"}})
	if err != nil {
		t.Errorf("HandleDeletedSite = %v", err)
	}
}

func TestRegistryLookups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	en := f.save(t, "English", "en", false)
	de := f.save(t, "German", "de", false)

	ids, err := f.svc.AllSiteIDs(ctx)
	if err != nil || len(ids) != 2 || ids[0] != en.ID || ids[1] != de.ID {
		t.Fatalf("AllSiteIDs = %v, %v", ids, err)
	}

	byUID, _ := f.svc.IDsForUIDs(ctx, []string{de.UID, "unknown"})
	if len(byUID) != 1 || byUID[de.UID] != de.ID {
		t.Errorf("IDsForUIDs = %v", byUID)
	}
	byID, _ := f.svc.UIDsForIDs(ctx, []int64{en.ID})
	if byID[en.ID] != en.UID {
		t.Errorf("UIDsForIDs = %v", byID)
	}

	uids, _ := f.svc.SortedUIDs(ctx, map[string]any{"zzz": nil, de.UID: nil, en.UID: nil})
	if len(uids) != 3 || uids[0] != en.UID || uids[1] != de.UID || uids[2] != "zzz" {
		t.Errorf("SortedUIDs = %v", uids)
	}
}
