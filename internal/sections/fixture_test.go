package sections

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/cms/internal/dispatch"
	"github.com/alfredjeanlab/cms/internal/events"
	"github.com/alfredjeanlab/cms/internal/fields"
	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/projectconfig"
	"github.com/alfredjeanlab/cms/internal/queue"
	"github.com/alfredjeanlab/cms/internal/sites"
	"github.com/alfredjeanlab/cms/internal/store/memory"
)

// fixture wires the reconcilers the way the app does, over a memory store.
type fixture struct {
	store    *memory.Store
	config   *projectconfig.Manager
	sites    *sites.Service
	fields   *fields.Service
	svc      *Service
	queue    *queue.MemoryQueue
	notifier *events.Notifier
	pub      *events.RecordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	router := dispatch.New()
	mgr := projectconfig.New(router, projectconfig.WithRecords(st))
	pub := &events.RecordingPublisher{}
	notifier := events.NewNotifier(nil, pub, nil)
	q := queue.NewMemoryQueue()

	siteSvc := sites.New(st, mgr, notifier, nil)
	fieldSvc := fields.New(st, mgr, notifier, nil)
	svc := New(st, mgr, siteSvc, fieldSvc, WithQueue(q), WithNotifier(notifier))

	require.NoError(t, siteSvc.Register(router))
	require.NoError(t, fieldSvc.Register(router))
	require.NoError(t, svc.Register(router))

	return &fixture{
		store:    st,
		config:   mgr,
		sites:    siteSvc,
		fields:   fieldSvc,
		svc:      svc,
		queue:    q,
		notifier: notifier,
		pub:      pub,
	}
}

func (f *fixture) site(t *testing.T, handle string) *model.Site {
	t.Helper()
	site := &model.Site{Name: handle, Handle: handle}
	require.NoError(t, f.sites.SaveSite(context.Background(), site, true))
	return site
}

// section saves a new section enabled on the given sites with URLs
// "<handle>/{slug}".
func (f *fixture) section(t *testing.T, name, handle string, typ model.SectionType, propagate bool, siteList ...*model.Site) *model.Section {
	t.Helper()
	section := &model.Section{
		Name:             name,
		Handle:           handle,
		Type:             typ,
		PropagateEntries: propagate,
		SiteSettings:     make(map[int64]*model.SiteSettings),
	}
	for _, site := range siteList {
		format := handle + "/{slug}"
		if typ == model.SectionTypeSingle {
			format = handle + "-" + site.Handle
		}
		section.SiteSettings[site.ID] = &model.SiteSettings{
			SiteID:           site.ID,
			EnabledByDefault: true,
			HasURLs:          true,
			URIFormat:        format,
			Template:         handle + "/_entry",
		}
	}
	require.NoError(t, f.svc.SaveSection(context.Background(), section, true))
	return section
}

// entry creates an entry directly in the store with a row on each site.
func (f *fixture) entry(t *testing.T, section *model.Section, typeID int64, slug string, enabled bool) *model.Entry {
	t.Helper()
	ctx := context.Background()
	e := &model.Entry{UID: slug, SectionID: section.ID, TypeID: typeID}
	require.NoError(t, f.store.CreateEntry(ctx, e))
	for siteID := range section.SiteSettings {
		require.NoError(t, f.store.UpsertEntrySite(ctx, &model.EntrySite{
			EntryID: e.ID,
			SiteID:  siteID,
			Title:   slug,
			Slug:    slug,
			URI:     section.Handle + "/" + slug,
			Enabled: enabled,
		}))
	}
	return e
}

func (f *fixture) entries(t *testing.T, sectionID int64) []*model.Entry {
	t.Helper()
	entries, err := f.store.ListEntries(context.Background(), model.EntryFilter{SectionID: sectionID})
	require.NoError(t, err)
	return entries
}

func (f *fixture) entryTypes(t *testing.T, sectionID int64) []*model.EntryType {
	t.Helper()
	types, err := f.store.ListEntryTypes(context.Background(), sectionID)
	require.NoError(t, err)
	return types
}

func (f *fixture) siteSettings(t *testing.T, sectionID int64) []*model.SiteSettings {
	t.Helper()
	rows, err := f.store.ListSiteSettings(context.Background(), sectionID)
	require.NoError(t, err)
	return rows
}
