package sections

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/cms/internal/model"
)

func TestSingle_HasExactlyOneEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	en := f.site(t, "en")
	about := f.section(t, "About", "about", model.SectionTypeSingle, false, en)

	types := f.entryTypes(t, about.ID)
	require.Len(t, types, 1)
	assert.False(t, types[0].HasTitleField)
	assert.Equal(t, SingleTitleFormat, types[0].TitleFormat)

	entries := f.entries(t, about.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, types[0].ID, entries[0].TypeID)

	rows, err := f.store.ListEntrySites(ctx, entries[0].ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "About", rows[0].Title)
	assert.Equal(t, "about", rows[0].Slug)
	assert.Equal(t, "about-en", rows[0].URI)
	assert.True(t, rows[0].Enabled)

	// Saving again does not add a second entry.
	require.NoError(t, f.svc.SaveSection(ctx, about, true))
	assert.Len(t, f.entries(t, about.ID), 1)
}

func TestSingle_EntryTypeChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	en := f.site(t, "en")
	about := f.section(t, "About", "about", model.SectionTypeSingle, false, en)
	first := f.entryTypes(t, about.ID)[0]

	second := &model.EntryType{
		SectionID:   about.ID,
		Name:        "Landing",
		Handle:      "landing",
		TitleFormat: SingleTitleFormat,
	}
	require.NoError(t, f.svc.SaveEntryType(ctx, second, true))

	entries := f.entries(t, about.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, first.ID, entries[0].TypeID, "a valid type is kept")

	require.NoError(t, f.svc.DeleteEntryType(ctx, first))

	entries = f.entries(t, about.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, second.ID, entries[0].TypeID)
}

func TestSingle_FollowsSites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	en := f.site(t, "en")
	de := f.site(t, "de")
	about := f.section(t, "About", "about", model.SectionTypeSingle, false, en)

	about.SiteSettings[de.ID] = &model.SiteSettings{SiteID: de.ID, HasURLs: true, URIFormat: "ueber-uns"}
	require.NoError(t, f.svc.SaveSection(ctx, about, true))

	entries := f.entries(t, about.ID)
	require.Len(t, entries, 1)
	rows, err := f.store.ListEntrySites(ctx, entries[0].ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	bySite := map[int64]*model.EntrySite{rows[0].SiteID: rows[0], rows[1].SiteID: rows[1]}
	assert.Equal(t, "ueber-uns", bySite[de.ID].URI)

	delete(about.SiteSettings, en.ID)
	require.NoError(t, f.svc.SaveSection(ctx, about, true))

	rows, err = f.store.ListEntrySites(ctx, entries[0].ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, de.ID, rows[0].SiteID)
}

func TestRenderURI(t *testing.T) {
	section := &model.Section{Handle: "news"}
	entry := &model.Entry{ID: 7}

	assert.Equal(t, "news/hello", RenderURI("news/{slug}", section, entry, "hello"))
	assert.Equal(t, "news/7", RenderURI("/{section.handle}/{id}/", section, entry, "hello"))
	assert.Equal(t, "", RenderURI("__home__", section, entry, "hello"))
}
