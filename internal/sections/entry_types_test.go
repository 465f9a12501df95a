package sections

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/cms/internal/events"
	"github.com/alfredjeanlab/cms/internal/model"
)

func TestSaveEntryType_WithFieldLayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	en := f.site(t, "en")
	news := f.section(t, "News", "news", model.SectionTypeChannel, true, en)

	body := &model.Field{Name: "Body", Handle: "body", Type: "richText"}
	require.NoError(t, f.fields.SaveField(ctx, body, true))

	et := &model.EntryType{
		SectionID:     news.ID,
		Name:          "Article",
		Handle:        "article",
		HasTitleField: true,
		TitleLabel:    "Headline",
		FieldLayout: &model.FieldLayout{Fields: []*model.LayoutField{
			{FieldUID: body.UID, Tab: "Content", TabOrder: 1, Required: true, SortOrder: 1},
		}},
	}
	require.NoError(t, f.svc.SaveEntryType(ctx, et, true))
	require.NotZero(t, et.ID)
	require.NotZero(t, et.FieldLayoutID)
	assert.Equal(t, 2, et.SortOrder)

	layout, err := f.store.GetFieldLayout(ctx, et.FieldLayoutID)
	require.NoError(t, err)
	require.Len(t, layout.Fields, 1)
	assert.Equal(t, body.ID, layout.Fields[0].FieldID)
	assert.Equal(t, "Content", layout.Fields[0].Tab)
	assert.True(t, layout.Fields[0].Required)

	types, err := f.svc.EntryTypesBySectionID(ctx, news.ID)
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "article", types[1].Handle)

	// Saving without a layout keeps the existing one.
	et.FieldLayout = nil
	et.Name = "Story"
	require.NoError(t, f.svc.SaveEntryType(ctx, et, true))
	assert.Equal(t, layout.ID, et.FieldLayoutID)
	layout, err = f.store.GetFieldLayout(ctx, et.FieldLayoutID)
	require.NoError(t, err)
	assert.Len(t, layout.Fields, 1)
}

func TestSaveEntryType_UnknownFieldIsInvariantViolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	en := f.site(t, "en")
	news := f.section(t, "News", "news", model.SectionTypeChannel, true, en)

	et := &model.EntryType{
		SectionID:     news.ID,
		Name:          "Article",
		Handle:        "article",
		HasTitleField: true,
		TitleLabel:    "Title",
		FieldLayout: &model.FieldLayout{Fields: []*model.LayoutField{
			{FieldUID: "no-such-field", Tab: "Content", TabOrder: 1, SortOrder: 1},
		}},
	}
	err := f.svc.SaveEntryType(ctx, et, true)
	var inv *model.InvariantError
	require.ErrorAs(t, err, &inv)

	_, err = f.store.GetEntryTypeByUID(ctx, et.UID)
	assert.Error(t, err)
	assert.Nil(t, f.config.Get("sections."+news.UID+".entryTypes."+et.UID))
	assert.Len(t, f.entryTypes(t, news.ID), 1)
}

func TestSaveEntryType_DuplicateHandle(t *testing.T) {
	f := newFixture(t)
	en := f.site(t, "en")
	news := f.section(t, "News", "news", model.SectionTypeChannel, true, en)

	et := &model.EntryType{SectionID: news.ID, Name: "Another", Handle: "news", HasTitleField: true, TitleLabel: "Title"}
	var ve *model.ValidationError
	require.ErrorAs(t, f.svc.SaveEntryType(context.Background(), et, true), &ve)
	assert.Equal(t, "handle", ve.Errors[0].Field)
}

func TestSaveEntryType_ChangeResavesItsEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	en := f.site(t, "en")
	blog := f.section(t, "Blog", "blog", model.SectionTypeChannel, false, en)

	et, err := f.svc.EntryTypeByID(ctx, f.entryTypes(t, blog.ID)[0].ID)
	require.NoError(t, err)
	et.TitleLabel = "Headline"
	require.NoError(t, f.svc.SaveEntryType(ctx, et, true))

	jobs := f.queue.Pending()
	require.Len(t, jobs, 1)
	assert.Equal(t, et.ID, jobs[0].Criteria.TypeID)
	assert.Equal(t, blog.ID, jobs[0].Criteria.SectionID)
	assert.Contains(t, f.pub.Topics(), events.TopicEntryTypeSaved)
}

func TestReorderEntryTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	en := f.site(t, "en")
	news := f.section(t, "News", "news", model.SectionTypeChannel, true, en)
	first := f.entryTypes(t, news.ID)[0]

	second := &model.EntryType{SectionID: news.ID, Name: "Link", Handle: "link", HasTitleField: true, TitleLabel: "Title"}
	require.NoError(t, f.svc.SaveEntryType(ctx, second, true))

	require.NoError(t, f.svc.ReorderEntryTypes(ctx, []int64{second.ID, first.ID}))

	types := f.entryTypes(t, news.ID)
	require.Len(t, types, 2)
	assert.Equal(t, second.ID, types[0].ID)
	assert.Equal(t, 1, types[0].SortOrder)
	assert.Equal(t, first.ID, types[1].ID)
	assert.Equal(t, 2, types[1].SortOrder)
}

func TestDeleteEntryType_RemovesItsEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	en := f.site(t, "en")
	news := f.section(t, "News", "news", model.SectionTypeChannel, true, en)
	first := f.entryTypes(t, news.ID)[0]
	second := &model.EntryType{SectionID: news.ID, Name: "Link", Handle: "link", HasTitleField: true, TitleLabel: "Title"}
	require.NoError(t, f.svc.SaveEntryType(ctx, second, true))

	kept := f.entry(t, news, first.ID, "kept", true)
	f.entry(t, news, second.ID, "gone", false)

	require.NoError(t, f.svc.DeleteEntryTypeByID(ctx, second.ID))

	entries := f.entries(t, news.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, kept.ID, entries[0].ID)
	_, err := f.store.GetFieldLayout(ctx, second.FieldLayoutID)
	assert.Error(t, err)
	_, err = f.svc.EntryTypeByID(ctx, second.ID)
	assert.ErrorIs(t, err, ErrEntryTypeNotFound)
	assert.Contains(t, f.pub.Topics(), events.TopicEntryTypeDeleted)
}

func TestDeleteEntryType_BeforeHookVeto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	en := f.site(t, "en")
	news := f.section(t, "News", "news", model.SectionTypeChannel, true, en)
	et := f.entryTypes(t, news.ID)[0]

	f.notifier.Registry.On(events.BeforeDeleteEntryType, func(context.Context, any) error {
		return assert.AnError
	})
	require.ErrorIs(t, f.svc.DeleteEntryType(ctx, et), assert.AnError)
	assert.Len(t, f.entryTypes(t, news.ID), 1)
}
