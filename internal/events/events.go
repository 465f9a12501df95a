// Package events carries notifications about applied project config.
//
// Two mechanisms live here. Publisher sends JSON payloads to an external
// bus (NATS) after a reconcile has committed. Registry is the in-process
// observer list that services fire synchronously around saves and
// deletes; before-hooks may veto an operation.
package events

import (
	"context"

	"github.com/alfredjeanlab/cms/internal/model"
)

// Event topic constants
const (
	TopicSectionSaved     = "cms.section.saved"
	TopicSectionDeleted   = "cms.section.deleted"
	TopicEntryTypeSaved   = "cms.entrytype.saved"
	TopicEntryTypeDeleted = "cms.entrytype.deleted"
	TopicSiteSaved        = "cms.site.saved"
	TopicSiteDeleted      = "cms.site.deleted"
	TopicFieldSaved       = "cms.field.saved"
	TopicFieldDeleted     = "cms.field.deleted"

	// TopicAll matches every topic above.
	TopicAll = "cms.>"
)

// Event types

type SectionSaved struct {
	Section *model.Section `json:"section"`
	IsNew   bool           `json:"is_new"`
}

type SectionDeleted struct {
	SectionID  int64  `json:"section_id"`
	SectionUID string `json:"section_uid"`
}

type EntryTypeSaved struct {
	EntryType *model.EntryType `json:"entry_type"`
	IsNew     bool             `json:"is_new"`
}

type EntryTypeDeleted struct {
	EntryTypeID  int64  `json:"entry_type_id"`
	EntryTypeUID string `json:"entry_type_uid"`
	SectionID    int64  `json:"section_id"`
}

type SiteSaved struct {
	Site  *model.Site `json:"site"`
	IsNew bool        `json:"is_new"`
}

type SiteDeleted struct {
	SiteID  int64  `json:"site_id"`
	SiteUID string `json:"site_uid"`
}

type FieldSaved struct {
	Field *model.Field `json:"field"`
	IsNew bool         `json:"is_new"`
}

type FieldDeleted struct {
	FieldID  int64  `json:"field_id"`
	FieldUID string `json:"field_uid"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
