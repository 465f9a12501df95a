package model

import "time"

// EntryType describes the fields and title behaviour of entries in a section.
type EntryType struct {
	ID            int64     `json:"id"`
	UID           string    `json:"uid"`
	SectionID     int64     `json:"section_id"`
	FieldLayoutID int64     `json:"field_layout_id,omitempty"`
	Name          string    `json:"name"`
	Handle        string    `json:"handle"`
	HasTitleField bool      `json:"has_title_field"`
	TitleLabel    string    `json:"title_label,omitempty"`
	TitleFormat   string    `json:"title_format,omitempty"`
	SortOrder     int       `json:"sort_order"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// FieldLayout is the layout to save with the entry type. When nil on
	// save, the existing layout config (if any) is carried over.
	FieldLayout *FieldLayout `json:"field_layout,omitempty"`
}

// IsNew reports whether the entry type has not been persisted yet.
func (e *EntryType) IsNew() bool {
	return e.ID == 0
}
