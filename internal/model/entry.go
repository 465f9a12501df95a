package model

import "time"

// Entry is a content item belonging to a section.
type Entry struct {
	ID        int64     `json:"id"`
	UID       string    `json:"uid"`
	SectionID int64     `json:"section_id"`
	TypeID    int64     `json:"type_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntrySite is the per-site content row of an entry.
type EntrySite struct {
	EntryID int64  `json:"entry_id"`
	SiteID  int64  `json:"site_id"`
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	URI     string `json:"uri,omitempty"`
	Enabled bool   `json:"enabled"`
}

// EntryFilter holds criteria for querying entries.
// Zero values mean "any".
type EntryFilter struct {
	SectionID int64 `json:"section_id,omitempty"`
	TypeID    int64 `json:"type_id,omitempty"`
	// SiteID restricts results to entries that have a row on the site.
	SiteID int64 `json:"site_id,omitempty"`
	// IncludeDisabled also returns entries whose site row is disabled.
	// Only meaningful together with SiteID.
	IncludeDisabled bool `json:"include_disabled,omitempty"`
}
