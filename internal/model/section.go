package model

import "time"

// SectionType determines how entries in a section are organized.
type SectionType string

const (
	SectionTypeSingle    SectionType = "single"
	SectionTypeChannel   SectionType = "channel"
	SectionTypeStructure SectionType = "structure"
)

// String returns the string representation of the section type.
func (t SectionType) String() string {
	return string(t)
}

// IsValid checks whether the section type is a known value.
func (t SectionType) IsValid() bool {
	switch t {
	case SectionTypeSingle, SectionTypeChannel, SectionTypeStructure:
		return true
	}
	return false
}

// Section groups entries that share URL rules, entry types and ordering.
//
// UID is the durable identifier used in project config paths. ID is the
// row id assigned by the store and is zero until the section has been
// applied for the first time.
type Section struct {
	ID               int64       `json:"id"`
	UID              string      `json:"uid"`
	StructureID      int64       `json:"structure_id,omitempty"`
	Name             string      `json:"name"`
	Handle           string      `json:"handle"`
	Type             SectionType `json:"type"`
	EnableVersioning bool        `json:"enable_versioning"`
	PropagateEntries bool        `json:"propagate_entries"`
	MaxLevels        int         `json:"max_levels,omitempty"` // structure sections only; 0 = unlimited
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`

	// SiteSettings is keyed by site ID. Populated by the sections service,
	// not stored in the sections table.
	SiteSettings map[int64]*SiteSettings `json:"site_settings,omitempty"`

	// Errors holds the field errors of the last failed save.
	Errors []FieldError `json:"errors,omitempty"`
}

// IsNew reports whether the section has not been persisted yet.
func (s *Section) IsNew() bool {
	return s.ID == 0
}

// SiteSettings holds the per-site URL configuration of a section.
type SiteSettings struct {
	ID               int64  `json:"id"`
	SectionID        int64  `json:"section_id"`
	SiteID           int64  `json:"site_id"`
	EnabledByDefault bool   `json:"enabled_by_default"`
	HasURLs          bool   `json:"has_urls"`
	URIFormat        string `json:"uri_format,omitempty"`
	Template         string `json:"template,omitempty"`
}
