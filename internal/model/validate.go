package model

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Err returns e when it holds errors, nil otherwise.
func (e *ValidationError) Err() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// InvariantError reports a broken internal invariant, such as a section
// without site settings. It is a programming or data error, not bad input,
// and always aborts the surrounding transaction.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string {
	return "invariant violation: " + e.Message
}

// Invariantf builds an *InvariantError.
func Invariantf(format string, args ...any) error {
	return &InvariantError{Message: fmt.Sprintf(format, args...)}
}

var handlePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// reservedHandles cannot be used as handles because templates and the
// element query API already use them.
var reservedHandles = map[string]bool{
	"attributes":  true,
	"author":      true,
	"content":     true,
	"dateCreated": true,
	"dateUpdated": true,
	"id":          true,
	"section":     true,
	"site":        true,
	"title":       true,
	"type":        true,
	"uid":         true,
	"uri":         true,
}

func validateName(ve *ValidationError, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		ve.Add("name", "is required")
	} else if len([]rune(name)) > 255 {
		ve.Add("name", "must be 255 characters or fewer")
	}
}

func validateHandle(ve *ValidationError, handle string) {
	switch {
	case handle == "":
		ve.Add("handle", "is required")
	case len(handle) > 64:
		ve.Add("handle", "must be 64 characters or fewer")
	case !handlePattern.MatchString(handle):
		ve.Add("handle", fmt.Sprintf("%q is not a valid handle", handle))
	case reservedHandles[handle]:
		ve.Add("handle", fmt.Sprintf("%q is a reserved word", handle))
	}
}

// ValidateSection checks a Section for constraint violations.
// Uniqueness rules that need the store are checked by the sections service.
func ValidateSection(s *Section) error {
	var ve ValidationError

	validateName(&ve, s.Name)
	validateHandle(&ve, s.Handle)

	if !s.Type.IsValid() {
		ve.Add("type", fmt.Sprintf("invalid value %q", s.Type))
	}
	if s.MaxLevels < 0 {
		ve.Add("max_levels", fmt.Sprintf("must not be negative, got %d", s.MaxLevels))
	}

	if len(s.SiteSettings) == 0 {
		ve.Add("site_settings", "at least one site must be enabled")
	}
	for siteID, ss := range s.SiteSettings {
		if ss == nil {
			ve.Add("site_settings", fmt.Sprintf("site %d has no settings", siteID))
			continue
		}
		if ss.HasURLs && strings.TrimSpace(ss.URIFormat) == "" {
			ve.Add(fmt.Sprintf("site_settings[%d].uri_format", siteID), "is required when entries have URLs")
		}
	}

	return ve.Err()
}

// ValidateEntryType checks an EntryType for constraint violations.
func ValidateEntryType(e *EntryType) error {
	var ve ValidationError

	validateName(&ve, e.Name)
	validateHandle(&ve, e.Handle)

	if e.SectionID == 0 {
		ve.Add("section_id", "is required")
	}
	if e.HasTitleField && strings.TrimSpace(e.TitleLabel) == "" {
		ve.Add("title_label", "is required when the entry type has a title field")
	}
	if !e.HasTitleField && strings.TrimSpace(e.TitleFormat) == "" {
		ve.Add("title_format", "is required when the entry type has no title field")
	}

	return ve.Err()
}

// ValidateSite checks a Site for constraint violations.
func ValidateSite(s *Site) error {
	var ve ValidationError

	validateName(&ve, s.Name)
	validateHandle(&ve, s.Handle)

	return ve.Err()
}

// ValidateField checks a Field for constraint violations.
func ValidateField(f *Field) error {
	var ve ValidationError

	validateName(&ve, f.Name)
	validateHandle(&ve, f.Handle)
	if strings.TrimSpace(f.Type) == "" {
		ve.Add("type", "is required")
	}

	return ve.Err()
}
