package model

// Field is a custom field definition that layouts can reference.
type Field struct {
	ID           int64  `json:"id"`
	UID          string `json:"uid"`
	Name         string `json:"name"`
	Handle       string `json:"handle"`
	Type         string `json:"type"`
	Instructions string `json:"instructions,omitempty"`
}

// FieldLayoutTypeEntry is the layout type used by entry types.
const FieldLayoutTypeEntry = "entry"

// FieldLayout orders fields into tabs for an owner such as an entry type.
type FieldLayout struct {
	ID     int64          `json:"id"`
	UID    string         `json:"uid"`
	Type   string         `json:"type"`
	Fields []*LayoutField `json:"fields,omitempty"`
}

// LayoutField places one field on a layout tab.
type LayoutField struct {
	FieldID   int64  `json:"field_id"`
	FieldUID  string `json:"field_uid"`
	Tab       string `json:"tab"`
	TabOrder  int    `json:"tab_order"`
	Required  bool   `json:"required"`
	SortOrder int    `json:"sort_order"`
}
