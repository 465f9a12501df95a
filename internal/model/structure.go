package model

// Structure gives the entries of a section a parent/child ordering.
type Structure struct {
	ID        int64  `json:"id"`
	UID       string `json:"uid"`
	MaxLevels int    `json:"max_levels,omitempty"` // 0 = unlimited
}

// StructureElement positions an entry inside a structure.
type StructureElement struct {
	ID          int64 `json:"id"`
	StructureID int64 `json:"structure_id"`
	ElementID   int64 `json:"element_id"`
	ParentID    int64 `json:"parent_id,omitempty"` // 0 = root level
	Level       int   `json:"level"`
	SortOrder   int   `json:"sort_order"`
}
