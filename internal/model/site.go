package model

// Site is a localized front end sharing the same content.
type Site struct {
	ID        int64  `json:"id"`
	UID       string `json:"uid"`
	Name      string `json:"name"`
	Handle    string `json:"handle"`
	Primary   bool   `json:"primary"`
	BaseURL   string `json:"base_url,omitempty"`
	SortOrder int    `json:"sort_order"`
}
