package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Config is a persisted project config record stored as JSONB.
// Keys use the format "{namespace}:{name}" (e.g. "sections:6f1c...",
// "sites:0a2b..."); top-level scalars are stored under "{namespace}".
type Config struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ConfigKey builds the record key for a namespace and name.
func ConfigKey(namespace, name string) string {
	if name == "" {
		return namespace
	}
	return namespace + ":" + name
}

// SplitConfigKey is the inverse of ConfigKey.
func SplitConfigKey(key string) (namespace, name string) {
	if i := strings.Index(key, ":"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}
