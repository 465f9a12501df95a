package projectconfig

// Accessors for values handed to handlers. Config values are normalized, so
// integers are int64 and nested objects are map[string]any; these helpers
// also accept the other numeric widths for values built by hand.

// String returns m[key] as a string, or "".
func String(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// Bool returns m[key] as a bool, or false.
func Bool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// Int returns m[key] as an int, or 0.
func Int(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Map returns m[key] as a map, or nil.
func Map(m map[string]any, key string) map[string]any {
	sub, _ := m[key].(map[string]any)
	return sub
}

// AsMap returns v as a map, or nil.
func AsMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
