package projectconfig

import "testing"

func TestValueAccessors(t *testing.T) {
	m := map[string]any{
		"name":      "News",
		"enabled":   true,
		"maxLevels": int64(3),
		"sortOrder": 2,
		"ratio":     float64(4),
		"structure": map[string]any{"uid": "abc"},
	}
	if got := String(m, "name"); got != "News" {
		t.Errorf("String = %q", got)
	}
	if got := String(m, "enabled"); got != "" {
		t.Errorf("String of bool = %q, want empty", got)
	}
	if !Bool(m, "enabled") || Bool(m, "missing") {
		t.Error("Bool mismatch")
	}
	for key, want := range map[string]int{"maxLevels": 3, "sortOrder": 2, "ratio": 4, "name": 0} {
		if got := Int(m, key); got != want {
			t.Errorf("Int(%q) = %d, want %d", key, got, want)
		}
	}
	if got := String(Map(m, "structure"), "uid"); got != "abc" {
		t.Errorf("nested uid = %q", got)
	}
	if Map(m, "name") != nil || AsMap(nil) != nil {
		t.Error("non-map values should return nil")
	}
}
