package main

import (
	"reflect"
	"testing"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{name: "plain string", raw: "News", want: "News"},
		{name: "quoted string", raw: `"News"`, want: "News"},
		{name: "boolean", raw: "true", want: true},
		{name: "number", raw: "3", want: float64(3)},
		{name: "object", raw: `{"handle":"news"}`, want: map[string]any{"handle": "news"}},
		{name: "uri format stays a string", raw: "news/{slug}", want: "news/{slug}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseValue(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseValue(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"config", "apply"},
		{"config", "export"},
		{"config", "get"},
		{"config", "set"},
		{"config", "rm"},
		{"config", "import"},
		{"sections", "list"},
		{"sections", "show"},
		{"sections", "delete"},
		{"resave"},
		{"watch"},
		{"sync", "export"},
		{"sync", "push"},
		{"sync", "pull"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd == rootCmd {
			t.Errorf("command %v not registered: %v", path, err)
		}
	}
}
