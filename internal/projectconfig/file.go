package projectconfig

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ReadFile decodes a YAML project file into a normalized tree. An empty
// file yields an empty tree.
func ReadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}
	return decodeYAML(data)
}

func decodeYAML(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse project file: %w", err)
	}
	v, err := normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("parse project file: %w", err)
	}
	tree, _ := v.(map[string]any)
	if tree == nil {
		tree = make(map[string]any)
	}
	return tree, nil
}

// EncodeYAML writes tree to w as YAML with two-space indentation.
func EncodeYAML(w io.Writer, tree map[string]any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return fmt.Errorf("encode project file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode project file: %w", err)
	}
	return nil
}

// WriteFile encodes tree as YAML with sorted keys and replaces path
// atomically.
func WriteFile(path string, tree map[string]any) error {
	var buf bytes.Buffer
	if err := EncodeYAML(&buf, tree); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".project-*.yaml")
	if err != nil {
		return fmt.Errorf("write project file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write project file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write project file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write project file: %w", err)
	}
	return nil
}

// SaveFile writes the current tree to path.
func (m *Manager) SaveFile(path string) error {
	return WriteFile(path, m.Snapshot())
}

// ApplyFile reads path and applies it as the new current tree.
func (m *Manager) ApplyFile(ctx context.Context, path string) error {
	tree, err := ReadFile(path)
	if err != nil {
		return err
	}
	return m.ApplySnapshot(ctx, tree)
}
