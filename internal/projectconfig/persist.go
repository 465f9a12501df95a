package projectconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/cms/internal/model"
)

// recordsFromTree flattens a tree into config records: one per depth-2 node
// ("sections:<uid>") and one per depth-1 scalar ("system").
func recordsFromTree(tree map[string]any) map[string]any {
	out := make(map[string]any)
	for ns, v := range tree {
		children, ok := v.(map[string]any)
		if !ok {
			out[ns] = v
			continue
		}
		for name, child := range children {
			out[model.ConfigKey(ns, name)] = child
		}
	}
	return out
}

// persist writes the records that changed since the last persist and deletes
// the ones that disappeared.
func (m *Manager) persist(ctx context.Context) error {
	if m.records == nil {
		return nil
	}

	m.mu.Lock()
	next := recordsFromTree(m.current)
	prev := m.persisted
	m.mu.Unlock()

	written := make(map[string]any, len(next))
	for _, key := range sortedKeys(next) {
		value := next[key]
		if old, ok := prev[key]; ok && equalValues(old, value) {
			written[key] = old
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode config %s: %w", key, err)
		}
		if err := m.records.SetConfig(ctx, &model.Config{Key: key, Value: data}); err != nil {
			return fmt.Errorf("persist config %s: %w", key, err)
		}
		written[key] = cloneValue(value)
	}
	for _, key := range sortedKeys(prev) {
		if _, ok := next[key]; ok {
			continue
		}
		if err := m.records.DeleteConfig(ctx, key); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("delete config %s: %w", key, err)
		}
	}

	m.mu.Lock()
	m.persisted = written
	m.mu.Unlock()
	return nil
}

// Load rebuilds both trees from the persisted records without dispatching.
// The records describe state that was already applied.
func (m *Manager) Load(ctx context.Context) error {
	if m.records == nil {
		return nil
	}
	configs, err := m.records.ListAllConfigs(ctx)
	if err != nil {
		return fmt.Errorf("list configs: %w", err)
	}
	tree, err := TreeFromRecords(configs)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = tree
	m.applied = cloneMap(tree)
	m.persisted = recordsFromTree(cloneMap(tree))
	return nil
}

// TreeFromRecords is the inverse of the record layout written by the
// manager: "ns:name" records become tree[ns][name], bare keys tree[ns].
func TreeFromRecords(configs []*model.Config) (map[string]any, error) {
	tree := make(map[string]any)
	for _, c := range configs {
		var raw any
		if err := json.Unmarshal(c.Value, &raw); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", c.Key, err)
		}
		value, err := normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("decode config %s: %w", c.Key, err)
		}
		ns, name := model.SplitConfigKey(c.Key)
		if name == "" {
			tree[ns] = value
		} else {
			setByPath(tree, []string{ns, name}, value)
		}
	}
	return tree, nil
}
