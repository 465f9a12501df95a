// Package projectconfig holds the declarative project configuration: a tree
// of nested maps addressed by dot-delimited paths such as
// "sections.<uid>.entryTypes.<uid>".
//
// The Manager keeps two trees. The current tree is the desired state and is
// changed by Set and Remove. The applied tree is the state whose change
// notifications have been handled. A flush compares the two at every path
// that a dispatch route matches (a handler node) and sends one event per
// differing node, then records the node as applied.
//
// Flush order: deletions first, then additions and updates, each shallowest
// path first. A parent's delete handler removes its whole subtree, so the
// deletions of its children are never dispatched. Handlers that depend on
// other config call Process for that subtree instead of relying on this
// order.
//
// A node's own value leaves out child keys that a deeper route owns, so a
// change to "sections.<s>.entryTypes.<e>" is never reported as a change of
// "sections.<s>".
package projectconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/alfredjeanlab/cms/internal/dispatch"
	"github.com/alfredjeanlab/cms/internal/model"
)

// DefaultMaxPasses bounds how many times a flush re-scans for changes made by
// handlers while it was running.
const DefaultMaxPasses = 32

// ErrInvalidPath is returned for empty paths or paths with empty segments.
var ErrInvalidPath = errors.New("invalid config path")

// Records persists the current tree as config records. store.Store
// satisfies it.
type Records interface {
	SetConfig(ctx context.Context, config *model.Config) error
	DeleteConfig(ctx context.Context, key string) error
	ListAllConfigs(ctx context.Context) ([]*model.Config, error)
}

// Manager is the project config store.
//
// Reads are safe from any goroutine. Config-changing calls are expected to
// be serialized by the caller; concurrent writers are last-write-wins.
type Manager struct {
	router  *dispatch.Router
	records Records
	logger  *slog.Logger

	mu         sync.Mutex
	current    map[string]any
	applied    map[string]any
	persisted  map[string]any // record key -> value last written to records
	processing map[string]bool
	batchDepth int
	maxPasses  int
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecords persists the tree after every successful flush.
func WithRecords(r Records) Option {
	return func(m *Manager) {
		m.records = r
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMaxPasses overrides DefaultMaxPasses.
func WithMaxPasses(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxPasses = n
		}
	}
}

// New creates an empty Manager that dispatches through router.
func New(router *dispatch.Router, opts ...Option) *Manager {
	m := &Manager{
		router:     router,
		logger:     slog.Default(),
		current:    make(map[string]any),
		applied:    make(map[string]any),
		persisted:  make(map[string]any),
		processing: make(map[string]bool),
		maxPasses:  DefaultMaxPasses,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Router returns the router the Manager dispatches through.
func (m *Manager) Router() *dispatch.Router {
	return m.router
}

func splitPath(path string) ([]string, error) {
	segments := dispatch.SplitPath(path)
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segments, nil
}

// Get returns a copy of the current value at path, or nil if absent.
func (m *Manager) Get(path string) any {
	segments, err := splitPath(path)
	if err != nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := getByPath(m.current, segments)
	if !ok {
		return nil
	}
	return cloneValue(v)
}

// GetMap is Get for map values. It returns nil when the value is absent or
// not a map.
func (m *Manager) GetMap(path string) map[string]any {
	v, _ := m.Get(path).(map[string]any)
	return v
}

// Snapshot returns a deep copy of the current tree.
func (m *Manager) Snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneMap(m.current)
}

// Set stores value at path. A nil value removes the path. Outside a Batch
// the change is applied before Set returns.
func (m *Manager) Set(ctx context.Context, path string, value any) error {
	if value == nil {
		return m.Remove(ctx, path)
	}
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	v, err := normalize(value)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	m.mu.Lock()
	setByPath(m.current, segments, v)
	m.mu.Unlock()

	return m.flushUnlessBatching(ctx)
}

// Remove deletes the subtree at path. Outside a Batch the deletion is
// applied before Remove returns.
func (m *Manager) Remove(ctx context.Context, path string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	deleteByPath(m.current, segments)
	m.mu.Unlock()

	return m.flushUnlessBatching(ctx)
}

// Batch runs fn as one unit of work: changes made by fn are applied when the
// outermost batch returns. If fn fails, every change that has not been
// applied yet is discarded.
func (m *Manager) Batch(ctx context.Context, fn func() error) error {
	m.mu.Lock()
	m.batchDepth++
	m.mu.Unlock()

	err := fn()

	m.mu.Lock()
	m.batchDepth--
	outermost := m.batchDepth == 0
	if err != nil && outermost && len(m.processing) == 0 {
		m.current = cloneMap(m.applied)
	}
	m.mu.Unlock()

	if err != nil || !outermost {
		return err
	}
	return m.Process(ctx, "")
}

// ApplySnapshot replaces the whole current tree and applies the difference.
// This is how a config snapshot from another environment is replayed.
func (m *Manager) ApplySnapshot(ctx context.Context, tree map[string]any) error {
	v, err := normalize(tree)
	if err != nil {
		return fmt.Errorf("apply snapshot: %w", err)
	}
	normalized, _ := v.(map[string]any)
	if normalized == nil {
		normalized = make(map[string]any)
	}

	m.mu.Lock()
	m.current = normalized
	m.mu.Unlock()

	return m.flushUnlessBatching(ctx)
}

func (m *Manager) flushUnlessBatching(ctx context.Context) error {
	m.mu.Lock()
	batching := m.batchDepth > 0
	m.mu.Unlock()
	if batching {
		return nil
	}
	return m.Process(ctx, "")
}

// pendingNode is a handler node whose own value differs between the applied
// and current trees.
type pendingNode struct {
	path     string
	segments []string
	kind     dispatch.Kind
}

// ownValue returns the value at segments without the child keys owned by
// deeper routes.
func (m *Manager) ownValue(tree map[string]any, segments []string) (any, bool) {
	v, ok := getByPath(tree, segments)
	if !ok {
		return nil, false
	}
	vm, isMap := v.(map[string]any)
	if !isMap {
		return cloneValue(v), true
	}
	own := make(map[string]any, len(vm))
	for key, child := range vm {
		if m.router.Claims(segments, key) {
			continue
		}
		own[key] = cloneValue(child)
	}
	return own, true
}

// pendingLocked lists pending handler nodes under prefix in flush order.
// Nodes currently being dispatched are skipped.
func (m *Manager) pendingLocked(prefix []string) []pendingNode {
	paths := make(map[string]bool)
	for _, p := range m.router.HandlerPaths(m.current) {
		paths[p] = true
	}
	for _, p := range m.router.HandlerPaths(m.applied) {
		paths[p] = true
	}

	var deletions, changes []pendingNode
	for path := range paths {
		if m.processing[path] {
			continue
		}
		segments := dispatch.SplitPath(path)
		if !hasPrefix(segments, prefix) {
			continue
		}
		oldVal, oldOK := m.ownValue(m.applied, segments)
		newVal, newOK := m.ownValue(m.current, segments)
		if oldOK == newOK && equalValues(oldVal, newVal) {
			continue
		}
		if newOK {
			changes = append(changes, pendingNode{path: path, segments: segments, kind: dispatch.Changed})
		} else {
			deletions = append(deletions, pendingNode{path: path, segments: segments, kind: dispatch.Deleted})
		}
	}

	sortShallowFirst(deletions)
	sortShallowFirst(changes)
	return append(deletions, changes...)
}

// sortShallowFirst orders parents before their children, ties by path. A
// deleted parent takes its subtree with it, so the deletions of its children
// are never dispatched.
func sortShallowFirst(nodes []pendingNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if len(nodes[i].segments) != len(nodes[j].segments) {
			return len(nodes[i].segments) < len(nodes[j].segments)
		}
		return nodes[i].path < nodes[j].path
	})
}

// AreChangesPending reports whether a change at or under path, or at the
// handler node that owns path, has been staged but not applied yet.
func (m *Manager) AreChangesPending(path string) bool {
	segments, err := splitPath(path)
	if err != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, node := range m.pendingLocked(nil) {
		if hasPrefix(node.segments, segments) {
			return true
		}
		if hasPrefix(segments, node.segments) && !m.router.Claims(node.segments, segments[len(node.segments)]) {
			return true
		}
	}
	return false
}

// Process applies every pending change at or under path ("" for the whole
// tree). Handlers call it to make sure the config they depend on has been
// applied; nodes that are already being applied are skipped.
func (m *Manager) Process(ctx context.Context, path string) error {
	var prefix []string
	if path != "" {
		var err error
		if prefix, err = splitPath(path); err != nil {
			return err
		}
	}

	for pass := 0; ; pass++ {
		m.mu.Lock()
		pending := m.pendingLocked(prefix)
		m.mu.Unlock()

		if len(pending) == 0 {
			break
		}
		if pass >= m.maxPasses {
			return fmt.Errorf("process %q: changes still pending after %d passes", path, m.maxPasses)
		}
		for _, node := range pending {
			if err := m.apply(ctx, node); err != nil {
				return err
			}
		}
	}

	if len(prefix) > 0 {
		return nil
	}

	m.mu.Lock()
	idle := len(m.processing) == 0
	if idle {
		// Config that no route handles is applied as-is.
		m.applied = cloneMap(m.current)
	}
	m.mu.Unlock()

	if !idle {
		return nil
	}
	return m.persist(ctx)
}

// apply dispatches one pending node and records it as applied. On failure
// the outermost flush discards all unapplied changes; a nested flush only
// reverts the failed node and leaves the rest to its caller.
func (m *Manager) apply(ctx context.Context, node pendingNode) error {
	m.mu.Lock()
	// Re-check: an earlier handler in this pass may have applied it.
	oldOwn, oldOK := m.ownValue(m.applied, node.segments)
	newOwn, newOK := m.ownValue(m.current, node.segments)
	if m.processing[node.path] || (oldOK == newOK && equalValues(oldOwn, newOwn)) {
		m.mu.Unlock()
		return nil
	}
	kind := dispatch.Deleted
	var newFull any
	if newOK {
		kind = dispatch.Changed
		full, _ := getByPath(m.current, node.segments)
		newFull = cloneValue(full)
	}
	m.processing[node.path] = true
	m.mu.Unlock()

	m.logger.Debug("applying config change", "path", node.path, "kind", kind.String())

	_, err := m.router.Dispatch(ctx, dispatch.Event{
		Kind:     kind,
		Path:     node.path,
		OldValue: oldOwn,
		NewValue: newFull,
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.processing, node.path)

	if err != nil {
		if len(m.processing) == 0 {
			m.current = cloneMap(m.applied)
		} else {
			m.revertLocked(node.segments)
		}
		return fmt.Errorf("apply %s %s: %w", kind, node.path, err)
	}

	m.markAppliedLocked(node.segments, newOwn, newOK)
	return nil
}

// markAppliedLocked copies a node's dispatched own value into the applied
// tree, keeping the child keys owned by deeper routes.
func (m *Manager) markAppliedLocked(segments []string, own any, present bool) {
	if !present {
		deleteByPath(m.applied, segments)
		return
	}
	ownMap, ownIsMap := own.(map[string]any)
	existing, ok := getByPath(m.applied, segments)
	existingMap, existingIsMap := existing.(map[string]any)
	if !ownIsMap || !ok || !existingIsMap {
		setByPath(m.applied, segments, cloneValue(own))
		return
	}

	merged := make(map[string]any, len(ownMap))
	for key, child := range existingMap {
		if m.router.Claims(segments, key) {
			merged[key] = child
		}
	}
	for key, child := range ownMap {
		merged[key] = cloneValue(child)
	}
	setByPath(m.applied, segments, merged)
}

// revertLocked puts a node's applied value back into the current tree.
func (m *Manager) revertLocked(segments []string) {
	appliedFull, ok := getByPath(m.applied, segments)
	if !ok {
		deleteByPath(m.current, segments)
		return
	}
	currentFull, ok := getByPath(m.current, segments)
	currentMap, currentIsMap := currentFull.(map[string]any)
	appliedMap, appliedIsMap := appliedFull.(map[string]any)
	if !ok || !currentIsMap || !appliedIsMap {
		setByPath(m.current, segments, cloneValue(appliedFull))
		return
	}

	reverted := make(map[string]any, len(appliedMap))
	for key, child := range currentMap {
		if m.router.Claims(segments, key) {
			reverted[key] = child
		}
	}
	for key, child := range appliedMap {
		if !m.router.Claims(segments, key) {
			reverted[key] = cloneValue(child)
		}
	}
	setByPath(m.current, segments, reverted)
}
