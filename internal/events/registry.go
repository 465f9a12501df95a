package events

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Hook names a point in a save or delete where observers run.
type Hook string

const (
	BeforeSaveSection     Hook = "beforeSaveSection"
	AfterSaveSection      Hook = "afterSaveSection"
	BeforeDeleteSection   Hook = "beforeDeleteSection"
	AfterDeleteSection    Hook = "afterDeleteSection"
	BeforeSaveEntryType   Hook = "beforeSaveEntryType"
	AfterSaveEntryType    Hook = "afterSaveEntryType"
	BeforeDeleteEntryType Hook = "beforeDeleteEntryType"
	AfterDeleteEntryType  Hook = "afterDeleteEntryType"
	AfterSaveSite         Hook = "afterSaveSite"
	AfterDeleteSite       Hook = "afterDeleteSite"
)

// IsBefore reports whether observers of h may veto the operation.
func (h Hook) IsBefore() bool {
	return strings.HasPrefix(string(h), "before")
}

// Observer handles one fired hook. The payload is one of the event types in
// this package.
type Observer func(ctx context.Context, payload any) error

// VetoError is returned by Fire when a before-observer rejects an operation.
type VetoError struct {
	Hook Hook
	Err  error
}

func (e *VetoError) Error() string {
	return fmt.Sprintf("%s vetoed: %v", e.Hook, e.Err)
}

func (e *VetoError) Unwrap() error {
	return e.Err
}

// Registry is a synchronous observer list keyed by hook. Observers run in
// registration order on the firing goroutine.
type Registry struct {
	mu        sync.RWMutex
	observers map[Hook]map[uint64]Observer
	nextID    uint64
	logger    *slog.Logger
}

// NewRegistry creates an empty Registry. A nil logger uses slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		observers: make(map[Hook]map[uint64]Observer),
		logger:    logger,
	}
}

// On registers fn for hook and returns a function that removes it.
func (r *Registry) On(hook Hook, fn Observer) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	if r.observers[hook] == nil {
		r.observers[hook] = make(map[uint64]Observer)
	}
	r.observers[hook][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.observers[hook], id)
		})
	}
}

// Fire runs the observers of hook. For before-hooks the first error stops
// the remaining observers and is returned as a *VetoError. After-hook
// errors are logged and do not stop delivery.
func (r *Registry) Fire(ctx context.Context, hook Hook, payload any) error {
	for _, fn := range r.snapshot(hook) {
		err := fn(ctx, payload)
		if err == nil {
			continue
		}
		if hook.IsBefore() {
			return &VetoError{Hook: hook, Err: err}
		}
		r.logger.Warn("observer failed", "hook", string(hook), "err", err)
	}
	return nil
}

func (r *Registry) snapshot(hook Hook) []Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byID := r.observers[hook]
	ids := make([]uint64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Observer, len(ids))
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out
}
