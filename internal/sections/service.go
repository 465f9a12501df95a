// Package sections saves sections and entry types through project config
// and reconciles sections.* config into the live tables.
//
// The command side (SaveSection, SaveEntryType, Delete*) validates and
// writes config. The event side (Handle*) is registered on the dispatcher
// and does the actual row work inside one store transaction per change.
package sections

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alfredjeanlab/cms/internal/dispatch"
	"github.com/alfredjeanlab/cms/internal/events"
	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/queue"
	"github.com/alfredjeanlab/cms/internal/store"
)

// ConfigKey is the root config path of sections.
const ConfigKey = "sections"

var (
	// ErrSectionNotFound is returned when a section ID, UID or handle has no
	// live row.
	ErrSectionNotFound = errors.New("section not found")
	// ErrEntryTypeNotFound is returned when an entry type ID has no live row.
	ErrEntryTypeNotFound = errors.New("entry type not found")
)

// ConfigStore is the project config manager as seen by the sections
// service.
type ConfigStore interface {
	Get(path string) any
	Set(ctx context.Context, path string, value any) error
	Remove(ctx context.Context, path string) error
	Batch(ctx context.Context, fn func() error) error
	Process(ctx context.Context, path string) error
	AreChangesPending(path string) bool
}

// SiteRegistry resolves sites.
type SiteRegistry interface {
	AllSiteIDs(ctx context.Context) ([]int64, error)
	PrimarySiteID(ctx context.Context) (int64, error)
	IDsForUIDs(ctx context.Context, uids []string) (map[string]int64, error)
	UIDsForIDs(ctx context.Context, ids []int64) (map[int64]string, error)
	SortedUIDs(ctx context.Context, byUID map[string]any) ([]string, error)
}

// Layouts is the field layout subsystem.
type Layouts interface {
	CreateLayout(ctx context.Context, tx store.Store, uid string, config map[string]any) (*model.FieldLayout, error)
	SaveLayout(ctx context.Context, tx store.Store, layout *model.FieldLayout, config map[string]any) error
	DeleteLayout(ctx context.Context, tx store.Store, id int64) error
	LayoutConfig(ctx context.Context, id int64) (*model.FieldLayout, map[string]any, error)
}

// Service is the sections service. It owns the identity cache.
type Service struct {
	store   store.Store
	config  ConfigStore
	sites   SiteRegistry
	layouts Layouts
	queue   queue.Queue
	notify  *events.Notifier
	logger  *slog.Logger
	cache   *cache
}

// Option configures a Service.
type Option func(*Service)

// WithQueue sets the queue resave jobs are pushed to.
func WithQueue(q queue.Queue) Option {
	return func(s *Service) { s.queue = q }
}

// WithNotifier sets the observer registry and event publisher.
func WithNotifier(n *events.Notifier) Option {
	return func(s *Service) { s.notify = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a sections service. Without WithQueue, jobs go to an
// in-memory queue reachable through Queue.
func New(st store.Store, cfg ConfigStore, sites SiteRegistry, layouts Layouts, opts ...Option) *Service {
	s := &Service{
		store:   st,
		config:  cfg,
		sites:   sites,
		layouts: layouts,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = queue.NewMemoryQueue()
	}
	if s.notify == nil {
		s.notify = events.NewNotifier(nil, nil, s.logger)
	}
	s.cache = newCache(st)

	// Site rows going away take section settings with them.
	s.notify.Registry.On(events.AfterDeleteSite, func(context.Context, any) error {
		s.cache.invalidate()
		return nil
	})
	s.notify.Registry.On(events.AfterDeleteSite, s.pruneDeletedSite)
	return s
}

// Queue returns the queue resave jobs are pushed to.
func (s *Service) Queue() queue.Queue {
	return s.queue
}

// Register adds the section and entry type routes.
func (s *Service) Register(r *dispatch.Router) error {
	if err := r.Handle(ConfigKey+".*", s.HandleChangedSection, s.HandleDeletedSection); err != nil {
		return err
	}
	return r.Handle(ConfigKey+".*.entryTypes.*", s.HandleChangedEntryType, s.HandleDeletedEntryType)
}

func sectionPath(uid string) string {
	return ConfigKey + "." + uid
}

func siteSettingsPath(sectionUID, siteUID string) string {
	return sectionPath(sectionUID) + ".siteSettings." + siteUID
}

func entryTypesPath(sectionUID string) string {
	return sectionPath(sectionUID) + ".entryTypes"
}

func entryTypePath(sectionUID, uid string) string {
	return entryTypesPath(sectionUID) + "." + uid
}
