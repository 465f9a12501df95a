// Package app wires the stores, the config manager, the reconcilers and the
// queue into one running engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/cms/internal/config"
	"github.com/alfredjeanlab/cms/internal/dispatch"
	"github.com/alfredjeanlab/cms/internal/events"
	"github.com/alfredjeanlab/cms/internal/fields"
	"github.com/alfredjeanlab/cms/internal/projectconfig"
	"github.com/alfredjeanlab/cms/internal/queue"
	"github.com/alfredjeanlab/cms/internal/resave"
	"github.com/alfredjeanlab/cms/internal/sections"
	"github.com/alfredjeanlab/cms/internal/sites"
	"github.com/alfredjeanlab/cms/internal/store"
	"github.com/alfredjeanlab/cms/internal/store/memory"
	"github.com/alfredjeanlab/cms/internal/store/postgres"
	cmssync "github.com/alfredjeanlab/cms/internal/sync"
)

// App is a wired engine. Services are ready to use once New returns.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    store.Store
	Router   *dispatch.Router
	Manager  *projectconfig.Manager
	Notifier *events.Notifier
	Queue    queue.Queue
	Sites    *sites.Service
	Fields   *fields.Service
	Sections *sections.Service
	Worker   *resave.Worker

	nc        *nats.Conn
	publisher events.Publisher
	consumer  *queue.NATSConsumer
	scheduler *cmssync.Scheduler
}

// New opens the store named by cfg.DatabaseURL (memory when empty),
// connects to NATS when cfg.NATSURL is set, registers every reconciler and
// loads the persisted project config.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	if cfg.DatabaseURL == "" {
		a.Store = memory.New()
		logger.Debug("using in-memory store")
	} else {
		pg, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		a.Store = pg
	}

	if cfg.NATSURL != "" {
		nc, err := events.Connect(cfg.NATSURL)
		if err != nil {
			a.Store.Close()
			return nil, err
		}
		a.nc = nc
		a.publisher = events.NewNATSPublisherConn(nc)
		a.Queue = queue.NewNATSQueue(nc)
		logger.Info("events enabled", "nats_url", cfg.NATSURL)
	} else {
		a.publisher = &events.NoopPublisher{}
		a.Queue = queue.NewMemoryQueue()
		logger.Debug("events disabled (CMS_NATS_URL not set)")
	}

	a.Router = dispatch.New()
	a.Manager = projectconfig.New(a.Router,
		projectconfig.WithRecords(a.Store),
		projectconfig.WithLogger(logger),
	)
	a.Notifier = events.NewNotifier(events.NewRegistry(logger), a.publisher, logger)

	a.Sites = sites.New(a.Store, a.Manager, a.Notifier, logger)
	a.Fields = fields.New(a.Store, a.Manager, a.Notifier, logger)
	a.Sections = sections.New(a.Store, a.Manager, a.Sites, a.Fields,
		sections.WithQueue(a.Queue),
		sections.WithNotifier(a.Notifier),
		sections.WithLogger(logger),
	)
	a.Worker = resave.New(a.Store, logger)

	for _, r := range []interface {
		Register(*dispatch.Router) error
	}{a.Sites, a.Fields, a.Sections} {
		if err := r.Register(a.Router); err != nil {
			a.Close()
			return nil, err
		}
	}

	if err := a.Manager.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// ApplyProjectFile applies the YAML project file and runs the resave jobs
// the change produced when the queue is in-process.
func (a *App) ApplyProjectFile(ctx context.Context, path string) error {
	if err := a.Manager.ApplyFile(ctx, path); err != nil {
		return err
	}
	_, err := a.DrainQueue(ctx)
	return err
}

// DrainQueue runs every pending resave job of the in-process queue. With a
// NATS queue jobs are handled by StartWorker consumers and this is a no-op.
func (a *App) DrainQueue(ctx context.Context) (int, error) {
	mq, ok := a.Queue.(*queue.MemoryQueue)
	if !ok {
		return 0, nil
	}
	return mq.Drain(ctx, a.Worker.Handle)
}

// StartWorker subscribes the resave worker to the NATS job subject.
func (a *App) StartWorker(ctx context.Context) error {
	if a.nc == nil {
		return errors.New("resave worker needs CMS_NATS_URL")
	}
	a.consumer = queue.NewNATSConsumer(a.nc, a.Worker.Handle, a.Logger)
	return a.consumer.Start(ctx)
}

// Watch reapplies the project file whenever it changes, until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	w := projectconfig.NewWatcher(a.Manager, a.Config.ProjectFile, a.Config.WatchDebounce, a.Logger)
	w.OnApply = func(err error) {
		if err != nil {
			return
		}
		if n, err := a.DrainQueue(ctx); err != nil {
			a.Logger.Error("resave failed", "err", err)
		} else if n > 0 {
			a.Logger.Info("resave jobs completed", "count", n)
		}
	}
	return w.Run(ctx)
}

// SyncDestinations builds the configured export destinations.
func (a *App) SyncDestinations(ctx context.Context) ([]cmssync.Destination, error) {
	cfg := a.Config
	var dests []cmssync.Destination
	if cfg.SyncS3Bucket != "" {
		s3Dest, err := cmssync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
		if err != nil {
			return nil, fmt.Errorf("S3 sync destination: %w", err)
		}
		dests = append(dests, s3Dest)
		a.Logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, cmssync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		a.Logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}
	return dests, nil
}

// Scheduler returns a sync scheduler over the configured destinations, or
// nil when none are configured.
func (a *App) Scheduler(ctx context.Context) (*cmssync.Scheduler, error) {
	dests, err := a.SyncDestinations(ctx)
	if err != nil || len(dests) == 0 {
		return nil, err
	}
	return cmssync.NewScheduler(a.Store, dests, a.Config.SyncInterval, a.Logger), nil
}

// PullConfig replaces the project config with the export stored at the
// first configured sync destination and runs the resulting resave jobs. It
// returns the number of records applied.
func (a *App) PullConfig(ctx context.Context) (int, error) {
	dests, err := a.SyncDestinations(ctx)
	if err != nil {
		return 0, err
	}
	var remote cmssync.Remote
	for _, d := range dests {
		if r, ok := d.(cmssync.Remote); ok {
			remote = r
			break
		}
	}
	if remote == nil {
		return 0, errors.New("no sync destination configured")
	}

	records, err := cmssync.Fetch(ctx, remote)
	if err != nil {
		return 0, err
	}
	tree, err := projectconfig.TreeFromRecords(records)
	if err != nil {
		return 0, fmt.Errorf("pull %s: %w", remote.Name(), err)
	}
	if err := a.Manager.ApplySnapshot(ctx, tree); err != nil {
		return 0, err
	}
	a.Logger.Info("pulled project config", "from", remote.Name(), "records", len(records))
	if _, err := a.DrainQueue(ctx); err != nil {
		return 0, err
	}
	return len(records), nil
}

// StartSync starts periodic export when sync is enabled.
func (a *App) StartSync(ctx context.Context) error {
	if !a.Config.SyncEnabled() {
		return nil
	}
	sched, err := a.Scheduler(ctx)
	if err != nil || sched == nil {
		return err
	}
	a.scheduler = sched
	sched.Start()
	a.Logger.Info("sync scheduler started", "interval", a.Config.SyncInterval)
	return nil
}

// Close stops background work and releases connections.
func (a *App) Close() error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(); err != nil {
			a.Logger.Warn("stopping resave worker", "err", err)
		}
	}
	if a.Queue != nil {
		_ = a.Queue.Close()
	}
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.nc != nil {
		a.nc.Close()
	}
	return a.Store.Close()
}
