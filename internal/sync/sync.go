// Package sync periodically exports the persisted project config to S3 or a
// git repository so an environment can be restored or diffed.
package sync

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/cms/internal/model"
)

// Destination is a sync target.
type Destination interface {
	// Name identifies the destination in logs.
	Name() string
	// Write stores the JSONL export.
	Write(ctx context.Context, data []byte) error
}

// Remote is a Destination the stored export can be read back from.
type Remote interface {
	Destination
	Read(ctx context.Context) ([]byte, error)
}

// Fetch reads the export stored at r and returns its config records.
func Fetch(ctx context.Context, r Remote) ([]*model.Config, error) {
	data, err := r.Read(ctx)
	if err != nil {
		return nil, err
	}
	configs, err := ReadJSONL(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Name(), err)
	}
	return configs, nil
}

// Scheduler exports the config records of a source to its destinations on
// an interval. Ticks whose export matches the last successful sync are
// skipped.
type Scheduler struct {
	source       ConfigSource
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	mu         sync.Mutex
	lastDigest string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. A nil logger uses slog.Default().
func NewScheduler(src ConfigSource, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		source:       src,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start syncs once immediately and then on every tick until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for a running sync to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.sync(ctx, false); err != nil && ctx.Err() == nil {
		s.logger.Error("sync failed", "err", err)
	}
}

// SyncOnce exports and writes to every destination, changed or not. It
// returns the first destination error; the remaining destinations are still
// written.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	_, err := s.sync(ctx, true)
	return err
}

// sync reports whether destinations were written.
func (s *Scheduler) sync(ctx context.Context, force bool) (bool, error) {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.source, &buf); err != nil {
		return false, fmt.Errorf("sync export: %w", err)
	}
	data := buf.Bytes()
	digest := ExportDigest(data)

	s.mu.Lock()
	unchanged := digest == s.lastDigest
	s.mu.Unlock()
	if unchanged && !force {
		s.logger.Debug("sync skipped, export unchanged", "digest", digest)
		return false, nil
	}

	var firstErr error
	for _, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("sync destination write failed", "destination", dest.Name(), "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return true, firstErr
	}

	s.mu.Lock()
	s.lastDigest = digest
	s.mu.Unlock()
	s.logger.Info("sync completed", "destinations", len(s.destinations), "bytes", len(data), "digest", digest)
	return true, nil
}
