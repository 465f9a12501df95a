// Package resave consumes resave jobs from the deferred work queue and
// re-derives the stored state of the entries they select: URIs from the
// section's URI formats, titles of singles, and which sites an entry has a
// row on.
package resave

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/queue"
	"github.com/alfredjeanlab/cms/internal/sections"
	"github.com/alfredjeanlab/cms/internal/store"
)

// Worker handles resave jobs against a store.
type Worker struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a Worker. A nil logger uses slog.Default().
func New(s store.Store, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: s, logger: logger}
}

// Handle resaves the entries selected by job. It has the signature of
// queue.Handler. Jobs for sections that no longer exist are dropped.
func (w *Worker) Handle(ctx context.Context, job queue.Job) error {
	if job.ElementType != queue.ElementTypeEntry {
		return fmt.Errorf("resave %s: unsupported element type %q", job.ID, job.ElementType)
	}
	c := job.Criteria

	var resaved int
	err := w.store.RunInTransaction(ctx, func(tx store.Store) error {
		section, err := tx.GetSection(ctx, c.SectionID)
		if errors.Is(err, sql.ErrNoRows) {
			w.logger.Info("dropping resave job for deleted section", "job", job.ID, "section_id", c.SectionID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading section %d: %w", c.SectionID, err)
		}

		rows, err := tx.ListSiteSettings(ctx, section.ID)
		if err != nil {
			return fmt.Errorf("listing site settings: %w", err)
		}
		settings := make(map[int64]*model.SiteSettings, len(rows))
		for _, ss := range rows {
			settings[ss.SiteID] = ss
		}

		entries, err := tx.ListEntries(ctx, model.EntryFilter{
			SectionID:       section.ID,
			TypeID:          c.TypeID,
			SiteID:          c.SiteID,
			IncludeDisabled: c.IncludeDisabled,
		})
		if err != nil {
			return fmt.Errorf("listing entries: %w", err)
		}
		for _, entry := range entries {
			if err := resaveEntry(ctx, tx, section, settings, entry, c.SiteID); err != nil {
				return fmt.Errorf("resaving entry %d: %w", entry.ID, err)
			}
			resaved++
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.logger.Info("resaved entries", "job", job.ID, "description", job.Description, "count", resaved)
	return nil
}

// resaveEntry rewrites one entry's site rows. A propagating section's
// entries are resaved on every site, and sites the section was enabled on
// since get a row copied from the job's site. Otherwise only the job's site
// is touched.
func resaveEntry(ctx context.Context, tx store.Store, section *model.Section, settings map[int64]*model.SiteSettings, entry *model.Entry, siteID int64) error {
	existing, err := tx.ListEntrySites(ctx, entry.ID)
	if err != nil {
		return fmt.Errorf("listing entry sites: %w", err)
	}

	var rows []*model.EntrySite
	var source *model.EntrySite
	bySite := make(map[int64]bool, len(existing))
	for _, row := range existing {
		if row.SiteID == siteID {
			source = row
		}
		if section.PropagateEntries || row.SiteID == siteID {
			rows = append(rows, row)
			bySite[row.SiteID] = true
		}
	}

	if section.PropagateEntries && source != nil {
		for id, ss := range settings {
			if bySite[id] {
				continue
			}
			rows = append(rows, &model.EntrySite{
				EntryID: entry.ID,
				SiteID:  id,
				Title:   source.Title,
				Slug:    source.Slug,
				Enabled: ss.EnabledByDefault,
			})
		}
	}

	for _, row := range rows {
		ss, ok := settings[row.SiteID]
		if !ok {
			if err := tx.DeleteEntrySite(ctx, entry.ID, row.SiteID); err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("deleting row on site %d: %w", row.SiteID, err)
			}
			continue
		}

		row.URI = ""
		if ss.HasURLs {
			row.URI = sections.RenderURI(ss.URIFormat, section, entry, row.Slug)
		}
		if section.Type == model.SectionTypeSingle {
			row.Title = section.Name
		}
		if err := tx.UpsertEntrySite(ctx, row); err != nil {
			return fmt.Errorf("saving row on site %d: %w", row.SiteID, err)
		}
	}
	return nil
}
