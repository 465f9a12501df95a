package sections

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/cms/internal/model"
	"github.com/alfredjeanlab/cms/internal/queue"
)

// resaveJobs decides which resave jobs a change to section needs. Entries of
// a propagating section share content across sites, so one job on a site
// that survives the change is enough; the primary site is preferred. Other
// sections get one job per site they are enabled on. A non-zero typeID
// limits the jobs to entries of that type.
func (s *Service) resaveJobs(ctx context.Context, section *model.Section, typeID int64, oldSiteIDs, newSiteIDs []int64) ([]queue.Job, error) {
	newJob := func(siteID int64) queue.Job {
		return queue.Job{
			Description: fmt.Sprintf("Resaving %s entries", section.Name),
			ElementType: queue.ElementTypeEntry,
			Criteria: queue.Criteria{
				SiteID:          siteID,
				SectionID:       section.ID,
				TypeID:          typeID,
				IncludeDisabled: true,
			},
		}
	}

	if !section.PropagateEntries {
		jobs := make([]queue.Job, len(newSiteIDs))
		for i, siteID := range newSiteIDs {
			jobs[i] = newJob(siteID)
		}
		return jobs, nil
	}

	before := make(map[int64]bool, len(oldSiteIDs))
	for _, id := range oldSiteIDs {
		before[id] = true
	}
	var persistent []int64
	for _, id := range newSiteIDs {
		if before[id] {
			persistent = append(persistent, id)
		}
	}
	if len(persistent) == 0 {
		return nil, nil
	}

	primary, err := s.sites.PrimarySiteID(ctx)
	if err != nil {
		return nil, err
	}
	siteID := persistent[0]
	for _, id := range persistent {
		if id == primary {
			siteID = id
			break
		}
	}
	return []queue.Job{newJob(siteID)}, nil
}

// pushJobs hands jobs to the queue. The change that produced them has been
// committed, so a failed push is logged and not returned.
func (s *Service) pushJobs(ctx context.Context, jobs []queue.Job) {
	for _, job := range jobs {
		if err := s.queue.Push(ctx, job); err != nil {
			s.logger.Warn("failed to queue resave job",
				"section_id", job.Criteria.SectionID, "site_id", job.Criteria.SiteID, "error", err)
		}
	}
}
