// Package queue holds deferred work produced by reconcilers. Jobs are
// fire-and-forget descriptors: pushing one never blocks on the work itself.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/cms/internal/idgen"
)

// ElementTypeEntry is the element type of every resave job the sections
// reconciler pushes.
const ElementTypeEntry = "entry"

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("queue closed")

// Criteria selects the elements a job covers. Zero values mean "any".
type Criteria struct {
	SiteID          int64 `json:"site_id,omitempty"`
	SectionID       int64 `json:"section_id,omitempty"`
	TypeID          int64 `json:"type_id,omitempty"`
	IncludeDisabled bool  `json:"include_disabled,omitempty"`
}

// Job is a resave request: re-derive the stored state of every element that
// matches Criteria.
type Job struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	ElementType string   `json:"element_type"`
	Criteria    Criteria `json:"criteria"`
}

// sameWork reports whether two jobs describe the same work, ignoring ID.
func (j Job) sameWork(o Job) bool {
	return j.ElementType == o.ElementType && j.Criteria == o.Criteria
}

// Queue accepts jobs.
type Queue interface {
	Push(ctx context.Context, job Job) error
	Close() error
}

// Handler processes one job.
type Handler func(ctx context.Context, job Job) error

func assignID(job *Job) error {
	if job.ID != "" {
		return nil
	}
	id, err := idgen.JobID()
	if err != nil {
		return fmt.Errorf("generating job id: %w", err)
	}
	job.ID = id
	return nil
}
