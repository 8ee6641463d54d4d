// Package status exposes a read-only view of a generation's pipeline state
// for polling clients.
package status

import (
	"context"
	"errors"
	"time"

	"studio/internal/domain"
)

// Report is the client-facing snapshot of a generation and its latest job.
// Message carries only the curated user-facing text; raw provider errors never
// appear here.
type Report struct {
	GenerationID string                  `json:"generation_id"`
	Generation   domain.GenerationStatus `json:"status"`
	JobStatus    domain.JobStatus        `json:"job_status,omitempty"`
	Progress     int                     `json:"progress"`
	Attempts     int                     `json:"attempts"`
	Message      string                  `json:"message,omitempty"`
	IsAwaiting   bool                    `json:"is_awaiting"`
	HasRender    bool                    `json:"has_render"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

type Reporter struct {
	gens domain.GenerationRepository
	jobs domain.JobRepository
}

func NewReporter(gens domain.GenerationRepository, jobs domain.JobRepository) *Reporter {
	return &Reporter{gens: gens, jobs: jobs}
}

// Status returns the current snapshot for a generation. It is a pure read:
// polling never changes state, and repeated calls return the same answer
// until the worker moves the job forward. Deleted generations report as not
// found.
func (r *Reporter) Status(ctx context.Context, generationID string) (*Report, error) {
	gen, err := r.gens.GetByID(ctx, generationID)
	if err != nil {
		return nil, err
	}
	if gen.Deleted() {
		return nil, domain.ErrNotFound
	}

	report := &Report{
		GenerationID: gen.ID,
		Generation:   gen.Status,
		HasRender:    gen.HasRender(),
		UpdatedAt:    gen.UpdatedAt,
	}

	job, err := r.jobs.LatestByGeneration(ctx, generationID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return report, nil
	case err != nil:
		return nil, err
	}

	report.JobStatus = job.Status
	report.Progress = job.Progress
	report.Attempts = job.Attempts
	report.Message = job.UserMessage
	report.IsAwaiting = !job.Status.Terminal()
	if job.FinishedAt != nil && job.FinishedAt.After(report.UpdatedAt) {
		report.UpdatedAt = *job.FinishedAt
	}
	return report, nil
}
