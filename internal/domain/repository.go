package domain

import (
	"context"
	"time"
)

// GenerationRepository defines persistence for generation records. GetByID
// returns tombstoned rows (DeletedAt set) so graph traversal can walk through
// them; read surfaces decide what to hide.
type GenerationRepository interface {
	Create(ctx context.Context, gen *Generation) error
	GetByID(ctx context.Context, id string) (*Generation, error)
	Update(ctx context.Context, gen *Generation) error
	ListByParent(ctx context.Context, parentID string) ([]*Generation, error)
	Delete(ctx context.Context, id string, at time.Time) error
}

// JobRepository defines persistence for jobs. CreateExclusive must reject the
// insert with ErrConcurrencyConflict when the generation already holds a
// non-terminal job; this is the single-flight guard, enforced at the store so
// racing submits cannot slip past it.
type JobRepository interface {
	CreateExclusive(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id string) (*Job, error)
	LatestByGeneration(ctx context.Context, generationID string) (*Job, error)
	Claim(ctx context.Context, staleAfter time.Duration) (*Job, error)
	Update(ctx context.Context, job *Job) error
}
