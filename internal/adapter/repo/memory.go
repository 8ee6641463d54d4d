package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"studio/internal/domain"
)

// MemoryGenerationRepository is a mutex-guarded in-memory implementation of
// domain.GenerationRepository for tests and worker-less local runs.
type MemoryGenerationRepository struct {
	mu   sync.Mutex
	gens map[string]*domain.Generation
}

func NewMemoryGenerationRepository() *MemoryGenerationRepository {
	return &MemoryGenerationRepository{gens: make(map[string]*domain.Generation)}
}

func (r *MemoryGenerationRepository) Create(_ context.Context, gen *domain.Generation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *gen
	r.gens[gen.ID] = &cp
	return nil
}

func (r *MemoryGenerationRepository) GetByID(_ context.Context, id string) (*domain.Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen, ok := r.gens[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *gen
	return &cp, nil
}

func (r *MemoryGenerationRepository) Update(_ context.Context, gen *domain.Generation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.gens[gen.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *gen
	cp.UpdatedAt = time.Now()
	r.gens[gen.ID] = &cp
	return nil
}

func (r *MemoryGenerationRepository) ListByParent(_ context.Context, parentID string) ([]*domain.Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Generation
	for _, gen := range r.gens {
		if gen.ParentID != nil && *gen.ParentID == parentID {
			cp := *gen
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryGenerationRepository) Delete(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen, ok := r.gens[id]
	if !ok {
		return domain.ErrNotFound
	}
	gen.DeletedAt = &at
	return nil
}

// MemoryJobRepository is the in-memory counterpart of domain.JobRepository.
// CreateExclusive applies the same single-flight rule as the SQL insert.
type MemoryJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[string]*domain.Job)}
}

func (r *MemoryJobRepository) CreateExclusive(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.jobs {
		if existing.GenerationID == job.GenerationID && !existing.Status.Terminal() {
			return domain.ErrConcurrencyConflict
		}
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *MemoryJobRepository) GetByID(_ context.Context, id string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *MemoryJobRepository) LatestByGeneration(_ context.Context, generationID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Job
	for _, job := range r.jobs {
		if job.GenerationID != generationID {
			continue
		}
		if latest == nil || job.QueuedAt.After(latest.QueuedAt) {
			latest = job
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *MemoryJobRepository) Claim(_ context.Context, staleAfter time.Duration) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *domain.Job
	now := time.Now()
	for _, job := range r.jobs {
		claimable := job.Status == domain.JobStatusQueued ||
			(job.Status == domain.JobStatusProcessing && job.StartedAt != nil && now.Sub(*job.StartedAt) > staleAfter)
		if !claimable {
			continue
		}
		if oldest == nil || job.QueuedAt.Before(oldest.QueuedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	oldest.Status = domain.JobStatusProcessing
	started := now
	oldest.StartedAt = &started
	cp := *oldest
	return &cp, nil
}

func (r *MemoryJobRepository) Update(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

var (
	_ domain.GenerationRepository = (*MemoryGenerationRepository)(nil)
	_ domain.JobRepository        = (*MemoryJobRepository)(nil)
)
