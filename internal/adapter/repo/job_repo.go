package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studio/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

const jobColumns = `id, generation_id, type, status, progress, attempts,
last_error, user_message, queued_at, started_at, finished_at`

// CreateExclusive inserts the job only when the generation has no other job
// still in flight. The guarded insert makes concurrent submissions race for a
// single row; the loser sees ErrConcurrencyConflict.
func (r *JobRepositoryPG) CreateExclusive(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, generation_id, type, status, progress, attempts, last_error, user_message, queued_at)
SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
WHERE NOT EXISTS (
    SELECT 1 FROM jobs
    WHERE generation_id = $2
      AND status NOT IN ('COMPLETED', 'FAILED')
);
`
	tag, err := r.pool.Exec(ctx, query,
		job.ID,
		job.GenerationID,
		job.Type,
		job.Status,
		job.Progress,
		job.Attempts,
		job.LastError,
		job.UserMessage,
		job.QueuedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrencyConflict
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE id = $1;
`
	return scanJob(r.pool.QueryRow(ctx, query, id))
}

// LatestByGeneration returns the most recently queued job for a generation.
func (r *JobRepositoryPG) LatestByGeneration(ctx context.Context, generationID string) (*domain.Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE generation_id = $1
ORDER BY queued_at DESC
LIMIT 1;
`
	return scanJob(r.pool.QueryRow(ctx, query, generationID))
}

// Claim atomically takes one runnable job: the oldest QUEUED row, or a
// PROCESSING row whose worker went quiet for longer than staleAfter. SKIP
// LOCKED keeps concurrent workers from fighting over the same row.
func (r *JobRepositoryPG) Claim(ctx context.Context, staleAfter time.Duration) (*domain.Job, error) {
	query := `
UPDATE jobs
SET status = 'PROCESSING',
    started_at = NOW()
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'QUEUED'
       OR (status = 'PROCESSING' AND started_at < NOW() - $1::interval)
    ORDER BY queued_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING ` + jobColumns + `;
`
	return scanJob(r.pool.QueryRow(ctx, query, staleAfter))
}

// Update writes back the job's mutable columns.
func (r *JobRepositoryPG) Update(ctx context.Context, job *domain.Job) error {
	query := `
UPDATE jobs
SET status = $2,
    progress = $3,
    attempts = $4,
    last_error = $5,
    user_message = $6,
    started_at = $7,
    finished_at = $8
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Progress,
		job.Attempts,
		job.LastError,
		job.UserMessage,
		job.StartedAt,
		job.FinishedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.GenerationID,
		&job.Type,
		&job.Status,
		&job.Progress,
		&job.Attempts,
		&job.LastError,
		&job.UserMessage,
		&job.QueuedAt,
		&job.StartedAt,
		&job.FinishedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}
