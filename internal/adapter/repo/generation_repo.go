package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studio/internal/domain"
)

// GenerationRepositoryPG implements domain.GenerationRepository.
type GenerationRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewGenerationRepository creates a generation repository backed by PostgreSQL.
func NewGenerationRepository(pool *pgxpool.Pool) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{pool: pool}
}

const generationColumns = `id, team_id, product_id, parent_id, mode, sources, hero_index,
prompt, brief, edit_instruction, model, aspect_ratio, resolution, storage_disk, storage_key,
status, created_at, updated_at, deleted_at`

// Create inserts a new generation record. Sources are stored as JSONB.
func (r *GenerationRepositoryPG) Create(ctx context.Context, gen *domain.Generation) error {
	sources, err := json.Marshal(gen.Sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	query := `
INSERT INTO generations (id, team_id, product_id, parent_id, mode, sources, hero_index,
                         prompt, brief, edit_instruction, model, aspect_ratio, resolution,
                         storage_disk, storage_key, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);
`
	_, err = r.pool.Exec(ctx, query,
		gen.ID,
		gen.TeamID,
		gen.ProductID,
		gen.ParentID,
		gen.Mode,
		sources,
		gen.HeroIndex,
		gen.Prompt,
		gen.Brief,
		gen.EditInstruction,
		gen.Model,
		gen.AspectRatio,
		gen.Resolution,
		gen.StorageDisk,
		gen.StorageKey,
		gen.Status,
	)
	return err
}

// GetByID fetches a generation by its identifier, tombstoned rows included.
// Callers decide how a tombstone is surfaced.
func (r *GenerationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	query := `
SELECT ` + generationColumns + `
FROM generations
WHERE id = $1;
`
	return scanGeneration(r.pool.QueryRow(ctx, query, id))
}

// Update writes back every mutable column.
func (r *GenerationRepositoryPG) Update(ctx context.Context, gen *domain.Generation) error {
	sources, err := json.Marshal(gen.Sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	query := `
UPDATE generations
SET mode = $2,
    sources = $3,
    hero_index = $4,
    prompt = $5,
    brief = $6,
    edit_instruction = $7,
    model = $8,
    aspect_ratio = $9,
    resolution = $10,
    storage_disk = $11,
    storage_key = $12,
    status = $13,
    updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query,
		gen.ID,
		gen.Mode,
		sources,
		gen.HeroIndex,
		gen.Prompt,
		gen.Brief,
		gen.EditInstruction,
		gen.Model,
		gen.AspectRatio,
		gen.Resolution,
		gen.StorageDisk,
		gen.StorageKey,
		gen.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByParent returns the direct children of a generation, oldest first.
func (r *GenerationRepositoryPG) ListByParent(ctx context.Context, parentID string) ([]*domain.Generation, error) {
	query := `
SELECT ` + generationColumns + `
FROM generations
WHERE parent_id = $1
ORDER BY created_at ASC;
`
	rows, err := r.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, gen)
	}
	return out, rows.Err()
}

// Delete tombstones a generation. Children are untouched.
func (r *GenerationRepositoryPG) Delete(ctx context.Context, id string, at time.Time) error {
	query := `
UPDATE generations
SET deleted_at = $2,
    updated_at = NOW()
WHERE id = $1
  AND deleted_at IS NULL;
`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanGeneration(row pgx.Row) (*domain.Generation, error) {
	var gen domain.Generation
	var sources []byte
	if err := row.Scan(
		&gen.ID,
		&gen.TeamID,
		&gen.ProductID,
		&gen.ParentID,
		&gen.Mode,
		&sources,
		&gen.HeroIndex,
		&gen.Prompt,
		&gen.Brief,
		&gen.EditInstruction,
		&gen.Model,
		&gen.AspectRatio,
		&gen.Resolution,
		&gen.StorageDisk,
		&gen.StorageKey,
		&gen.Status,
		&gen.CreatedAt,
		&gen.UpdatedAt,
		&gen.DeletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &gen.Sources); err != nil {
			return nil, fmt.Errorf("decode sources: %w", err)
		}
	}
	return &gen, nil
}
