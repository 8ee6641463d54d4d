package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"studio/internal/adapter/repo"
	"studio/internal/domain"
)

func seed(t *testing.T) (*Reporter, *repo.MemoryGenerationRepository, *repo.MemoryJobRepository) {
	t.Helper()
	gens := repo.NewMemoryGenerationRepository()
	jobs := repo.NewMemoryJobRepository()
	return NewReporter(gens, jobs), gens, jobs
}

func TestStatusWithoutJob(t *testing.T) {
	ctx := context.Background()
	r, gens, _ := seed(t)
	if err := gens.Create(ctx, &domain.Generation{ID: "g1", TeamID: "t1", Status: domain.GenerationStatusDraft}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := r.Status(ctx, "g1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Generation != domain.GenerationStatusDraft {
		t.Fatalf("generation status = %s, want DRAFT", got.Generation)
	}
	if got.JobStatus != "" || got.IsAwaiting {
		t.Fatalf("report claims job activity with no job: %+v", got)
	}
}

func TestStatusReflectsLatestJob(t *testing.T) {
	ctx := context.Background()
	r, gens, jobs := seed(t)
	if err := gens.Create(ctx, &domain.Generation{ID: "g1", TeamID: "t1", Status: domain.GenerationStatusProcessing}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	job := &domain.Job{
		ID:           "j1",
		GenerationID: "g1",
		Type:         domain.JobTypeImageGenerate,
		Status:       domain.JobStatusProcessing,
		Progress:     50,
		Attempts:     2,
		QueuedAt:     time.Now(),
	}
	if err := jobs.CreateExclusive(ctx, job); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	got, err := r.Status(ctx, "g1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.JobStatus != domain.JobStatusProcessing || got.Progress != 50 || got.Attempts != 2 {
		t.Fatalf("report = %+v", got)
	}
	if !got.IsAwaiting {
		t.Fatal("a PROCESSING job should report as awaiting")
	}

	// Reading is idempotent.
	again, err := r.Status(ctx, "g1")
	if err != nil {
		t.Fatalf("second status: %v", err)
	}
	if *again != *got {
		t.Fatalf("second read differs: %+v vs %+v", again, got)
	}
}

func TestStatusShowsUserMessageOnly(t *testing.T) {
	ctx := context.Background()
	r, gens, jobs := seed(t)
	if err := gens.Create(ctx, &domain.Generation{ID: "g1", TeamID: "t1", Status: domain.GenerationStatusFailed}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	job := &domain.Job{
		ID:           "j1",
		GenerationID: "g1",
		Type:         domain.JobTypeImageGenerate,
		Status:       domain.JobStatusFailed,
		LastError:    "dashscope: 500 internal server error",
		UserMessage:  "The image service is busy right now. Please try again.",
		QueuedAt:     time.Now(),
	}
	if err := jobs.CreateExclusive(ctx, job); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	got, err := r.Status(ctx, "g1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Message != job.UserMessage {
		t.Fatalf("message = %q, want the user-facing text", got.Message)
	}
	if got.IsAwaiting {
		t.Fatal("a FAILED job should not report as awaiting")
	}
}

func TestStatusDeletedGeneration(t *testing.T) {
	ctx := context.Background()
	r, gens, _ := seed(t)
	deleted := time.Now()
	if err := gens.Create(ctx, &domain.Generation{ID: "g1", TeamID: "t1", DeletedAt: &deleted}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := r.Status(ctx, "g1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := r.Status(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
