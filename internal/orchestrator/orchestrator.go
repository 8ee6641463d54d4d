// Package orchestrator runs the asynchronous job state machine: it accepts
// extraction, generation and edit work for a generation, drives each job
// through QUEUED -> PROCESSING -> {COMPLETED | FAILED}, and talks to the
// external AI collaborators with bounded retries.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/modelcfg"
	image "studio/internal/providers/image"
	"studio/internal/providers/vision"
	"studio/internal/storage"
)

// ObjectStore is the slice of object storage the orchestrator needs.
type ObjectStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
}

// SourceResolver turns a source reference into image bytes.
type SourceResolver interface {
	Resolve(ctx context.Context, teamID string, src domain.SourceRef) ([]byte, error)
}

// StoreResolver resolves both source kinds from object storage. Catalog
// product images live under {catalogPrefix}/{team}/{productID}.jpg; uploads
// carry their storage key directly.
type StoreResolver struct {
	Store         ObjectStore
	CatalogPrefix string
}

func (r StoreResolver) Resolve(ctx context.Context, teamID string, src domain.SourceRef) ([]byte, error) {
	switch src.Kind {
	case domain.SourceKindUploadedFile:
		return r.Store.Read(ctx, src.Ref)
	case domain.SourceKindCatalogProduct:
		prefix := r.CatalogPrefix
		if prefix == "" {
			prefix = "catalog"
		}
		return r.Store.Read(ctx, fmt.Sprintf("%s/%s/%s.jpg", strings.Trim(prefix, "/"), teamID, src.Ref))
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", domain.ErrValidation, src.Kind)
	}
}

// Config tunes the orchestrator.
type Config struct {
	MaxAttempts     int
	Backoff         []time.Duration
	PromptWordLimit int
	WaitTimeout     time.Duration
	RenderPrefix    string
	DefaultLocale   string
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Generations domain.GenerationRepository
	Jobs        domain.JobRepository
	Store       ObjectStore
	Resolver    SourceResolver
	Extractor   vision.Extractor
	Generators  map[string]image.Generator
	Models      *modelcfg.Registry
}

type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
	sleep  func(time.Duration)
}

func New(deps Deps, cfg Config, logger zerolog.Logger) *Orchestrator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	}
	if cfg.PromptWordLimit <= 0 {
		cfg.PromptWordLimit = 120
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 5 * time.Minute
	}
	if cfg.RenderPrefix == "" {
		cfg.RenderPrefix = "renders"
	}
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = "en"
	}
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Enqueue validates the request and creates a QUEUED job for the generation.
// It returns immediately; the worker pool picks the job up. A generation with
// a non-terminal job rejects the call with ErrConcurrencyConflict and no
// second job is created.
func (o *Orchestrator) Enqueue(ctx context.Context, gen *domain.Generation, jobType domain.JobType) (*domain.Job, error) {
	if gen.Deleted() {
		return nil, domain.ErrNotFound
	}
	mode, ok := domain.ModeByKey(gen.Mode)
	if !ok {
		return nil, fmt.Errorf("%w: unknown composition mode %q", domain.ErrValidation, gen.Mode)
	}
	if !mode.CountValid(len(gen.Sources)) {
		return nil, fmt.Errorf("%w: mode %s needs between %d and %d images, have %d",
			domain.ErrValidation, mode.Key, mode.MinImages, mode.MaxImages, len(gen.Sources))
	}
	if gen.HeroIndex != nil {
		if !mode.HeroCapable {
			return nil, fmt.Errorf("%w: mode %s does not support a hero", domain.ErrInvalidHero, mode.Key)
		}
		if *gen.HeroIndex < 0 || *gen.HeroIndex >= len(gen.Sources) {
			return nil, fmt.Errorf("%w: index %d out of range", domain.ErrInvalidHero, *gen.HeroIndex)
		}
	}
	switch jobType {
	case domain.JobTypeImageGenerate:
		if strings.TrimSpace(gen.Prompt) == "" {
			return nil, fmt.Errorf("%w: generation has no extracted prompt yet", domain.ErrValidation)
		}
	case domain.JobTypeImageEdit:
		if strings.TrimSpace(gen.EditInstruction) == "" {
			return nil, fmt.Errorf("%w: edit instruction is required", domain.ErrValidation)
		}
	}

	job := &domain.Job{
		ID:           uuid.NewString(),
		GenerationID: gen.ID,
		Type:         jobType,
		Status:       domain.JobStatusQueued,
		QueuedAt:     o.now(),
	}
	// A user retry of failed work continues the attempt count rather than
	// resetting it; the counter tracks total tries for this piece of work.
	if prev, err := o.deps.Jobs.LatestByGeneration(ctx, gen.ID); err == nil &&
		prev.Type == jobType && prev.Status == domain.JobStatusFailed {
		job.Attempts = prev.Attempts
	}

	if err := o.deps.Jobs.CreateExclusive(ctx, job); err != nil {
		return nil, err
	}
	o.setGenerationStatus(ctx, gen, domain.JobStatusQueued)
	o.logger.Info().
		Str("job_id", job.ID).
		Str("generation_id", gen.ID).
		Str("type", string(jobType)).
		Msg("job queued")
	return job, nil
}

// Retry re-submits the generation's most recent failed work as a new job.
func (o *Orchestrator) Retry(ctx context.Context, generationID string) (*domain.Job, error) {
	gen, err := o.deps.Generations.GetByID(ctx, generationID)
	if err != nil {
		return nil, err
	}
	last, err := o.deps.Jobs.LatestByGeneration(ctx, generationID)
	if err != nil {
		return nil, err
	}
	if last.Status != domain.JobStatusFailed {
		return nil, fmt.Errorf("%w: latest job is %s, only failed work can be retried", domain.ErrValidation, last.Status)
	}
	return o.Enqueue(ctx, gen, last.Type)
}

// Process drives one claimed job to a terminal state. The claim has already
// moved it to PROCESSING; Process records progress, performs the external
// call with bounded retries, and never transitions out of a terminal state.
func (o *Orchestrator) Process(ctx context.Context, job *domain.Job) {
	logger := o.logger.With().
		Str("job_id", job.ID).
		Str("generation_id", job.GenerationID).
		Str("type", string(job.Type)).
		Logger()

	gen, err := o.deps.Generations.GetByID(ctx, job.GenerationID)
	if err != nil {
		o.fail(ctx, job, nil, fmt.Errorf("load generation: %w", err))
		return
	}
	o.setProgress(ctx, job, 10)
	o.setGenerationStatus(ctx, gen, domain.JobStatusProcessing)

	var runErr error
	for {
		job.Attempts++
		if err := o.deps.Jobs.Update(ctx, job); err != nil {
			logger.Error().Err(err).Msg("persist attempt counter failed")
		}
		runErr = o.dispatch(ctx, job, gen)
		if runErr == nil || !domain.IsTransient(runErr) || job.Attempts >= o.cfg.MaxAttempts {
			break
		}
		delay := o.backoffFor(job.Attempts)
		logger.Warn().Err(runErr).Int("attempt", job.Attempts).Dur("backoff", delay).Msg("transient provider failure, retrying")
		o.sleep(delay)
	}

	if runErr != nil {
		logger.Error().Err(runErr).Int("attempts", job.Attempts).Msg("job failed")
		o.fail(ctx, job, gen, runErr)
		return
	}
	o.complete(ctx, job, gen)
	logger.Info().Int("attempts", job.Attempts).Msg("job completed")
}

// dispatch performs the job's external work under the total wait budget. The
// per-exchange timeout lives on the provider HTTP clients.
func (o *Orchestrator) dispatch(ctx context.Context, job *domain.Job, gen *domain.Generation) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.WaitTimeout)
	defer cancel()

	switch job.Type {
	case domain.JobTypeVisionExtract:
		return o.runExtract(ctx, job, gen)
	case domain.JobTypeImageGenerate, domain.JobTypeImageEdit:
		return o.runRender(ctx, job, gen)
	default:
		return fmt.Errorf("%w: unsupported job type %q", domain.ErrValidation, job.Type)
	}
}

func (o *Orchestrator) runExtract(ctx context.Context, job *domain.Job, gen *domain.Generation) error {
	images, err := o.resolveSources(ctx, gen)
	if err != nil {
		return err
	}
	mode, _ := domain.ModeByKey(gen.Mode)
	instruction := ExtractionInstruction(mode, gen.HeroIndex, gen.Brief, o.cfg.DefaultLocale)

	o.setProgress(ctx, job, 50)
	prompt, err := o.deps.Extractor.Extract(ctx, images, instruction)
	if err != nil {
		return err
	}
	gen.Prompt = CapWords(prompt, o.cfg.PromptWordLimit)
	return o.deps.Generations.Update(ctx, gen)
}

func (o *Orchestrator) runRender(ctx context.Context, job *domain.Job, gen *domain.Generation) error {
	prompt := gen.Prompt
	if job.Type == domain.JobTypeImageEdit {
		prompt = EditInstruction(gen.Prompt, gen.EditInstruction)
	}
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: nothing to render, prompt is empty", domain.ErrValidation)
	}

	model, ok := o.deps.Models.Lookup(gen.Model)
	if !ok {
		return fmt.Errorf("%w: unknown model %q", domain.ErrValidation, gen.Model)
	}
	generator, ok := o.deps.Generators[model.Provider]
	if !ok {
		return fmt.Errorf("%w: provider %q not configured", domain.ErrValidation, model.Provider)
	}
	resolution := gen.Resolution
	if resolution == "" {
		resolution = model.DefaultResolution
	} else if !o.deps.Models.SupportsResolution(model.ID, resolution) {
		return fmt.Errorf("%w: model %q does not support resolution %q", domain.ErrValidation, model.ID, resolution)
	}

	refs, err := o.renderReferences(ctx, job, gen)
	if err != nil {
		return err
	}

	o.setProgress(ctx, job, 50)
	result, err := generator.Generate(ctx, image.GenerateRequest{
		Prompt:      prompt,
		References:  refs,
		AspectRatio: gen.AspectRatio,
		Resolution:  resolution,
		Model:       model.ID,
		RequestID:   job.ID,
	})
	if err != nil {
		return err
	}

	key := storage.ObjectKey(o.cfg.RenderPrefix, gen.TeamID, extForMIME(result.MIMEType), o.now())
	stored, err := o.deps.Store.Write(ctx, key, result.Data)
	if err != nil {
		return fmt.Errorf("store render: %w", err)
	}
	gen.StorageDisk = "local"
	gen.StorageKey = stored
	return o.deps.Generations.Update(ctx, gen)
}

// renderReferences assembles the reference images for an image-model call.
// Edits lead with the parent's stored render so the model works from the
// image being edited.
func (o *Orchestrator) renderReferences(ctx context.Context, job *domain.Job, gen *domain.Generation) ([]image.Reference, error) {
	var refs []image.Reference
	if job.Type == domain.JobTypeImageEdit && gen.ParentID != nil {
		parent, err := o.deps.Generations.GetByID(ctx, *gen.ParentID)
		if err != nil {
			return nil, fmt.Errorf("load edit parent: %w", err)
		}
		if parent.HasRender() {
			data, err := o.deps.Store.Read(ctx, parent.StorageKey)
			if err != nil {
				return nil, fmt.Errorf("read parent render: %w", err)
			}
			refs = append(refs, image.Reference{MIMEType: "image/jpeg", Data: data})
		}
	}
	sources, err := o.resolveSources(ctx, gen)
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		refs = append(refs, image.Reference{MIMEType: src.MIMEType, Data: src.Data})
	}
	return refs, nil
}

func (o *Orchestrator) resolveSources(ctx context.Context, gen *domain.Generation) ([]vision.SourceImage, error) {
	out := make([]vision.SourceImage, 0, len(gen.Sources))
	for _, src := range gen.Sources {
		data, err := o.deps.Resolver.Resolve(ctx, gen.TeamID, src)
		if err != nil {
			return nil, fmt.Errorf("resolve source %s/%s: %w", src.Kind, src.Ref, err)
		}
		out = append(out, vision.SourceImage{MIMEType: "image/jpeg", Data: data})
	}
	return out, nil
}

// setProgress raises the job's progress. Progress is coarse and monotonic: it
// never decreases within a job's lifetime.
func (o *Orchestrator) setProgress(ctx context.Context, job *domain.Job, progress int) {
	if job.Status.Terminal() || progress <= job.Progress {
		return
	}
	job.Progress = progress
	if err := o.deps.Jobs.Update(ctx, job); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("persist progress failed")
	}
}

func (o *Orchestrator) complete(ctx context.Context, job *domain.Job, gen *domain.Generation) {
	if job.Status.Terminal() {
		return
	}
	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	finished := o.now()
	job.FinishedAt = &finished
	job.LastError = ""
	job.UserMessage = ""
	if err := o.deps.Jobs.Update(ctx, job); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("persist completion failed")
	}
	o.setGenerationStatus(ctx, gen, domain.JobStatusCompleted)
}

func (o *Orchestrator) fail(ctx context.Context, job *domain.Job, gen *domain.Generation, runErr error) {
	if job.Status.Terminal() {
		return
	}
	job.Status = domain.JobStatusFailed
	finished := o.now()
	job.FinishedAt = &finished
	job.LastError = runErr.Error()
	job.UserMessage = userMessage(runErr)
	if err := o.deps.Jobs.Update(ctx, job); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("persist failure failed")
	}
	if gen != nil {
		o.setGenerationStatus(ctx, gen, domain.JobStatusFailed)
	}
}

func (o *Orchestrator) setGenerationStatus(ctx context.Context, gen *domain.Generation, status domain.JobStatus) {
	gen.Status = domain.GenerationStatusFor(status)
	if err := o.deps.Generations.Update(ctx, gen); err != nil {
		o.logger.Error().Err(err).Str("generation_id", gen.ID).Msg("persist generation status failed")
	}
}

func (o *Orchestrator) backoffFor(attempt int) time.Duration {
	idx := attempt - 1
	if idx >= len(o.cfg.Backoff) {
		idx = len(o.cfg.Backoff) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return o.cfg.Backoff[idx]
}

// userMessage maps an internal failure onto the message shown to clients. The
// raw error stays in logs and in Job.LastError for diagnostics.
func userMessage(err error) string {
	var pe *domain.ProviderError
	switch {
	case errors.As(err, &pe) && pe.Transient && errors.Is(err, context.DeadlineExceeded):
		return "The image service took too long. Please try again."
	case errors.As(err, &pe) && pe.Transient:
		return "The image service is busy right now. Please try again."
	case errors.As(err, &pe):
		return "The image service could not process this request."
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidHero):
		return err.Error()
	default:
		return "Something went wrong while processing this image."
	}
}

func extForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}
