package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studio/internal/composition"
	"studio/internal/domain"
	"studio/internal/middleware"
	"studio/pkg/zip"
)

type sourceInput struct {
	Kind       string `json:"kind"`
	Ref        string `json:"ref,omitempty"`
	DataBase64 string `json:"data_base64,omitempty"`
}

type createGenerationRequest struct {
	Mode        string        `json:"mode"`
	Model       string        `json:"model"`
	AspectRatio string        `json:"aspect_ratio"`
	Resolution  string        `json:"resolution"`
	Brief       string        `json:"brief"`
	ProductID   string        `json:"product_id"`
	HeroIndex   *int          `json:"hero_index"`
	Sources     []sourceInput `json:"sources"`
}

type jobResponse struct {
	GenerationID string `json:"generation_id"`
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
}

type generationView struct {
	ID          string     `json:"id"`
	ParentID    *string    `json:"parent_id,omitempty"`
	ProductID   string     `json:"product_id,omitempty"`
	Mode        string     `json:"mode"`
	Status      string     `json:"status"`
	Prompt      string     `json:"prompt,omitempty"`
	Brief       string     `json:"brief,omitempty"`
	Model       string     `json:"model"`
	AspectRatio string     `json:"aspect_ratio,omitempty"`
	Resolution  string     `json:"resolution,omitempty"`
	HasRender   bool       `json:"has_render"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func viewOf(gen *domain.Generation) generationView {
	return generationView{
		ID:          gen.ID,
		ParentID:    gen.ParentID,
		ProductID:   gen.ProductID,
		Mode:        gen.Mode,
		Status:      string(gen.Status),
		Prompt:      gen.Prompt,
		Brief:       gen.Brief,
		Model:       gen.Model,
		AspectRatio: gen.AspectRatio,
		Resolution:  gen.Resolution,
		HasRender:   gen.HasRender(),
		CreatedAt:   gen.CreatedAt,
		UpdatedAt:   gen.UpdatedAt,
		DeletedAt:   gen.DeletedAt,
	}
}

// CreateGeneration assembles a composition from the submitted sources,
// persists the draft, and queues the scene extraction. Validation failures
// come back synchronously; no job exists for an invalid request.
func (a *App) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	teamID := middleware.TeamIDFromContext(r.Context())
	var req createGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Mode == "" {
		req.Mode = domain.ModeSceneComposition
	}
	mode, ok := domain.ModeByKey(req.Mode)
	if !ok {
		a.error(w, http.StatusUnprocessableEntity, "validation_failed", fmt.Sprintf("unknown mode %q", req.Mode))
		return
	}

	builder := composition.NewBuilder(mode, teamID, a.Store)
	builder.SetQuality(a.RenderQuality)
	for i, src := range req.Sources {
		switch src.Kind {
		case string(domain.SourceKindCatalogProduct):
			if err := builder.AddCatalogImage(src.Ref); err != nil {
				a.domainError(w, err)
				return
			}
		case string(domain.SourceKindUploadedFile):
			data, err := base64.StdEncoding.DecodeString(src.DataBase64)
			if err != nil {
				a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("source %d: invalid base64", i))
				return
			}
			if err := builder.AddUploadedImage(r.Context(), data); err != nil {
				a.domainError(w, err)
				return
			}
		default:
			a.error(w, http.StatusUnprocessableEntity, "validation_failed", fmt.Sprintf("source %d: unknown kind %q", i, src.Kind))
			return
		}
	}
	if req.HeroIndex != nil {
		if err := builder.SetHero(*req.HeroIndex); err != nil {
			a.domainError(w, err)
			return
		}
	}
	sources, hero, err := builder.Build()
	if err != nil {
		a.domainError(w, err)
		return
	}

	model := req.Model
	if model == "" {
		model = a.DefaultModel
	}
	if _, ok := a.Models.Lookup(model); !ok {
		a.error(w, http.StatusUnprocessableEntity, "validation_failed", fmt.Sprintf("unknown model %q", model))
		return
	}
	if req.Resolution != "" && !a.Models.SupportsResolution(model, req.Resolution) {
		a.error(w, http.StatusUnprocessableEntity, "validation_failed",
			fmt.Sprintf("model %q does not support resolution %q", model, req.Resolution))
		return
	}

	gen := &domain.Generation{
		ID:          uuid.NewString(),
		TeamID:      teamID,
		ProductID:   req.ProductID,
		Mode:        mode.Key,
		Sources:     sources,
		HeroIndex:   hero,
		Brief:       req.Brief,
		Model:       model,
		AspectRatio: req.AspectRatio,
		Resolution:  req.Resolution,
		Status:      domain.GenerationStatusDraft,
	}
	if err := a.Gens.Create(r.Context(), gen); err != nil {
		a.domainError(w, err)
		return
	}
	job, err := a.Orch.Enqueue(r.Context(), gen, domain.JobTypeVisionExtract)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, jobResponse{GenerationID: gen.ID, JobID: job.ID, Status: string(job.Status)})
}

// RenderGeneration queues the image-model call for an extracted generation.
func (a *App) RenderGeneration(w http.ResponseWriter, r *http.Request) {
	gen, err := a.loadOwned(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	job, err := a.Orch.Enqueue(r.Context(), gen, domain.JobTypeImageGenerate)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, jobResponse{GenerationID: gen.ID, JobID: job.ID, Status: string(job.Status)})
}

type editRequest struct {
	Instruction string `json:"instruction"`
	Model       string `json:"model"`
	Resolution  string `json:"resolution"`
}

// EditGeneration branches a new child version off a rendered generation and
// queues the edit. The parent is untouched; any rendered version can branch
// again, leaf or not.
func (a *App) EditGeneration(w http.ResponseWriter, r *http.Request) {
	parent, err := a.loadOwned(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		a.error(w, http.StatusUnprocessableEntity, "validation_failed", "instruction is required")
		return
	}
	editable, err := a.Graph.IsEditable(r.Context(), parent.ID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if !editable {
		a.error(w, http.StatusUnprocessableEntity, "validation_failed", "generation has no render to edit")
		return
	}

	model := req.Model
	if model == "" {
		model = parent.Model
	}
	if _, ok := a.Models.Lookup(model); !ok {
		a.error(w, http.StatusUnprocessableEntity, "validation_failed", fmt.Sprintf("unknown model %q", model))
		return
	}
	resolution := req.Resolution
	if resolution == "" {
		resolution = parent.Resolution
	}
	if resolution != "" && !a.Models.SupportsResolution(model, resolution) {
		a.error(w, http.StatusUnprocessableEntity, "validation_failed",
			fmt.Sprintf("model %q does not support resolution %q", model, resolution))
		return
	}

	child := &domain.Generation{
		ID:              uuid.NewString(),
		TeamID:          parent.TeamID,
		ProductID:       parent.ProductID,
		ParentID:        &parent.ID,
		Mode:            parent.Mode,
		Sources:         parent.Sources,
		HeroIndex:       parent.HeroIndex,
		Prompt:          parent.Prompt,
		Brief:           parent.Brief,
		EditInstruction: req.Instruction,
		Model:           model,
		AspectRatio:     parent.AspectRatio,
		Resolution:      resolution,
		Status:          domain.GenerationStatusDraft,
	}
	if err := a.Graph.RecordChild(r.Context(), parent.ID, child); err != nil {
		a.domainError(w, err)
		return
	}
	job, err := a.Orch.Enqueue(r.Context(), child, domain.JobTypeImageEdit)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, jobResponse{GenerationID: child.ID, JobID: job.ID, Status: string(job.Status)})
}

// GenerationStatus returns the polling snapshot for a generation.
func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	gen, err := a.loadOwned(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	report, err := a.Reporter.Status(r.Context(), gen.ID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, report)
}

// GenerationHistory returns the version chain above and the subtree below a
// generation, tombstones omitted.
func (a *App) GenerationHistory(w http.ResponseWriter, r *http.Request) {
	gen, err := a.loadOwned(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	ancestors, err := a.Graph.Ancestors(r.Context(), gen.ID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	descendants, err := a.Graph.Descendants(r.Context(), gen.ID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"generation":  viewOf(gen),
		"ancestors":   views(ancestors),
		"descendants": views(descendants),
	})
}

// ExportGeneration streams a zip of the generation's render plus every
// rendered descendant.
func (a *App) ExportGeneration(w http.ResponseWriter, r *http.Request) {
	gen, err := a.loadOwned(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	nodes := []*domain.Generation{gen}
	descendants, err := a.Graph.Descendants(r.Context(), gen.ID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	nodes = append(nodes, descendants...)

	var entries []zip.Entry
	for _, node := range nodes {
		if !node.HasRender() {
			continue
		}
		data, err := a.Store.Read(r.Context(), node.StorageKey)
		if err != nil {
			a.domainError(w, fmt.Errorf("read render %s: %w", node.ID, err))
			return
		}
		entries = append(entries, zip.Entry{Name: node.ID, MIME: "image/jpeg", Data: data})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no renders to export")
		return
	}
	archive, err := zip.Archive(entries)
	if err != nil {
		a.domainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", gen.ID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// GenerationImage serves the stored render.
func (a *App) GenerationImage(w http.ResponseWriter, r *http.Request) {
	gen, err := a.loadOwned(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if !gen.HasRender() {
		a.error(w, http.StatusNotFound, "not_found", "generation has no render yet")
		return
	}
	data, err := a.Store.Read(r.Context(), gen.StorageKey)
	if err != nil {
		a.domainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DeleteGeneration tombstones the version. Children stay, and the node keeps
// linking its ancestors to its descendants in history walks.
func (a *App) DeleteGeneration(w http.ResponseWriter, r *http.Request) {
	gen, err := a.loadOwned(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if err := a.Graph.Delete(r.Context(), gen.ID); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RetryGeneration re-queues the generation's most recent failed job.
func (a *App) RetryGeneration(w http.ResponseWriter, r *http.Request) {
	gen, err := a.loadOwned(r)
	if err != nil {
		a.domainError(w, err)
		return
	}
	job, err := a.Orch.Retry(r.Context(), gen.ID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, jobResponse{GenerationID: gen.ID, JobID: job.ID, Status: string(job.Status)})
}

// loadOwned fetches the generation in the URL and checks it belongs to the
// requesting tenant. Foreign and tombstoned rows surface as not found.
func (a *App) loadOwned(r *http.Request) (*domain.Generation, error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		return nil, fmt.Errorf("%w: id required", domain.ErrValidation)
	}
	gen, err := a.Gens.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if gen.TeamID != middleware.TeamIDFromContext(r.Context()) || gen.Deleted() {
		return nil, domain.ErrNotFound
	}
	return gen, nil
}

func views(gens []*domain.Generation) []generationView {
	out := make([]generationView, 0, len(gens))
	for _, gen := range gens {
		out = append(out, viewOf(gen))
	}
	return out
}
