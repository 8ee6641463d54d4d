package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/imaging"
	"studio/internal/modelcfg"
	"studio/internal/orchestrator"
	"studio/internal/status"
	"studio/internal/versiongraph"
)

type App struct {
	Logger        zerolog.Logger
	Gens          domain.GenerationRepository
	Jobs          domain.JobRepository
	Orch          *orchestrator.Orchestrator
	Graph         *versiongraph.Manager
	Reporter      *status.Reporter
	Store         orchestrator.ObjectStore
	Models        *modelcfg.Registry
	DefaultModel  string
	RenderQuality int
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, msg string) {
	a.json(w, code, map[string]string{"error": kind, "message": msg})
}

// domainError maps a domain failure onto an HTTP response.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "generation not found")
	case errors.Is(err, domain.ErrConcurrencyConflict):
		a.error(w, http.StatusConflict, "conflict", "another job is already in flight for this generation")
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidHero),
		errors.Is(err, domain.ErrDuplicateSource),
		errors.Is(err, domain.ErrCapacityExceeded),
		errors.Is(err, domain.ErrNotReady),
		errors.Is(err, imaging.ErrUnsupportedFormat):
		a.error(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
