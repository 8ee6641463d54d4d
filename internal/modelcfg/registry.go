// Package modelcfg holds the immutable registry of image models the pipeline
// may call: which provider serves each model, which resolutions it supports,
// and the shape of its pricing. The registry is resolved and validated once at
// startup; pricing itself is billing's problem, the shape only informs request
// construction.
package modelcfg

import (
	"encoding/json"
	"fmt"
	"sort"
)

// PricingShape enumerates how a model is billed.
type PricingShape string

const (
	PricingFlatPerImage  PricingShape = "flat_per_image"
	PricingPerResolution PricingShape = "per_resolution"
	PricingPerMegapixel  PricingShape = "per_megapixel"
)

// Model is one registered image model.
type Model struct {
	ID                string       `json:"id"`
	Provider          string       `json:"provider"`
	Resolutions       []string     `json:"resolutions"`
	DefaultResolution string       `json:"default_resolution"`
	Pricing           PricingShape `json:"pricing"`
}

// Registry is an immutable lookup of models by id.
type Registry struct {
	models map[string]Model
}

// NewRegistry validates the given models and builds a registry.
func NewRegistry(models []Model) (*Registry, error) {
	index := make(map[string]Model, len(models))
	for _, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("modelcfg: model with empty id")
		}
		if _, dup := index[m.ID]; dup {
			return nil, fmt.Errorf("modelcfg: duplicate model id %q", m.ID)
		}
		if m.Provider == "" {
			return nil, fmt.Errorf("modelcfg: model %q has no provider", m.ID)
		}
		switch m.Pricing {
		case PricingFlatPerImage, PricingPerResolution, PricingPerMegapixel:
		default:
			return nil, fmt.Errorf("modelcfg: model %q has unknown pricing shape %q", m.ID, m.Pricing)
		}
		if len(m.Resolutions) == 0 {
			return nil, fmt.Errorf("modelcfg: model %q declares no resolutions", m.ID)
		}
		if !contains(m.Resolutions, m.DefaultResolution) {
			return nil, fmt.Errorf("modelcfg: model %q default resolution %q not in declared set", m.ID, m.DefaultResolution)
		}
		index[m.ID] = m
	}
	if len(index) == 0 {
		return nil, fmt.Errorf("modelcfg: registry is empty")
	}
	return &Registry{models: index}, nil
}

// Load parses a JSON array of models and builds a registry.
func Load(data []byte) (*Registry, error) {
	var models []Model
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, fmt.Errorf("modelcfg: parse: %w", err)
	}
	return NewRegistry(models)
}

// Default returns the built-in model table.
func Default() *Registry {
	reg, err := NewRegistry([]Model{
		{
			ID:                "gemini-2.5-flash-image",
			Provider:          "gemini",
			Resolutions:       []string{"1024x1024", "1536x1024", "1024x1536"},
			DefaultResolution: "1024x1024",
			Pricing:           PricingFlatPerImage,
		},
		{
			ID:                "gemini-2.0-flash-image",
			Provider:          "gemini",
			Resolutions:       []string{"1024x1024"},
			DefaultResolution: "1024x1024",
			Pricing:           PricingFlatPerImage,
		},
		{
			ID:                "qwen-image-edit",
			Provider:          "dashscope",
			Resolutions:       []string{"1024x1024", "1328x1328"},
			DefaultResolution: "1024x1024",
			Pricing:           PricingPerResolution,
		},
	})
	if err != nil {
		panic(err)
	}
	return reg
}

// Lookup resolves a model by id.
func (r *Registry) Lookup(id string) (Model, bool) {
	m, ok := r.models[id]
	return m, ok
}

// SupportsResolution reports whether model id declares the given resolution.
func (r *Registry) SupportsResolution(id, resolution string) bool {
	m, ok := r.models[id]
	if !ok {
		return false
	}
	return contains(m.Resolutions, resolution)
}

// IDs returns the registered model ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
