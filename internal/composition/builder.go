// Package composition assembles and validates the ordered set of source
// images for one generation request, independent of the AI calls that follow.
package composition

import (
	"context"
	"fmt"
	"time"

	"studio/internal/domain"
	"studio/internal/imaging"
	"studio/internal/storage"
)

// Store is the slice of object storage the builder needs for uploads.
type Store interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Builder holds the in-flight source list for one request. It is not safe for
// concurrent use; one builder belongs to one request.
type Builder struct {
	mode         domain.CompositionMode
	teamID       string
	uploadPrefix string
	store        Store
	quality      int
	sources      []domain.SourceRef
	hero         *int
	now          func() time.Time
}

// NewBuilder creates a builder for the given mode and tenant.
func NewBuilder(mode domain.CompositionMode, teamID string, store Store) *Builder {
	return &Builder{
		mode:         mode,
		teamID:       teamID,
		uploadPrefix: "uploads",
		store:        store,
		now:          time.Now,
	}
}

// SetQuality overrides the JPEG quality used when normalizing uploads.
// Non-positive values keep the imaging default.
func (b *Builder) SetQuality(quality int) {
	b.quality = quality
}

// AddCatalogImage appends a catalog product reference. The same product cannot
// appear twice.
func (b *Builder) AddCatalogImage(productID string) error {
	if err := b.checkCapacity(); err != nil {
		return err
	}
	for _, src := range b.sources {
		if src.Kind == domain.SourceKindCatalogProduct && src.Ref == productID {
			return fmt.Errorf("%w: product %s", domain.ErrDuplicateSource, productID)
		}
	}
	b.sources = append(b.sources, domain.SourceRef{Kind: domain.SourceKindCatalogProduct, Ref: productID})
	return nil
}

// AddUploadedImage normalizes the binary at the preview cap, stores it, and
// appends the stored reference.
func (b *Builder) AddUploadedImage(ctx context.Context, data []byte) error {
	if err := b.checkCapacity(); err != nil {
		return err
	}
	normalized, err := imaging.Normalize(data, imaging.Options{MaxDimension: imaging.PreviewMaxDimension, Quality: b.quality})
	if err != nil {
		return err
	}
	key, err := b.store.Write(ctx, storage.ObjectKey(b.uploadPrefix, b.teamID, "jpg", b.now()), normalized)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	b.sources = append(b.sources, domain.SourceRef{Kind: domain.SourceKindUploadedFile, Ref: key})
	return nil
}

// Remove drops the source at index. When the removed index was the hero, the
// hero resets to the new first index, or clears if the list empties; sources
// after the removed one shift down.
func (b *Builder) Remove(index int) error {
	if index < 0 || index >= len(b.sources) {
		return fmt.Errorf("%w: index %d out of range", domain.ErrValidation, index)
	}
	b.sources = append(b.sources[:index], b.sources[index+1:]...)
	if b.hero == nil {
		return nil
	}
	switch {
	case len(b.sources) == 0:
		b.hero = nil
	case *b.hero == index:
		first := 0
		b.hero = &first
	case *b.hero > index:
		shifted := *b.hero - 1
		b.hero = &shifted
	}
	return nil
}

// SetHero marks the source at index as the hero. Only hero-capable modes
// accept a hero.
func (b *Builder) SetHero(index int) error {
	if !b.mode.HeroCapable {
		return fmt.Errorf("%w: mode %s does not support a hero", domain.ErrInvalidHero, b.mode.Key)
	}
	if index < 0 || index >= len(b.sources) {
		return fmt.Errorf("%w: index %d out of range", domain.ErrInvalidHero, index)
	}
	b.hero = &index
	return nil
}

// SetMode switches the active mode. Already-selected images are kept;
// readiness is re-evaluated against the new bounds, and a hero set under a
// hero-capable mode is dropped when the new mode has no use for it.
func (b *Builder) SetMode(mode domain.CompositionMode) {
	b.mode = mode
	if !mode.HeroCapable {
		b.hero = nil
	}
}

// IsReady reports whether the source count satisfies the active mode.
func (b *Builder) IsReady() bool {
	return b.mode.CountValid(len(b.sources))
}

// Mode returns the active composition mode.
func (b *Builder) Mode() domain.CompositionMode {
	return b.mode
}

// Sources returns a copy of the ordered source list.
func (b *Builder) Sources() []domain.SourceRef {
	out := make([]domain.SourceRef, len(b.sources))
	copy(out, b.sources)
	return out
}

// Hero returns the hero index, or nil when none is set.
func (b *Builder) Hero() *int {
	if b.hero == nil {
		return nil
	}
	h := *b.hero
	return &h
}

// Build validates readiness and returns the final source list and hero.
func (b *Builder) Build() ([]domain.SourceRef, *int, error) {
	if !b.IsReady() {
		return nil, nil, fmt.Errorf("%w: mode %s needs between %d and %d images, have %d",
			domain.ErrNotReady, b.mode.Key, b.mode.MinImages, b.mode.MaxImages, len(b.sources))
	}
	return b.Sources(), b.Hero(), nil
}

func (b *Builder) checkCapacity() error {
	if len(b.sources) >= b.mode.MaxImages {
		return fmt.Errorf("%w: mode %s allows at most %d images", domain.ErrCapacityExceeded, b.mode.Key, b.mode.MaxImages)
	}
	return nil
}
