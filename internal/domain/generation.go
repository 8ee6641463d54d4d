package domain

import "time"

// SourceKind enumerates where a composition source image comes from.
type SourceKind string

const (
	SourceKindCatalogProduct SourceKind = "catalog_product"
	SourceKindUploadedFile   SourceKind = "uploaded_file"
)

// SourceRef points at one source image. Ref is opaque: a product id for
// catalog sources, a storage key for uploads.
type SourceRef struct {
	Kind SourceKind `json:"kind"`
	Ref  string     `json:"ref"`
}

// GenerationStatus mirrors the latest job's lifecycle on the generation record
// so clients can read one row instead of joining jobs.
type GenerationStatus string

const (
	GenerationStatusDraft      GenerationStatus = "DRAFT"
	GenerationStatusQueued     GenerationStatus = "QUEUED"
	GenerationStatusProcessing GenerationStatus = "PROCESSING"
	GenerationStatusCompleted  GenerationStatus = "COMPLETED"
	GenerationStatusFailed     GenerationStatus = "FAILED"
)

// Generation is one produced or in-progress image artifact. Parent links form
// a forest: edits create children, siblings branch freely.
type Generation struct {
	ID              string
	TeamID          string
	ProductID       string
	ParentID        *string
	Mode            string
	Sources         []SourceRef
	HeroIndex       *int
	Prompt          string
	Brief           string
	EditInstruction string
	Model           string
	AspectRatio     string
	Resolution      string
	StorageDisk     string
	StorageKey      string
	Status          GenerationStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

// Deleted reports whether the generation has been tombstoned. Tombstoned nodes
// stay in the tree for traversal but are hidden from every read surface.
func (g *Generation) Deleted() bool {
	return g != nil && g.DeletedAt != nil
}

// HasRender reports whether a stored render exists for this generation.
func (g *Generation) HasRender() bool {
	return g != nil && g.StorageKey != ""
}
