// Package versiongraph maintains the parent/child lineage among generations:
// every edit creates a child, siblings branch freely, and the whole structure
// stays a forest.
package versiongraph

import (
	"context"
	"fmt"
	"time"

	"studio/internal/domain"
)

// Manager answers ancestry and subtree queries over persisted generations.
type Manager struct {
	gens domain.GenerationRepository
	now  func() time.Time
}

func NewManager(gens domain.GenerationRepository) *Manager {
	return &Manager{gens: gens, now: time.Now}
}

// RecordChild links child under parentID and persists it. The parent must
// exist and must not be tombstoned.
func (m *Manager) RecordChild(ctx context.Context, parentID string, child *domain.Generation) error {
	parent, err := m.gens.GetByID(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.Deleted() {
		return domain.ErrNotFound
	}
	pid := parentID
	child.ParentID = &pid
	return m.gens.Create(ctx, child)
}

// Ancestors walks parent links from the given generation up to its root and
// returns the chain ordered root-first, excluding the node itself. Tombstoned
// ancestors are walked through but omitted from the result. A revisited node
// means the forest invariant is broken; that is reported as an error, not
// recovered from.
func (m *Manager) Ancestors(ctx context.Context, generationID string) ([]*domain.Generation, error) {
	gen, err := m.gens.GetByID(ctx, generationID)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{gen.ID: true}
	var chain []*domain.Generation
	for gen.ParentID != nil {
		parent, err := m.gens.GetByID(ctx, *gen.ParentID)
		if err != nil {
			return nil, fmt.Errorf("resolve ancestor %s: %w", *gen.ParentID, err)
		}
		if seen[parent.ID] {
			return nil, fmt.Errorf("parent links form a cycle at generation %s", parent.ID)
		}
		seen[parent.ID] = true
		if !parent.Deleted() {
			chain = append(chain, parent)
		}
		gen = parent
	}
	reverse(chain)
	return chain, nil
}

// Descendants returns the full subtree below the given generation, not merely
// direct children. Tombstoned nodes are traversed but omitted.
func (m *Manager) Descendants(ctx context.Context, generationID string) ([]*domain.Generation, error) {
	if _, err := m.gens.GetByID(ctx, generationID); err != nil {
		return nil, err
	}
	var out []*domain.Generation
	queue := []string{generationID}
	seen := map[string]bool{generationID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		children, err := m.gens.ListByParent(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list children of %s: %w", id, err)
		}
		for _, child := range children {
			if seen[child.ID] {
				return nil, fmt.Errorf("parent links form a cycle at generation %s", child.ID)
			}
			seen[child.ID] = true
			if !child.Deleted() {
				out = append(out, child)
			}
			queue = append(queue, child.ID)
		}
	}
	return out, nil
}

// IsEditable reports whether the generation can source a new edit. Any live
// node with a stored render qualifies, leaf or not; editing is never
// restricted to the current tip.
func (m *Manager) IsEditable(ctx context.Context, generationID string) (bool, error) {
	gen, err := m.gens.GetByID(ctx, generationID)
	if err != nil {
		return false, err
	}
	if gen.Deleted() {
		return false, nil
	}
	return gen.HasRender(), nil
}

// Delete tombstones the generation. Children are kept; the node simply stops
// resolving on read surfaces and in ancestor chains.
func (m *Manager) Delete(ctx context.Context, generationID string) error {
	gen, err := m.gens.GetByID(ctx, generationID)
	if err != nil {
		return err
	}
	if gen.Deleted() {
		return domain.ErrNotFound
	}
	return m.gens.Delete(ctx, generationID, m.now())
}

func reverse(gens []*domain.Generation) {
	for i, j := 0, len(gens)-1; i < j; i, j = i+1, j-1 {
		gens[i], gens[j] = gens[j], gens[i]
	}
}
