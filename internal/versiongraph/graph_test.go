package versiongraph

import (
	"context"
	"errors"
	"testing"
	"time"

	"studio/internal/adapter/repo"
	"studio/internal/domain"
)

func seed(t *testing.T, gens *repo.MemoryGenerationRepository, id string, parent *string) *domain.Generation {
	t.Helper()
	gen := &domain.Generation{
		ID:         id,
		TeamID:     "team-1",
		ParentID:   parent,
		Mode:       domain.ModeSceneComposition,
		StorageKey: "renders/team-1/" + id + ".jpg",
		Status:     domain.GenerationStatusCompleted,
		CreatedAt:  time.Now(),
	}
	if err := gens.Create(context.Background(), gen); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	return gen
}

func ptr(s string) *string { return &s }

// Builds:
//
//	root
//	├── a
//	│   ├── a1
//	│   └── a2
//	└── b
func seedTree(t *testing.T, gens *repo.MemoryGenerationRepository) {
	t.Helper()
	seed(t, gens, "root", nil)
	seed(t, gens, "a", ptr("root"))
	seed(t, gens, "b", ptr("root"))
	seed(t, gens, "a1", ptr("a"))
	seed(t, gens, "a2", ptr("a"))
}

func ids(gens []*domain.Generation) []string {
	out := make([]string, len(gens))
	for i, g := range gens {
		out[i] = g.ID
	}
	return out
}

func TestAncestorsRootFirst(t *testing.T) {
	gens := repo.NewMemoryGenerationRepository()
	seedTree(t, gens)
	m := NewManager(gens)

	chain, err := m.Ancestors(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Ancestors: %v", err)
	}
	got := ids(chain)
	if len(got) != 2 || got[0] != "root" || got[1] != "a" {
		t.Fatalf("ancestors = %v, want [root a]", got)
	}
}

func TestAncestorsOfRootEmpty(t *testing.T) {
	gens := repo.NewMemoryGenerationRepository()
	seedTree(t, gens)
	m := NewManager(gens)

	chain, err := m.Ancestors(context.Background(), "root")
	if err != nil {
		t.Fatalf("Ancestors: %v", err)
	}
	if len(chain) != 0 {
		t.Fatalf("ancestors of root = %v, want empty", ids(chain))
	}
}

func TestDescendantsFullSubtree(t *testing.T) {
	gens := repo.NewMemoryGenerationRepository()
	seedTree(t, gens)
	m := NewManager(gens)

	subtree, err := m.Descendants(context.Background(), "root")
	if err != nil {
		t.Fatalf("Descendants: %v", err)
	}
	if len(subtree) != 4 {
		t.Fatalf("descendants = %v, want 4 nodes", ids(subtree))
	}
	// Spec property: g appears in descendants(a) for every ancestor a of g.
	found := false
	for _, g := range subtree {
		if g.ID == "a2" {
			found = true
		}
	}
	if !found {
		t.Fatal("a2 missing from descendants(root)")
	}
}

func TestDescendantsOfMidNode(t *testing.T) {
	gens := repo.NewMemoryGenerationRepository()
	seedTree(t, gens)
	m := NewManager(gens)

	subtree, err := m.Descendants(context.Background(), "a")
	if err != nil {
		t.Fatalf("Descendants: %v", err)
	}
	if len(subtree) != 2 {
		t.Fatalf("descendants(a) = %v, want [a1 a2]", ids(subtree))
	}
}

func TestAncestorsDetectCycle(t *testing.T) {
	gens := repo.NewMemoryGenerationRepository()
	a := seed(t, gens, "x", nil)
	seed(t, gens, "y", ptr("x"))
	// Break the forest invariant on purpose.
	a.ParentID = ptr("y")
	if err := gens.Update(context.Background(), a); err != nil {
		t.Fatalf("update: %v", err)
	}
	m := NewManager(gens)

	if _, err := m.Ancestors(context.Background(), "x"); err == nil {
		t.Fatal("expected cycle to be reported")
	}
}

func TestRecordChildLinksParent(t *testing.T) {
	gens := repo.NewMemoryGenerationRepository()
	seed(t, gens, "root", nil)
	m := NewManager(gens)

	child := &domain.Generation{ID: "child", TeamID: "team-1", CreatedAt: time.Now()}
	if err := m.RecordChild(context.Background(), "root", child); err != nil {
		t.Fatalf("RecordChild: %v", err)
	}

	chain, err := m.Ancestors(context.Background(), "child")
	if err != nil {
		t.Fatalf("Ancestors: %v", err)
	}
	if len(chain) != 1 || chain[0].ID != "root" {
		t.Fatalf("ancestors = %v, want [root]", ids(chain))
	}
	subtree, err := m.Descendants(context.Background(), "root")
	if err != nil {
		t.Fatalf("Descendants: %v", err)
	}
	if len(subtree) != 1 || subtree[0].ID != "child" {
		t.Fatalf("descendants = %v, want [child]", ids(subtree))
	}
}

func TestTombstoneHiddenButWalkedThrough(t *testing.T) {
	gens := repo.NewMemoryGenerationRepository()
	seedTree(t, gens)
	m := NewManager(gens)

	if err := m.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	chain, err := m.Ancestors(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Ancestors: %v", err)
	}
	got := ids(chain)
	if len(got) != 1 || got[0] != "root" {
		t.Fatalf("ancestors after tombstone = %v, want [root]", got)
	}

	subtree, err := m.Descendants(context.Background(), "root")
	if err != nil {
		t.Fatalf("Descendants: %v", err)
	}
	for _, g := range subtree {
		if g.ID == "a" {
			t.Fatal("tombstoned node still listed in descendants")
		}
	}
	if len(subtree) != 3 {
		t.Fatalf("descendants = %v, want a1, a2, b", ids(subtree))
	}

	editable, err := m.IsEditable(context.Background(), "a")
	if err != nil {
		t.Fatalf("IsEditable: %v", err)
	}
	if editable {
		t.Fatal("tombstoned generation reported editable")
	}
	if err := m.Delete(context.Background(), "a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("double delete err = %v, want ErrNotFound", err)
	}
}

func TestIsEditableNonLeaf(t *testing.T) {
	gens := repo.NewMemoryGenerationRepository()
	seedTree(t, gens)
	m := NewManager(gens)

	editable, err := m.IsEditable(context.Background(), "a")
	if err != nil {
		t.Fatalf("IsEditable: %v", err)
	}
	if !editable {
		t.Fatal("non-leaf node with a render should be editable")
	}

	// A node with no stored render cannot source an edit.
	gen := &domain.Generation{ID: "draft", TeamID: "team-1", CreatedAt: time.Now()}
	if err := gens.Create(context.Background(), gen); err != nil {
		t.Fatalf("create: %v", err)
	}
	editable, err = m.IsEditable(context.Background(), "draft")
	if err != nil {
		t.Fatalf("IsEditable: %v", err)
	}
	if editable {
		t.Fatal("render-less generation reported editable")
	}
}
