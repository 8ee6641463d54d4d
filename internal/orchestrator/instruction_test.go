package orchestrator

import (
	"strings"
	"testing"

	"studio/internal/domain"
)

func TestExtractionInstructionLocales(t *testing.T) {
	mode, _ := domain.ModeByKey(domain.ModeSceneComposition)

	en := ExtractionInstruction(mode, nil, "", "en-US")
	if !strings.Contains(en, "photorealistic") {
		t.Fatalf("english instruction = %q", en)
	}
	id := ExtractionInstruction(mode, nil, "", "id-ID")
	if !strings.Contains(id, "fotorealistik") {
		t.Fatalf("indonesian instruction = %q", id)
	}
	fallback := ExtractionInstruction(mode, nil, "", "fr")
	if fallback != en {
		t.Fatalf("unknown locale should fall back to english, got %q", fallback)
	}
}

func TestExtractionInstructionHeroAndBrief(t *testing.T) {
	mode, _ := domain.ModeByKey(domain.ModeReferenceHero)
	hero := 1

	got := ExtractionInstruction(mode, &hero, "rustic autumn vibe", "en")
	if !strings.Contains(got, "Image 2 is the hero product.") {
		t.Fatalf("hero note missing: %q", got)
	}
	if !strings.Contains(got, "Creative brief: rustic autumn vibe.") {
		t.Fatalf("brief missing: %q", got)
	}

	// A hero index on a mode that cannot use one is ignored.
	scene, _ := domain.ModeByKey(domain.ModeSceneComposition)
	got = ExtractionInstruction(scene, &hero, "", "en")
	if strings.Contains(got, "hero") {
		t.Fatalf("hero note leaked into scene mode: %q", got)
	}
}

func TestEditInstruction(t *testing.T) {
	got := EditInstruction("oak table at dawn", "remove the vase")
	want := "Start from this scene: oak table at dawn. Apply this change: remove the vase. Keep everything else unchanged."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := EditInstruction("", "remove the vase"); got != "remove the vase" {
		t.Fatalf("empty scene should pass the instruction through, got %q", got)
	}
}

func TestCapWords(t *testing.T) {
	if got := CapWords("one two three four", 2); got != "one two" {
		t.Fatalf("got %q", got)
	}
	if got := CapWords("one two", 10); got != "one two" {
		t.Fatalf("got %q", got)
	}
	if got := CapWords("  padded   text  ", 10); got != "padded   text" {
		t.Fatalf("got %q", got)
	}
}
