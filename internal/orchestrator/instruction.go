package orchestrator

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"studio/internal/domain"
)

// Extraction templates per composition mode, in English and Indonesian. The
// tenant locale picks the variant through a language matcher.
var instructionTemplates = map[string]map[string]string{
	domain.ModeSceneComposition: {
		"en": "Study the product photo and describe, as a single natural-language scene prompt, a photorealistic commercial shot of this product: surface, backdrop, lighting and mood.",
		"id": "Pelajari foto produk ini dan tuliskan satu prompt adegan fotorealistik untuk foto komersialnya: permukaan, latar, pencahayaan, dan suasana.",
	},
	domain.ModeProductsTogether: {
		"en": "Study all the product photos and describe, as a single natural-language scene prompt, one photorealistic commercial shot that places every product together in a coherent arrangement.",
		"id": "Pelajari semua foto produk dan tuliskan satu prompt adegan fotorealistik yang menampilkan seluruh produk bersama dalam satu komposisi yang serasi.",
	},
	domain.ModeReferenceHero: {
		"en": "Study the product photos and describe, as a single natural-language scene prompt, a photorealistic commercial shot where the hero product is the focal point and the remaining images serve as style references.",
		"id": "Pelajari foto-foto produk dan tuliskan satu prompt adegan fotorealistik dengan produk utama sebagai titik fokus dan gambar lainnya sebagai referensi gaya.",
	},
}

var localeMatcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Indonesian,
})

// ExtractionInstruction builds the vision-model instruction for a generation:
// the mode's localized template, a hero note when one is selected, and the
// user's creative brief when present.
func ExtractionInstruction(mode domain.CompositionMode, heroIndex *int, brief, locale string) string {
	variants, ok := instructionTemplates[mode.Key]
	if !ok {
		variants = instructionTemplates[domain.ModeSceneComposition]
	}
	_, idx := language.MatchStrings(localeMatcher, locale)
	lang := "en"
	if idx == 1 {
		lang = "id"
	}

	parts := []string{variants[lang]}
	if mode.HeroCapable && heroIndex != nil {
		parts = append(parts, fmt.Sprintf("Image %d is the hero product.", *heroIndex+1))
	}
	if brief = strings.TrimSpace(brief); brief != "" {
		parts = append(parts, "Creative brief: "+brief+".")
	}
	return strings.Join(parts, " ")
}

// EditInstruction combines the original scene prompt with a new edit request
// into a single image-model prompt.
func EditInstruction(originalPrompt, instruction string) string {
	originalPrompt = strings.TrimSpace(originalPrompt)
	instruction = strings.TrimSpace(instruction)
	if originalPrompt == "" {
		return instruction
	}
	return fmt.Sprintf("Start from this scene: %s. Apply this change: %s. Keep everything else unchanged.", originalPrompt, instruction)
}

// CapWords trims text to at most limit words.
func CapWords(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) <= limit {
		return strings.TrimSpace(text)
	}
	return strings.Join(words[:limit], " ")
}
