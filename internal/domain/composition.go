package domain

// CompositionMode is an immutable policy record: how many source images a
// request needs and allows, and whether a hero selection is meaningful.
type CompositionMode struct {
	Key         string
	MinImages   int
	MaxImages   int
	HeroCapable bool
}

const (
	ModeSceneComposition = "scene_composition"
	ModeProductsTogether = "products_together"
	ModeReferenceHero    = "reference_hero"
)

var compositionModes = []CompositionMode{
	{Key: ModeSceneComposition, MinImages: 1, MaxImages: 1},
	{Key: ModeProductsTogether, MinImages: 2, MaxImages: 6},
	{Key: ModeReferenceHero, MinImages: 2, MaxImages: 6, HeroCapable: true},
}

// Modes returns every registered composition mode.
func Modes() []CompositionMode {
	out := make([]CompositionMode, len(compositionModes))
	copy(out, compositionModes)
	return out
}

// ModeByKey resolves a composition mode by its key.
func ModeByKey(key string) (CompositionMode, bool) {
	for _, m := range compositionModes {
		if m.Key == key {
			return m, true
		}
	}
	return CompositionMode{}, false
}

// CountValid reports whether n source images satisfy the mode's bounds.
func (m CompositionMode) CountValid(n int) bool {
	return n >= m.MinImages && n <= m.MaxImages
}
