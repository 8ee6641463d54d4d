package modelcfg

import "testing"

func TestDefaultRegistryValid(t *testing.T) {
	reg := Default()
	if len(reg.IDs()) == 0 {
		t.Fatal("default registry is empty")
	}
	m, ok := reg.Lookup("gemini-2.5-flash-image")
	if !ok {
		t.Fatal("gemini-2.5-flash-image missing from default registry")
	}
	if m.Provider != "gemini" {
		t.Fatalf("provider = %q, want gemini", m.Provider)
	}
}

func TestNewRegistryRejectsBadRecords(t *testing.T) {
	cases := []struct {
		name   string
		models []Model
	}{
		{"empty", nil},
		{"duplicate id", []Model{
			{ID: "m", Provider: "p", Resolutions: []string{"1024x1024"}, DefaultResolution: "1024x1024", Pricing: PricingFlatPerImage},
			{ID: "m", Provider: "p", Resolutions: []string{"1024x1024"}, DefaultResolution: "1024x1024", Pricing: PricingFlatPerImage},
		}},
		{"unknown pricing", []Model{
			{ID: "m", Provider: "p", Resolutions: []string{"1024x1024"}, DefaultResolution: "1024x1024", Pricing: "per_token"},
		}},
		{"default outside set", []Model{
			{ID: "m", Provider: "p", Resolutions: []string{"1024x1024"}, DefaultResolution: "2048x2048", Pricing: PricingFlatPerImage},
		}},
	}
	for _, tc := range cases {
		if _, err := NewRegistry(tc.models); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadFromJSON(t *testing.T) {
	data := []byte(`[{"id":"x","provider":"gemini","resolutions":["512x512"],"default_resolution":"512x512","pricing":"per_megapixel"}]`)
	reg, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reg.SupportsResolution("x", "512x512") {
		t.Fatal("SupportsResolution(x, 512x512) = false")
	}
	if reg.SupportsResolution("x", "1024x1024") {
		t.Fatal("SupportsResolution accepted undeclared resolution")
	}
}
