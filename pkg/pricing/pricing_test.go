package pricing

import (
	"math"
	"testing"
)

func TestEffectiveInputCostFlat(t *testing.T) {
	entry := PriceEntry{Model: "openai/gpt-5.2-thinking", InputPerM: 2.0, OutputPerM: 8.0}
	if got := entry.EffectiveInputCost(0.5); got != 2.0 {
		t.Errorf("flat input cost = %v, want 2.0", got)
	}
}

func TestEffectiveInputCostBlendsCachePricing(t *testing.T) {
	entry := PriceEntry{
		Model:              "anthropic/claude-sonnet-4-20250514",
		InputPerM:          3.0,
		Cache:              true,
		CacheHitInputPerM:  0.30,
		CacheMissInputPerM: 3.75,
	}

	tests := []struct {
		p    float64
		want float64
	}{
		{0.0, 3.75},
		{1.0, 0.30},
		{0.5, 0.5*0.30 + 0.5*3.75},
		{-2.0, 3.75}, // clamped to 0
		{5.0, 0.30},  // clamped to 1
	}
	for _, tt := range tests {
		if got := entry.EffectiveInputCost(tt.p); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("EffectiveInputCost(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestFreeModelCostsNothing(t *testing.T) {
	entry := PriceEntry{Model: "some/free-model", InputPerM: 1.0, OutputPerM: 1.0, Free: true}
	if got := entry.TotalCost(0.5); got != 0 {
		t.Errorf("free model TotalCost = %v, want 0", got)
	}
}

func TestTotalCostAddsOutput(t *testing.T) {
	entry := PriceEntry{Model: "deepseek/deepseek-reasoner", InputPerM: 0.55, OutputPerM: 2.19}
	if got := entry.TotalCost(0.5); math.Abs(got-2.74) > 1e-9 {
		t.Errorf("TotalCost = %v, want 2.74", got)
	}
}

func TestPerMillion(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0.000003", 3.0},
		{"0", 0},
		{"", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := perMillion(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("perMillion(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFlattenDeduplicatesFirstWins(t *testing.T) {
	byProvider := map[string][]PriceEntry{
		"anthropic":  {{Model: "anthropic/claude-3-5-haiku", InputPerM: 0.80}},
		"openrouter": {{Model: "anthropic/claude-3-5-haiku", InputPerM: 0.99}, {Model: "other/model", InputPerM: 1.0}},
	}

	all := Flatten(byProvider, []string{"anthropic", "openrouter"})
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
	if all[0].Model != "anthropic/claude-3-5-haiku" || all[0].InputPerM != 0.80 {
		t.Errorf("dedup did not keep the first provider's entry: %+v", all[0])
	}
}
