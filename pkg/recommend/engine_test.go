package recommend

import (
	"math"
	"testing"

	"github.com/zen-systems/routekeeper/pkg/config"
	"github.com/zen-systems/routekeeper/pkg/pricing"
)

func fixtureModels() []pricing.PriceEntry {
	return []pricing.PriceEntry{
		{Model: "anthropic/claude-sonnet-4-20250514", InputPerM: 3.0, OutputPerM: 15.0, Vision: true},
		{Model: "anthropic/claude-opus-4-20250514", InputPerM: 15.0, OutputPerM: 75.0, Vision: true},
		{Model: "openai/gpt-5.2-thinking", InputPerM: 2.0, OutputPerM: 8.0, Vision: true},
		{Model: "google/gemini-2.0-pro", InputPerM: 1.25, OutputPerM: 10.0, Vision: true},
		{Model: "google/gemini-2.0-flash", InputPerM: 0.10, OutputPerM: 0.40, Vision: true},
		{Model: "deepseek/deepseek-chat", InputPerM: 0.27, OutputPerM: 1.10},
		{Model: "deepseek/deepseek-reasoner", InputPerM: 0.55, OutputPerM: 2.19},
	}
}

func TestScoreBlendsQualityAndCost(t *testing.T) {
	engine := NewEngine(config.DefaultTables())
	model := pricing.PriceEntry{Model: "deepseek/deepseek-reasoner", InputPerM: 0.55, OutputPerM: 2.19}

	// quality 8 for debugging; totalCost = 0.55 + 2.19 = 2.74
	want := 0.5*8 + 0.5*(10-2.74/10)
	got := engine.Score(model, "debugging")
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestScoreAddsPreferenceBonus(t *testing.T) {
	engine := NewEngine(config.DefaultTables())
	sonnet := pricing.PriceEntry{Model: "anthropic/claude-sonnet-4-20250514", InputPerM: 3.0, OutputPerM: 15.0}

	base := 0.5*9 + 0.5*(10-18.0/10)
	got := engine.Score(sonnet, "debugging")
	if math.Abs(got-(base+0.8)) > 1e-9 {
		t.Errorf("Score = %v, want preferred %v", got, base+0.8)
	}
}

func TestSelectModelPinWins(t *testing.T) {
	engine := NewEngine(config.DefaultTables())

	selection := engine.SelectModel(fixtureModels(), "casual_chat", Constraints{})
	if selection == nil {
		t.Fatal("expected a selection")
	}
	if !selection.Pinned {
		t.Error("expected pinned selection")
	}
	if selection.Model.Model != "deepseek/deepseek-chat" {
		t.Errorf("selected %s, want pinned deepseek/deepseek-chat", selection.Model.Model)
	}
}

func TestSelectModelRelaxesWhenFiltersEliminateEverything(t *testing.T) {
	engine := NewEngine(config.DefaultTables())

	selection := engine.SelectModel(fixtureModels(), "debugging", Constraints{
		Providers: []string{"nonexistent"},
	})
	if selection == nil {
		t.Fatal("expected a relaxed selection, not nil")
	}
	if !selection.Relaxed {
		t.Error("expected Relaxed to be set")
	}
}

func TestSelectModelVisionRequirement(t *testing.T) {
	engine := NewEngine(config.DefaultTables())

	selection := engine.SelectModel(fixtureModels(), "vision", Constraints{})
	if selection == nil {
		t.Fatal("expected a selection")
	}
	if !selection.Model.Vision {
		t.Errorf("vision task selected non-vision model %s", selection.Model.Model)
	}
}

func TestSelectModelQualityFloor(t *testing.T) {
	engine := NewEngine(config.DefaultTables())

	// gemini-2.0-flash scores 5 on debugging, below the floor of 6.
	selection := engine.SelectModel(fixtureModels(), "debugging", Constraints{})
	if selection == nil {
		t.Fatal("expected a selection")
	}
	if selection.Model.Model == "google/gemini-2.0-flash" {
		t.Error("quality floor did not exclude gemini-2.0-flash")
	}
	if selection.Relaxed {
		t.Error("selection should not need relaxation")
	}
}

func TestSelectModelTieStability(t *testing.T) {
	tables := config.DefaultTables()
	engine := NewEngine(tables)

	// Identical pricing and no quality table entries: both score the
	// default 5 and tie. The earlier candidate must win.
	models := []pricing.PriceEntry{
		{Model: "deepseek/deepseek-chat", InputPerM: 1.0, OutputPerM: 1.0},
		{Model: "deepseek/deepseek-coder", InputPerM: 1.0, OutputPerM: 1.0},
	}
	selection := engine.SelectModel(models, "note_taking", Constraints{
		MinQuality: 1,
	})
	if selection == nil {
		t.Fatal("expected a selection")
	}
	if selection.Model.Model != "deepseek/deepseek-chat" {
		t.Errorf("tie broke to %s, want first candidate deepseek/deepseek-chat", selection.Model.Model)
	}
}

func TestSelectModelEmptyInput(t *testing.T) {
	engine := NewEngine(config.DefaultTables())
	if selection := engine.SelectModel(nil, "debugging", Constraints{}); selection != nil {
		t.Errorf("expected nil selection for empty input, got %+v", selection)
	}
}

func TestGenerateRecommendationsSortedByScore(t *testing.T) {
	engine := NewEngine(config.DefaultTables())

	recs := engine.GenerateRecommendations([]string{"debugging", "casual_chat", "web_search"}, fixtureModels())
	if len(recs) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Score > recs[i-1].Score {
			t.Errorf("recommendations out of order at %d: %v then %v", i, recs[i-1].Score, recs[i].Score)
		}
	}
	for _, r := range recs {
		if r.Reasoning == "" {
			t.Errorf("recommendation for %s has empty reasoning", r.TaskType)
		}
	}
}

func TestConstraintsWidenAllowList(t *testing.T) {
	engine := NewEngine(config.DefaultTables())

	models := []pricing.PriceEntry{
		{Model: "custom/not-on-the-list", InputPerM: 0.1, OutputPerM: 0.1},
	}
	selection := engine.SelectModel(models, "translation", Constraints{
		AllowedModels: []string{"custom/not-on-the-list"},
		MinQuality:    1,
	})
	if selection == nil {
		t.Fatal("expected widened allow-list to admit the model")
	}
	if selection.Relaxed {
		t.Error("widened allow-list should not need relaxation")
	}
}
