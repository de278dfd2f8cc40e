package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTablesInvariants(t *testing.T) {
	tables := DefaultTables()

	if len(tables.Phrases) == 0 {
		t.Fatal("no default phrases")
	}
	if tables.MinQuality != 6 {
		t.Errorf("MinQuality = %d, want 6", tables.MinQuality)
	}

	// Every quality table entry and every pin must be on the allow-list.
	for taskType, scores := range tables.Quality {
		for model := range scores {
			if !tables.IsAllowed(model) {
				t.Errorf("%s quality entry %s is not allow-listed", taskType, model)
			}
		}
	}
	for taskType, model := range tables.Pins {
		if !tables.IsAllowed(model) {
			t.Errorf("pin for %s (%s) is not allow-listed", taskType, model)
		}
	}

	// Every allow-listed model should carry a display label.
	for _, model := range tables.AllowedModels {
		if tables.Label(model) == model {
			t.Errorf("model %s has no display label", model)
		}
	}
}

func TestSortedPhrasesLongestFirst(t *testing.T) {
	tables := DefaultTables()
	sorted := tables.SortedPhrases()

	for i := 1; i < len(sorted); i++ {
		if len(sorted[i].Description) > len(sorted[i-1].Description) {
			t.Fatalf("phrases not sorted longest-first at %d: %q after %q",
				i, sorted[i].Description, sorted[i-1].Description)
		}
	}

	// "Complex debugging" must come before "Debugging".
	complexIdx, debugIdx := -1, -1
	for i, p := range sorted {
		switch p.TaskType {
		case "complex_debugging":
			complexIdx = i
		case "debugging":
			debugIdx = i
		}
	}
	if complexIdx < 0 || debugIdx < 0 || complexIdx > debugIdx {
		t.Errorf("phrase order: complex_debugging at %d, debugging at %d", complexIdx, debugIdx)
	}
}

func TestQualityScoreDefault(t *testing.T) {
	tables := DefaultTables()
	if got := tables.QualityScore("debugging", "anthropic/claude-sonnet-4-20250514"); got != 9 {
		t.Errorf("known score = %d, want 9", got)
	}
	if got := tables.QualityScore("debugging", "unknown/model"); got != 5 {
		t.Errorf("unknown model score = %d, want 5", got)
	}
	if got := tables.QualityScore("unknown_task", "anthropic/claude-sonnet-4-20250514"); got != 5 {
		t.Errorf("unknown task score = %d, want 5", got)
	}
}

func TestPinAndLabel(t *testing.T) {
	tables := DefaultTables()

	pin, ok := tables.Pin("casual_chat")
	if !ok || pin != "deepseek/deepseek-chat" {
		t.Errorf("Pin(casual_chat) = (%q, %v)", pin, ok)
	}
	if _, ok := tables.Pin("debugging"); ok {
		t.Error("debugging should not be pinned")
	}

	if got := tables.Label("deepseek/deepseek-reasoner"); got != "DeepSeek Reasoner" {
		t.Errorf("Label = %q", got)
	}
	if got := tables.Label("unlabeled/model"); got != "unlabeled/model" {
		t.Errorf("Label fallback = %q", got)
	}
}

func TestLoadTablesFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	partial := `
min_quality: 8
pins:
  debugging: anthropic/claude-opus-4-20250514
`
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	tables, err := LoadTables(path)
	if err != nil {
		t.Fatalf("LoadTables: %v", err)
	}
	if tables.MinQuality != 8 {
		t.Errorf("MinQuality = %d, want 8", tables.MinQuality)
	}
	if pin, ok := tables.Pin("debugging"); !ok || pin != "anthropic/claude-opus-4-20250514" {
		t.Errorf("Pin override lost: (%q, %v)", pin, ok)
	}
	if len(tables.Phrases) == 0 {
		t.Error("phrases should fall back to defaults")
	}
	if len(tables.AllowedModels) == 0 {
		t.Error("allow-list should fall back to defaults")
	}
}

func TestIsVisionTask(t *testing.T) {
	tables := DefaultTables()
	if !tables.IsVisionTask("vision") {
		t.Error("vision task not recognized")
	}
	if tables.IsVisionTask("debugging") {
		t.Error("debugging is not a vision task")
	}
}
