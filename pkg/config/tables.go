package config

import (
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Phrase maps a human phrase found in the routing document to a canonical
// task type identifier.
type Phrase struct {
	Description string `yaml:"description"`
	TaskType    string `yaml:"task_type"`
}

// Tables holds the immutable routing tables: the phrase table used to
// recognize task types inside rule lines, the hand-authored quality scores,
// model pins and preferences, the candidate allow-list, and display labels.
// Tables are loaded once at startup and passed explicitly into the engines.
type Tables struct {
	Phrases       []Phrase                  `yaml:"phrases"`
	Quality       map[string]map[string]int `yaml:"quality"`
	Preferences   map[string][]string       `yaml:"preferences"`
	Pins          map[string]string         `yaml:"pins"`
	AllowedModels []string                  `yaml:"allowed_models"`
	VisionTasks   []string                  `yaml:"vision_tasks"`
	Labels        map[string]string         `yaml:"labels"`
	MinQuality    int                       `yaml:"min_quality"`
	MaxCost       float64                   `yaml:"max_cost,omitempty"`
	Providers     []string                  `yaml:"providers,omitempty"`
}

// LoadTables reads routing tables from a YAML file. Empty sections fall back
// to the compiled-in defaults.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tables Tables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, err
	}

	applyTableDefaults(&tables)
	return &tables, nil
}

// DefaultTables returns the compiled-in routing tables.
func DefaultTables() *Tables {
	tables := rawDefaultTables()
	applyTableDefaults(tables)
	return tables
}

// rawDefaultTables builds the default table literal. applyTableDefaults uses
// it to fill holes in a partially specified tables.yaml.
func rawDefaultTables() *Tables {
	return &Tables{
		Phrases: []Phrase{
			{Description: "Complex debugging", TaskType: "complex_debugging"},
			{Description: "Debugging", TaskType: "debugging"},
			{Description: "Casual chat", TaskType: "casual_chat"},
			{Description: "Web search", TaskType: "web_search"},
			{Description: "Summarization", TaskType: "summarization"},
			{Description: "Vision tasks", TaskType: "vision"},
			{Description: "Image analysis", TaskType: "vision"},
			{Description: "Code review", TaskType: "code_review"},
			{Description: "Code changes", TaskType: "code_changes"},
			{Description: "cheap/simple edits use", TaskType: "cheap_file_edit"},
			{Description: "higher risk edits use", TaskType: "high_risk_file_edit"},
			{Description: "Creative writing", TaskType: "creative_writing"},
			{Description: "Translation", TaskType: "translation"},
			{Description: "Architecture review", TaskType: "architecture_review"},
		},
		Quality: map[string]map[string]int{
			"debugging": {
				"anthropic/claude-sonnet-4-20250514": 9,
				"anthropic/claude-opus-4-20250514":   9,
				"deepseek/deepseek-reasoner":         8,
				"openai/gpt-5.2-thinking":            8,
				"deepseek/deepseek-chat":             6,
				"google/gemini-2.0-flash":            5,
			},
			"complex_debugging": {
				"anthropic/claude-opus-4-20250514":   10,
				"anthropic/claude-sonnet-4-20250514": 8,
				"deepseek/deepseek-reasoner":         8,
				"openai/gpt-5.2-pro":                 8,
			},
			"casual_chat": {
				"deepseek/deepseek-chat":     8,
				"google/gemini-2.0-flash":    8,
				"openai/gpt-5.2-instant":     7,
				"anthropic/claude-3-5-haiku": 7,
			},
			"web_search": {
				"google/gemini-2.0-pro":   9,
				"google/gemini-2.0-flash": 7,
				"openai/gpt-5.2-thinking": 6,
			},
			"summarization": {
				"google/gemini-2.0-flash":    8,
				"deepseek/deepseek-chat":     7,
				"openai/gpt-5.2-instant":     7,
				"anthropic/claude-3-5-haiku": 7,
			},
			"vision": {
				"google/gemini-2.0-pro":              9,
				"openai/gpt-5.2-pro":                 8,
				"anthropic/claude-sonnet-4-20250514": 7,
			},
			"code_review": {
				"anthropic/claude-opus-4-20250514":   9,
				"anthropic/claude-sonnet-4-20250514": 9,
				"openai/gpt-5.2-codex":               8,
				"deepseek/deepseek-coder":            6,
			},
			"code_changes": {
				"anthropic/claude-sonnet-4-20250514": 9,
				"openai/gpt-5.2-codex":               8,
				"deepseek/deepseek-coder":            7,
			},
			"cheap_file_edit": {
				"deepseek/deepseek-coder":    8,
				"deepseek/deepseek-chat":     7,
				"openai/gpt-5.2-instant":     6,
				"anthropic/claude-3-5-haiku": 6,
			},
			"high_risk_file_edit": {
				"anthropic/claude-opus-4-20250514":   9,
				"anthropic/claude-sonnet-4-20250514": 9,
				"openai/gpt-5.2-codex":               7,
			},
			"creative_writing": {
				"anthropic/claude-opus-4-20250514":   9,
				"anthropic/claude-sonnet-4-20250514": 8,
				"openai/gpt-5.2-thinking":            7,
			},
			"translation": {
				"google/gemini-2.0-pro":   8,
				"deepseek/deepseek-chat":  7,
				"openai/gpt-5.2-instant":  6,
			},
			"architecture_review": {
				"anthropic/claude-opus-4-20250514": 10,
				"openai/gpt-5.2-pro":               8,
				"deepseek/deepseek-reasoner":       7,
			},
		},
		Preferences: map[string][]string{
			"debugging":           {"anthropic/claude-sonnet-4-20250514"},
			"complex_debugging":   {"anthropic/claude-opus-4-20250514"},
			"casual_chat":         {"deepseek/deepseek-chat"},
			"cheap_file_edit":     {"deepseek/deepseek-coder"},
			"high_risk_file_edit": {"anthropic/claude-sonnet-4-20250514"},
			"web_search":          {"google/gemini-2.0-pro"},
		},
		Pins: map[string]string{
			"casual_chat": "deepseek/deepseek-chat",
		},
		AllowedModels: []string{
			"anthropic/claude-sonnet-4-20250514",
			"anthropic/claude-opus-4-20250514",
			"anthropic/claude-3-5-haiku",
			"openai/gpt-5.2-instant",
			"openai/gpt-5.2-thinking",
			"openai/gpt-5.2-codex",
			"openai/gpt-5.2-pro",
			"google/gemini-2.0-pro",
			"google/gemini-2.0-flash",
			"deepseek/deepseek-chat",
			"deepseek/deepseek-coder",
			"deepseek/deepseek-reasoner",
		},
		VisionTasks: []string{"vision"},
		Labels: map[string]string{
			"anthropic/claude-sonnet-4-20250514": "Claude Sonnet 4",
			"anthropic/claude-opus-4-20250514":   "Claude Opus 4",
			"anthropic/claude-3-5-haiku":         "Claude Haiku",
			"openai/gpt-5.2-instant":             "GPT-5.2 Instant",
			"openai/gpt-5.2-thinking":            "GPT-5.2 Thinking",
			"openai/gpt-5.2-codex":               "GPT-5.2 Codex",
			"openai/gpt-5.2-pro":                 "GPT-5.2 Pro",
			"google/gemini-2.0-pro":              "Gemini 2.0 Pro",
			"google/gemini-2.0-flash":            "Gemini 2.0 Flash",
			"deepseek/deepseek-chat":             "DeepSeek Chat",
			"deepseek/deepseek-coder":            "DeepSeek Coder",
			"deepseek/deepseek-reasoner":         "DeepSeek Reasoner",
		},
		MinQuality: 6,
	}
}

func applyTableDefaults(t *Tables) {
	if t == nil {
		return
	}
	defaults := rawDefaultTables()
	if len(t.Phrases) == 0 {
		t.Phrases = defaults.Phrases
	}
	if len(t.Quality) == 0 {
		t.Quality = defaults.Quality
	}
	if len(t.AllowedModels) == 0 {
		t.AllowedModels = defaults.AllowedModels
	}
	if len(t.VisionTasks) == 0 {
		t.VisionTasks = defaults.VisionTasks
	}
	if len(t.Labels) == 0 {
		t.Labels = defaults.Labels
	}
	if t.Preferences == nil {
		t.Preferences = make(map[string][]string)
	}
	if t.Pins == nil {
		t.Pins = make(map[string]string)
	}
	if t.MinQuality == 0 {
		t.MinQuality = 6
	}
}

// SortedPhrases returns the phrase table ordered by descending description
// length, so a longer phrase is never shadowed by a shorter one it contains.
func (t *Tables) SortedPhrases() []Phrase {
	phrases := make([]Phrase, len(t.Phrases))
	copy(phrases, t.Phrases)
	sort.SliceStable(phrases, func(i, j int) bool {
		return len(phrases[i].Description) > len(phrases[j].Description)
	})
	return phrases
}

// QualityScore returns the 1-10 quality score for a model on a task type,
// defaulting to 5 when the table has no entry.
func (t *Tables) QualityScore(taskType, model string) int {
	if scores, ok := t.Quality[taskType]; ok {
		if q, ok := scores[model]; ok {
			return q
		}
	}
	return 5
}

// IsPreferred reports whether a model is on the task type's preference list.
func (t *Tables) IsPreferred(taskType, model string) bool {
	for _, m := range t.Preferences[taskType] {
		if m == model {
			return true
		}
	}
	return false
}

// Pin returns the hard-pinned model for a task type, if any.
func (t *Tables) Pin(taskType string) (string, bool) {
	model, ok := t.Pins[taskType]
	return model, ok && model != ""
}

// IsAllowed reports whether a model id is on the candidate allow-list.
func (t *Tables) IsAllowed(model string) bool {
	for _, m := range t.AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}

// IsVisionTask reports whether the task type requires vision capability.
func (t *Tables) IsVisionTask(taskType string) bool {
	for _, tt := range t.VisionTasks {
		if tt == taskType {
			return true
		}
	}
	return false
}

// Label returns the display label for a model id, falling back to the id.
func (t *Tables) Label(model string) string {
	if label, ok := t.Labels[model]; ok && label != "" {
		return label
	}
	return model
}
