package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zen-systems/routekeeper/pkg/config"
	"github.com/zen-systems/routekeeper/pkg/routedoc"
)

// TaxonomyEntry is one discovered task type persisted across runs.
type TaxonomyEntry struct {
	ID          string    `json:"id"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description"`
	AddedAt     time.Time `json:"added_at"`
	Source      string    `json:"source"`
}

// Taxonomy persists discovered task types as a single JSON record.
type Taxonomy struct {
	path    string
	entries []TaxonomyEntry
}

// LoadTaxonomy reads the taxonomy store, starting empty if absent.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	t := &Taxonomy{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy store: %w", err)
	}
	if err := json.Unmarshal(data, &t.entries); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy store: %w", err)
	}
	return t, nil
}

// Known reports whether a task type id is already in the taxonomy.
func (t *Taxonomy) Known(id string) bool {
	for _, e := range t.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// MatchPhrase looks for a taxonomy entry whose description matches the
// phrase (normalized containment either way).
func (t *Taxonomy) MatchPhrase(phrase string) (string, bool) {
	needle := normalizePhrase(phrase)
	if needle == "" {
		return "", false
	}
	for _, e := range t.entries {
		known := normalizePhrase(e.Description)
		if known == "" {
			continue
		}
		if strings.Contains(needle, known) || strings.Contains(known, needle) {
			return e.ID, true
		}
	}
	return "", false
}

// Add appends an entry and persists the store.
func (t *Taxonomy) Add(entry TaxonomyEntry) error {
	t.entries = append(t.entries, entry)
	data, err := json.MarshalIndent(t.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(t.path, data, 0644)
}

// Entries returns a copy of the stored entries.
func (t *Taxonomy) Entries() []TaxonomyEntry {
	out := make([]TaxonomyEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// DiscoveryReport summarizes one discovery pass over the document.
type DiscoveryReport struct {
	TotalTasks      int      `json:"total_tasks"`
	KnownTasks      int      `json:"known_tasks"`
	UnknownTasks    int      `json:"unknown_tasks"`
	NewlyDiscovered []string `json:"newly_discovered,omitempty"`
}

// Discoverer extracts task phrases from the routing document and resolves
// them to task types: phrase table, then taxonomy, then the LLM classifier.
type Discoverer struct {
	tables     *config.Tables
	taxonomy   *Taxonomy
	classifier *Classifier
	logger     *zap.Logger
}

// NewDiscoverer wires a discoverer. classifier may be nil; unknown phrases
// then stay unknown instead of being classified.
func NewDiscoverer(tables *config.Tables, taxonomy *Taxonomy, classifier *Classifier, logger *zap.Logger) *Discoverer {
	return &Discoverer{
		tables:     tables,
		taxonomy:   taxonomy,
		classifier: classifier,
		logger:     logger,
	}
}

// DiscoverTaskTypes extracts candidate task phrases from the document's rule
// lines and resolves each one. Classifications above PersistThreshold with
// an unseen task type are persisted into the taxonomy store.
func (d *Discoverer) DiscoverTaskTypes(ctx context.Context, documentText string) (*DiscoveryReport, error) {
	doc := routedoc.Parse(documentText, d.tables.Phrases)
	report := &DiscoveryReport{}

	knownTypes := d.knownTypes()

	for _, section := range doc.Sections {
		for _, rule := range section.Rules {
			phrase := extractTaskPhrase(rule.Text)
			if phrase == "" {
				continue
			}
			report.TotalTasks++

			if len(rule.Matches) > 0 {
				report.KnownTasks++
				continue
			}
			if _, ok := d.taxonomy.MatchPhrase(phrase); ok {
				report.KnownTasks++
				continue
			}

			report.UnknownTasks++
			if d.classifier == nil {
				continue
			}

			pick, err := d.classifier.Classify(ctx, phrase, knownTypes)
			if err != nil {
				d.logger.Warn("task phrase classification failed",
					zap.String("phrase", phrase), zap.Error(err))
				continue
			}
			if pick.Confidence <= PersistThreshold || d.taxonomy.Known(pick.TaskType) {
				continue
			}

			entry := TaxonomyEntry{
				ID:          pick.TaskType,
				Category:    pick.Category,
				Description: phrase,
				AddedAt:     time.Now().UTC(),
				Source:      "classifier",
			}
			if err := d.taxonomy.Add(entry); err != nil {
				return nil, fmt.Errorf("failed to persist discovered task type: %w", err)
			}
			report.NewlyDiscovered = append(report.NewlyDiscovered, pick.TaskType)
			knownTypes = append(knownTypes, pick.TaskType)
			d.logger.Info("new task type discovered",
				zap.String("task_type", pick.TaskType),
				zap.Float64("confidence", pick.Confidence))
		}
	}

	return report, nil
}

func (d *Discoverer) knownTypes() []string {
	seen := make(map[string]bool)
	var types []string
	for _, p := range d.tables.Phrases {
		if !seen[p.TaskType] {
			seen[p.TaskType] = true
			types = append(types, p.TaskType)
		}
	}
	for _, e := range d.taxonomy.Entries() {
		if !seen[e.ID] {
			seen[e.ID] = true
			types = append(types, e.ID)
		}
	}
	return types
}

// extractTaskPhrase pulls the task description out of a bullet rule line:
// the text between the bullet marker and the first delimiter.
func extractTaskPhrase(line string) string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, routedoc.BulletMarker) {
		return ""
	}
	rest := strings.TrimPrefix(trimmed, routedoc.BulletMarker)
	for _, delim := range []string{":", "→", "->"} {
		if idx := strings.Index(rest, delim); idx >= 0 {
			return strings.TrimSpace(rest[:idx])
		}
	}
	return strings.TrimSpace(rest)
}
