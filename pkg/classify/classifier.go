// Package classify resolves task phrases found in the routing document to
// canonical task types: local taxonomy matching first, an LLM classifier as
// fallback, with confident new types persisted into the taxonomy store.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/zen-systems/routekeeper/pkg/adapter"
)

const (
	// PersistThreshold is the classifier confidence above which a newly
	// discovered task type is written to the taxonomy store.
	PersistThreshold = 0.6

	cacheSize = 256
	cacheTTL  = 24 * time.Hour
)

// Classification is the external classifier's verdict for one phrase.
type Classification struct {
	TaskType   string  `json:"task_type"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category"`
	Reasoning  string  `json:"reason"`
}

// Classifier classifies task phrases through an LLM adapter, memoizing
// verdicts so identical phrases are classified once per TTL window.
type Classifier struct {
	adapter adapter.Adapter
	model   string
	cache   *expirable.LRU[string, Classification]
	logger  *zap.Logger
}

// NewClassifier creates a classifier using the given adapter and model.
func NewClassifier(a adapter.Adapter, model string, logger *zap.Logger) *Classifier {
	return &Classifier{
		adapter: a,
		model:   model,
		cache:   expirable.NewLRU[string, Classification](cacheSize, nil, cacheTTL),
		logger:  logger,
	}
}

// Classify asks the model to assign a canonical task type to a phrase.
func (c *Classifier) Classify(ctx context.Context, description string, knownTypes []string) (*Classification, error) {
	key := normalizePhrase(description)
	if cached, ok := c.cache.Get(key); ok {
		return &cached, nil
	}

	if c.adapter == nil {
		return nil, fmt.Errorf("no classifier adapter configured")
	}

	resp, err := c.adapter.Generate(ctx, c.model, buildClassifierPrompt(description, knownTypes))
	if err != nil {
		return nil, fmt.Errorf("classifier call failed: %w", err)
	}

	pick, err := parseClassifierResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("classifier response invalid: %w", err)
	}

	c.cache.Add(key, *pick)
	c.logger.Debug("phrase classified",
		zap.String("phrase", description),
		zap.String("task_type", pick.TaskType),
		zap.Float64("confidence", pick.Confidence))
	return pick, nil
}

func parseClassifierResponse(content string) (*Classification, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var pick Classification
	if err := json.Unmarshal([]byte(content), &pick); err != nil {
		return nil, err
	}
	if pick.TaskType == "" {
		return nil, fmt.Errorf("missing task_type")
	}
	if pick.Confidence < 0 || pick.Confidence > 1 {
		return nil, fmt.Errorf("confidence out of range")
	}
	return &pick, nil
}

func buildClassifierPrompt(description string, knownTypes []string) string {
	var sb strings.Builder
	sb.WriteString("You are a task taxonomy classifier for an AI model routing configuration.\n")
	sb.WriteString("Assign a canonical snake_case task type to the phrase below.\n")
	sb.WriteString("Return ONLY JSON: {\"task_type\":\"...\",\"confidence\":0-1,\"category\":\"...\",\"reason\":\"...\"}.\n\n")
	sb.WriteString("Phrase:\n")
	sb.WriteString(description)
	if len(knownTypes) > 0 {
		sb.WriteString("\n\nExisting task types (reuse one if it fits):\n")
		for _, t := range knownTypes {
			sb.WriteString("- ")
			sb.WriteString(t)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// normalizePhrase lowers and collapses whitespace for matching and caching.
func normalizePhrase(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}
