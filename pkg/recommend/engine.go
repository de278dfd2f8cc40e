// Package recommend selects the best model per task type by scalarizing
// quality and cost into a single score. Deliberately a linear blend, not a
// Pareto search: the weekly report has to be explainable to the operator.
package recommend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zen-systems/routekeeper/pkg/config"
	"github.com/zen-systems/routekeeper/pkg/pricing"
)

const (
	defaultQualityWeight       = 0.5
	defaultCacheHitProbability = 0.5
	preferenceBonus            = 0.8
)

// Recommendation is one task type's suggested model.
type Recommendation struct {
	TaskType         string  `json:"task_type"`
	RecommendedModel string  `json:"recommended_model"`
	Score            float64 `json:"score"`
	Quality          int     `json:"quality"`
	TotalCost        float64 `json:"total_cost"`
	Reasoning        string  `json:"reasoning"`
}

// Selection is the outcome of SelectModel for one task type.
type Selection struct {
	Model     pricing.PriceEntry
	Score     float64
	Quality   int
	TotalCost float64
	Pinned    bool
	Relaxed   bool
}

// Constraints narrow the candidate set. Zero values fall back to the tables'
// defaults; AllowedModels widens or replaces the default allow-list.
type Constraints struct {
	MinQuality    int
	MaxCost       float64
	Providers     []string
	AllowedModels []string
}

// Engine scores and selects models against the routing tables.
type Engine struct {
	tables              *config.Tables
	qualityWeight       float64
	cacheHitProbability float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithQualityWeight sets the quality share of the score (0..1).
func WithQualityWeight(w float64) Option {
	return func(e *Engine) {
		e.qualityWeight = w
	}
}

// WithCacheHitProbability sets the assumed prompt-cache hit rate.
func WithCacheHitProbability(p float64) Option {
	return func(e *Engine) {
		e.cacheHitProbability = p
	}
}

// NewEngine creates an Engine over the given tables.
func NewEngine(tables *config.Tables, opts ...Option) *Engine {
	e := &Engine{
		tables:              tables,
		qualityWeight:       defaultQualityWeight,
		cacheHitProbability: defaultCacheHitProbability,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score computes the linear blend for one model on one task type:
// qualityWeight*quality + (1-qualityWeight)*costScore + preference bonus.
// costScore is max(0, 10 - totalCost/10) so cheaper models score higher.
func (e *Engine) Score(model pricing.PriceEntry, taskType string) float64 {
	quality := float64(e.tables.QualityScore(taskType, model.Model))
	totalCost := model.TotalCost(e.cacheHitProbability)

	costScore := 10 - totalCost/10
	if costScore < 0 {
		costScore = 0
	}

	score := e.qualityWeight*quality + (1-e.qualityWeight)*costScore
	if e.tables.IsPreferred(taskType, model.Model) {
		score += preferenceBonus
	}
	return score
}

// SelectModel filters candidates by allow-list, vision requirement, quality
// floor, cost ceiling, and provider list, then ranks them. If filtering
// leaves nothing, the full unfiltered list is ranked instead — the
// recommendation degrades, it never silently disappears. A configured pin
// present among the considered candidates wins outright.
func (e *Engine) SelectModel(models []pricing.PriceEntry, taskType string, constraints Constraints) *Selection {
	if len(models) == 0 {
		return nil
	}

	candidates := e.filter(models, taskType, constraints)
	relaxed := false
	if len(candidates) == 0 {
		candidates = models
		relaxed = true
	}

	if pin, ok := e.tables.Pin(taskType); ok {
		for _, model := range candidates {
			if model.Model == pin {
				return &Selection{
					Model:     model,
					Score:     e.Score(model, taskType),
					Quality:   e.tables.QualityScore(taskType, model.Model),
					TotalCost: model.TotalCost(e.cacheHitProbability),
					Pinned:    true,
					Relaxed:   relaxed,
				}
			}
		}
	}

	best := -1
	bestScore := 0.0
	for i, model := range candidates {
		score := e.Score(model, taskType)
		if best < 0 || score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best < 0 {
		return nil
	}

	chosen := candidates[best]
	return &Selection{
		Model:     chosen,
		Score:     bestScore,
		Quality:   e.tables.QualityScore(taskType, chosen.Model),
		TotalCost: chosen.TotalCost(e.cacheHitProbability),
		Relaxed:   relaxed,
	}
}

func (e *Engine) filter(models []pricing.PriceEntry, taskType string, constraints Constraints) []pricing.PriceEntry {
	minQuality := constraints.MinQuality
	if minQuality == 0 {
		minQuality = e.tables.MinQuality
	}
	maxCost := constraints.MaxCost
	if maxCost == 0 {
		maxCost = e.tables.MaxCost
	}
	providers := constraints.Providers
	if len(providers) == 0 {
		providers = e.tables.Providers
	}
	needsVision := e.tables.IsVisionTask(taskType)

	var out []pricing.PriceEntry
	for _, model := range models {
		if !e.allowed(model.Model, constraints.AllowedModels) {
			continue
		}
		if needsVision && !model.Vision {
			continue
		}
		if e.tables.QualityScore(taskType, model.Model) < minQuality {
			continue
		}
		if maxCost > 0 && model.TotalCost(e.cacheHitProbability) > maxCost {
			continue
		}
		if len(providers) > 0 && !containsString(providers, providerOf(model.Model)) {
			continue
		}
		out = append(out, model)
	}
	return out
}

func (e *Engine) allowed(model string, widened []string) bool {
	if len(widened) > 0 {
		return containsString(widened, model)
	}
	return e.tables.IsAllowed(model)
}

// GenerateRecommendations runs SelectModel once per task type appearing in
// the document and returns the results sorted by descending score.
func (e *Engine) GenerateRecommendations(taskTypes []string, models []pricing.PriceEntry) []Recommendation {
	recs := make([]Recommendation, 0, len(taskTypes))
	for _, taskType := range taskTypes {
		selection := e.SelectModel(models, taskType, Constraints{})
		if selection == nil {
			continue
		}
		recs = append(recs, Recommendation{
			TaskType:         taskType,
			RecommendedModel: selection.Model.Model,
			Score:            selection.Score,
			Quality:          selection.Quality,
			TotalCost:        selection.TotalCost,
			Reasoning:        reasoning(selection),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})
	return recs
}

func reasoning(s *Selection) string {
	parts := []string{
		fmt.Sprintf("quality %d/10", s.Quality),
		fmt.Sprintf("est. $%.2f per 1M in+out tokens", s.TotalCost),
	}
	if s.Pinned {
		parts = append(parts, "pinned for this task type")
	}
	if s.Relaxed {
		parts = append(parts, "constraints relaxed: no candidate passed the filters")
	}
	return strings.Join(parts, ", ")
}

func providerOf(model string) string {
	if idx := strings.IndexByte(model, '/'); idx > 0 {
		return model[:idx]
	}
	return ""
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
