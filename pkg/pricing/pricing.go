// Package pricing retrieves and models provider pricing for candidate
// models. Each provider is fetched independently so one slow or failing
// provider never blocks the rest of the weekly run.
package pricing

// PriceEntry holds per-million-token pricing for one model.
type PriceEntry struct {
	Model              string  `json:"model"`
	InputPerM          float64 `json:"input_per_m"`
	OutputPerM         float64 `json:"output_per_m"`
	ContextWindow      int     `json:"context_window,omitempty"`
	Vision             bool    `json:"vision"`
	Cache              bool    `json:"cache"`
	CacheHitInputPerM  float64 `json:"cache_hit_input_per_m,omitempty"`
	CacheMissInputPerM float64 `json:"cache_miss_input_per_m,omitempty"`
	Free               bool    `json:"free,omitempty"`
}

// EffectiveInputCost blends cache-hit and cache-miss input pricing by the
// supplied hit probability when the model exposes cache pricing, otherwise
// it is the flat input price.
func (p PriceEntry) EffectiveInputCost(cacheHitProbability float64) float64 {
	if p.Free {
		return 0
	}
	if p.Cache && (p.CacheHitInputPerM > 0 || p.CacheMissInputPerM > 0) {
		if cacheHitProbability < 0 {
			cacheHitProbability = 0
		}
		if cacheHitProbability > 1 {
			cacheHitProbability = 1
		}
		return cacheHitProbability*p.CacheHitInputPerM + (1-cacheHitProbability)*p.CacheMissInputPerM
	}
	return p.InputPerM
}

// TotalCost is the effective input cost plus the output cost.
func (p PriceEntry) TotalCost(cacheHitProbability float64) float64 {
	if p.Free {
		return 0
	}
	return p.EffectiveInputCost(cacheHitProbability) + p.OutputPerM
}
