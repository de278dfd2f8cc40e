package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Provider fetches current pricing for one upstream provider.
type Provider interface {
	// Name returns the provider's identifier.
	Name() string

	// Fetch returns the provider's current price list.
	Fetch(ctx context.Context) ([]PriceEntry, error)
}

// StaticProvider serves a compiled-in price table. First-party providers
// publish pricing on pages that resist scraping, so their tables are pinned
// here and revised by hand when list prices move.
type StaticProvider struct {
	name    string
	entries []PriceEntry
}

// NewStaticProvider creates a provider serving a fixed price table.
func NewStaticProvider(name string, entries []PriceEntry) *StaticProvider {
	return &StaticProvider{name: name, entries: entries}
}

// Name returns the provider identifier.
func (s *StaticProvider) Name() string { return s.name }

// Fetch returns a copy of the static table.
func (s *StaticProvider) Fetch(_ context.Context) ([]PriceEntry, error) {
	entries := make([]PriceEntry, len(s.entries))
	copy(entries, s.entries)
	return entries, nil
}

// DefaultProviders returns the built-in provider set: static tables for the
// first-party providers plus the OpenRouter aggregator API.
func DefaultProviders() []Provider {
	return []Provider{
		NewStaticProvider("anthropic", []PriceEntry{
			{Model: "anthropic/claude-sonnet-4-20250514", InputPerM: 3.0, OutputPerM: 15.0, ContextWindow: 200000, Vision: true, Cache: true, CacheHitInputPerM: 0.30, CacheMissInputPerM: 3.75},
			{Model: "anthropic/claude-opus-4-20250514", InputPerM: 15.0, OutputPerM: 75.0, ContextWindow: 200000, Vision: true, Cache: true, CacheHitInputPerM: 1.50, CacheMissInputPerM: 18.75},
			{Model: "anthropic/claude-3-5-haiku", InputPerM: 0.80, OutputPerM: 4.0, ContextWindow: 200000, Vision: true, Cache: true, CacheHitInputPerM: 0.08, CacheMissInputPerM: 1.0},
		}),
		NewStaticProvider("openai", []PriceEntry{
			{Model: "openai/gpt-5.2-instant", InputPerM: 0.25, OutputPerM: 2.0, ContextWindow: 128000, Vision: true},
			{Model: "openai/gpt-5.2-thinking", InputPerM: 2.0, OutputPerM: 8.0, ContextWindow: 200000, Vision: true},
			{Model: "openai/gpt-5.2-codex", InputPerM: 1.5, OutputPerM: 6.0, ContextWindow: 200000},
			{Model: "openai/gpt-5.2-pro", InputPerM: 15.0, OutputPerM: 60.0, ContextWindow: 200000, Vision: true},
		}),
		NewStaticProvider("google", []PriceEntry{
			{Model: "google/gemini-2.0-pro", InputPerM: 1.25, OutputPerM: 10.0, ContextWindow: 1000000, Vision: true},
			{Model: "google/gemini-2.0-flash", InputPerM: 0.10, OutputPerM: 0.40, ContextWindow: 1000000, Vision: true},
		}),
		NewStaticProvider("deepseek", []PriceEntry{
			{Model: "deepseek/deepseek-chat", InputPerM: 0.27, OutputPerM: 1.10, ContextWindow: 64000, Cache: true, CacheHitInputPerM: 0.07, CacheMissInputPerM: 0.27},
			{Model: "deepseek/deepseek-coder", InputPerM: 0.27, OutputPerM: 1.10, ContextWindow: 64000, Cache: true, CacheHitInputPerM: 0.07, CacheMissInputPerM: 0.27},
			{Model: "deepseek/deepseek-reasoner", InputPerM: 0.55, OutputPerM: 2.19, ContextWindow: 64000, Cache: true, CacheHitInputPerM: 0.14, CacheMissInputPerM: 0.55},
		}),
		NewOpenRouterProvider(),
	}
}

// OpenRouterProvider fetches live pricing from the OpenRouter models API.
type OpenRouterProvider struct {
	baseURL    string
	httpClient *http.Client
}

// OpenRouterOption configures an OpenRouterProvider.
type OpenRouterOption func(*OpenRouterProvider)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		p.baseURL = url
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		p.httpClient = client
	}
}

// NewOpenRouterProvider creates a provider backed by the OpenRouter API.
func NewOpenRouterProvider(opts ...OpenRouterOption) *OpenRouterProvider {
	p := &OpenRouterProvider{
		baseURL: "https://openrouter.ai/api/v1",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *OpenRouterProvider) Name() string { return "openrouter" }

// openRouterModel mirrors the fields we consume from /models.
type openRouterModel struct {
	ID            string `json:"id"`
	ContextLength int    `json:"context_length"`
	Architecture  struct {
		InputModalities []string `json:"input_modalities"`
	} `json:"architecture"`
	Pricing struct {
		Prompt          string `json:"prompt"`
		Completion      string `json:"completion"`
		InputCacheRead  string `json:"input_cache_read"`
		InputCacheWrite string `json:"input_cache_write"`
	} `json:"pricing"`
}

type openRouterResponse struct {
	Data []openRouterModel `json:"data"`
}

// Fetch retrieves the model list and converts per-token prices to per-million.
func (p *OpenRouterProvider) Fetch(ctx context.Context) ([]PriceEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openrouter API error: status %d", resp.StatusCode)
	}

	var payload openRouterResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	entries := make([]PriceEntry, 0, len(payload.Data))
	for _, m := range payload.Data {
		prompt := perMillion(m.Pricing.Prompt)
		completion := perMillion(m.Pricing.Completion)
		cacheRead := perMillion(m.Pricing.InputCacheRead)
		cacheWrite := perMillion(m.Pricing.InputCacheWrite)

		entry := PriceEntry{
			Model:         m.ID,
			InputPerM:     prompt,
			OutputPerM:    completion,
			ContextWindow: m.ContextLength,
			Vision:        hasModality(m.Architecture.InputModalities, "image"),
			Free:          prompt == 0 && completion == 0,
		}
		if cacheRead > 0 || cacheWrite > 0 {
			entry.Cache = true
			entry.CacheHitInputPerM = cacheRead
			entry.CacheMissInputPerM = cacheWrite
			if entry.CacheMissInputPerM == 0 {
				entry.CacheMissInputPerM = prompt
			}
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// perMillion converts a per-token decimal string to a per-million price.
func perMillion(perToken string) float64 {
	if perToken == "" {
		return 0
	}
	v, err := strconv.ParseFloat(perToken, 64)
	if err != nil {
		return 0
	}
	return v * 1_000_000
}

func hasModality(modalities []string, want string) bool {
	for _, m := range modalities {
		if m == want {
			return true
		}
	}
	return false
}
