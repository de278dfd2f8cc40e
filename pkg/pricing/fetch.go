package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultProviderTimeout = 20 * time.Second
	defaultMaxParallel     = 4
)

// Fetcher retrieves pricing from all providers concurrently, each fetch
// individually time-boxed and isolated: a provider failure degrades to an
// empty list for that provider only. An all-providers-empty outcome is the
// sole hard error.
type Fetcher struct {
	providers   []Provider
	cache       *Cache
	timeout     time.Duration
	maxParallel int
	logger      *zap.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithProviderTimeout sets the per-provider time box.
func WithProviderTimeout(timeout time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = timeout
	}
}

// WithMaxParallel caps concurrent provider fetches.
func WithMaxParallel(max int) FetcherOption {
	return func(f *Fetcher) {
		f.maxParallel = max
	}
}

// WithCache attaches a TTL cache; nil disables caching.
func WithCache(cache *Cache) FetcherOption {
	return func(f *Fetcher) {
		f.cache = cache
	}
}

// NewFetcher creates a Fetcher over the given providers.
func NewFetcher(providers []Provider, logger *zap.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		providers:   providers,
		timeout:     defaultProviderTimeout,
		maxParallel: defaultMaxParallel,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll returns the price lists keyed by provider name. A fresh cache
// record short-circuits a provider's fetch; a failed fetch falls back to an
// expired cache record when one exists, and to an empty list otherwise.
func (f *Fetcher) FetchAll(ctx context.Context) (map[string][]PriceEntry, error) {
	results := make(map[string][]PriceEntry, len(f.providers))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxParallel)

	for _, provider := range f.providers {
		provider := provider
		g.Go(func() error {
			entries := f.fetchOne(ctx, provider)
			mu.Lock()
			results[provider.Name()] = entries
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, entries := range results {
		total += len(entries)
	}
	if total == 0 {
		return nil, fmt.Errorf("all %d pricing providers returned zero models", len(f.providers))
	}

	return results, nil
}

// fetchOne resolves one provider: cache, then live fetch, then stale cache.
func (f *Fetcher) fetchOne(ctx context.Context, provider Provider) []PriceEntry {
	name := provider.Name()

	var stale []PriceEntry
	if f.cache != nil {
		if cached, fresh, ok := f.cache.Get(name); ok {
			if fresh {
				f.logger.Debug("pricing cache hit", zap.String("provider", name), zap.Int("models", len(cached)))
				return cached
			}
			stale = cached
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	entries, err := provider.Fetch(fetchCtx)
	if err != nil {
		if len(stale) > 0 {
			f.logger.Warn("pricing fetch failed, using expired cache",
				zap.String("provider", name), zap.Int("models", len(stale)), zap.Error(err))
			return stale
		}
		f.logger.Warn("pricing fetch failed, provider degraded to empty",
			zap.String("provider", name), zap.Error(err))
		return nil
	}

	if f.cache != nil {
		if err := f.cache.Put(name, entries); err != nil {
			f.logger.Warn("pricing cache write failed", zap.String("provider", name), zap.Error(err))
		}
	}

	f.logger.Debug("pricing fetched", zap.String("provider", name), zap.Int("models", len(entries)))
	return entries
}

// Flatten merges per-provider lists into one slice, preserving provider
// name order as given to the fetcher and de-duplicating on model id (first
// provider wins).
func Flatten(byProvider map[string][]PriceEntry, providerOrder []string) []PriceEntry {
	seen := make(map[string]bool)
	var all []PriceEntry
	for _, name := range providerOrder {
		for _, entry := range byProvider[name] {
			if seen[entry.Model] {
				continue
			}
			seen[entry.Model] = true
			all = append(all, entry)
		}
	}
	return all
}

// ProviderNames returns the names of the given providers in order.
func ProviderNames(providers []Provider) []string {
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	return names
}
