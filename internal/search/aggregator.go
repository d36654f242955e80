package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spotlaunch/launcherd/internal/logging"
	"github.com/spotlaunch/launcherd/internal/plugin"
	"github.com/spotlaunch/launcherd/internal/types"
)

// Options tunes the aggregator.
type Options struct {
	// CorpusTimeout bounds each plugin's heavy search call during a rebuild.
	CorpusTimeout time.Duration

	// BrowseLimit caps the number of items returned for an empty query.
	BrowseLimit int
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{CorpusTimeout: 5 * time.Second, BrowseLimit: 20}
}

// Aggregator fans search calls out across the plugin catalog and ranks the
// merged results. The corpus is rebuilt wholesale and served from cache
// between rebuilds; the instant path queries plugins synchronously on every
// call.
type Aggregator struct {
	registry *plugin.Registry
	opts     Options
	log      *logging.Logger

	mu     sync.RWMutex
	corpus []types.SearchResultItem
	rules  map[string][]types.MatchRule
	built  time.Time
}

// NewAggregator creates an aggregator over the given catalog.
func NewAggregator(registry *plugin.Registry, opts Options, log *logging.Logger) *Aggregator {
	if opts.CorpusTimeout <= 0 {
		opts.CorpusTimeout = DefaultOptions().CorpusTimeout
	}
	if opts.BrowseLimit <= 0 {
		opts.BrowseLimit = DefaultOptions().BrowseLimit
	}
	return &Aggregator{
		registry: registry,
		opts:     opts,
		log:      log.Component("search"),
		rules:    make(map[string][]types.MatchRule),
	}
}

// RefreshCorpus rebuilds the cached corpus by fanning out to every searchable
// plugin in parallel. Each plugin gets its own timeout so one slow or broken
// plugin cannot stall the rebuild or poison the others' contributions.
func (a *Aggregator) RefreshCorpus(ctx context.Context) error {
	start := time.Now()
	plugins := a.registry.GetAll()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		items   []types.SearchResultItem
		rules   = make(map[string][]types.MatchRule)
		failed  int
		skipped int
	)

	for _, p := range plugins {
		m := p.Manifest()
		if !p.IsSupported() || !m.Searchable() {
			skipped++
			continue
		}
		if len(m.MatchRules) > 0 {
			rules[m.ID] = m.MatchRules
		}

		wg.Add(1)
		go func(p plugin.Plugin, id string) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, a.opts.CorpusTimeout)
			defer cancel()

			contributed, err := p.SearchItems(pctx)
			if err != nil {
				a.log.Warn("corpus contribution failed",
					zap.String("plugin_id", id),
					zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			for i := range contributed {
				if contributed[i].PluginID == "" {
					contributed[i].PluginID = id
				}
			}
			mu.Lock()
			items = append(items, contributed...)
			mu.Unlock()
		}(p, m.ID)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	// Stable order so repeated rebuilds of the same catalog serve the same
	// browse listing.
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].PluginID != items[j].PluginID {
			return items[i].PluginID < items[j].PluginID
		}
		return items[i].ID < items[j].ID
	})

	a.mu.Lock()
	a.corpus = items
	a.rules = rules
	a.built = time.Now()
	a.mu.Unlock()

	a.log.Info("corpus rebuilt",
		zap.Int("items", len(items)),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Corpus returns a snapshot of the cached corpus.
func (a *Aggregator) Corpus() []types.SearchResultItem {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]types.SearchResultItem, len(a.corpus))
	copy(out, a.corpus)
	return out
}

// CorpusBuiltAt reports when the cache was last rebuilt. Zero means never.
func (a *Aggregator) CorpusBuiltAt() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.built
}

// Search ranks the cached corpus against the query. Items that do not match
// at all are excluded; results come back ordered best-first.
func (a *Aggregator) Search(query string) []types.SearchResult {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	a.mu.RLock()
	corpus := a.corpus
	rules := a.rules
	a.mu.RUnlock()

	results := make([]types.SearchResult, 0, 16)
	for i := range corpus {
		item := &corpus[i]
		s := scoreItem(query, item, rules[item.PluginID])
		if s.score <= 0 {
			continue
		}
		results = append(results, types.SearchResult{
			Item:        *item,
			Score:       s.score,
			MatchType:   s.matchType,
			MatchedRule: s.matchedRule,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return matchPriority[results[i].MatchType] > matchPriority[results[j].MatchType]
	})
	return results
}

// InstantSearch queries every instant-capable plugin synchronously and ranks
// the merged items. Only plugins that declare the instant capability are
// consulted.
func (a *Aggregator) InstantSearch(query string) []types.InstantSearchResult {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	results := make([]types.InstantSearchResult, 0, 8)
	for _, p := range a.registry.GetAll() {
		inst, ok := p.(plugin.InstantSearcher)
		if !ok {
			continue
		}
		m := p.Manifest()
		if !p.IsSupported() || !m.Searchable() {
			continue
		}

		contributed := inst.InstantSearchItems(query)
		for i := range contributed.Items {
			item := &contributed.Items[i]
			if item.PluginID == "" {
				item.PluginID = m.ID
			}
			s := scoreInstantItem(query, item)
			results = append(results, types.InstantSearchResult{
				Item:      *item,
				Score:     s.score,
				MatchType: s.matchType,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return matchPriority[results[i].MatchType] > matchPriority[results[j].MatchType]
	})
	return results
}

// Combined serves the UI's one-call search path. An empty query switches to
// browse mode: a capped, unscored slice of the corpus for idle display.
func (a *Aggregator) Combined(query string) types.CombinedResults {
	if strings.TrimSpace(query) == "" {
		return types.CombinedResults{Query: query, Corpus: a.browse()}
	}
	return types.CombinedResults{
		Query:   query,
		Instant: a.InstantSearch(query),
		Corpus:  a.Search(query),
	}
}

// browse returns the head of the corpus with zero scores.
func (a *Aggregator) browse() []types.SearchResult {
	a.mu.RLock()
	defer a.mu.RUnlock()

	limit := a.opts.BrowseLimit
	if limit > len(a.corpus) {
		limit = len(a.corpus)
	}
	out := make([]types.SearchResult, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, types.SearchResult{
			Item:      a.corpus[i],
			MatchType: types.MatchNone,
		})
	}
	return out
}
