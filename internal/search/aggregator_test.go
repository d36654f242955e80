package search

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotlaunch/launcherd/internal/logging"
	"github.com/spotlaunch/launcherd/internal/plugin"
	"github.com/spotlaunch/launcherd/internal/types"
)

type stubPlugin struct {
	manifest  types.Manifest
	supported bool
	items     []types.SearchResultItem
	err       error
	delay     time.Duration

	instant *types.InstantSearchResultItems
}

func (s *stubPlugin) Manifest() *types.Manifest { return &s.manifest }
func (s *stubPlugin) IsSupported() bool         { return s.supported }
func (s *stubPlugin) SearchItems(ctx context.Context) ([]types.SearchResultItem, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.items, s.err
}

type stubInstant struct {
	*stubPlugin
}

func (s stubInstant) InstantSearchItems(term string) types.InstantSearchResultItems {
	if s.instant == nil {
		return types.InstantSearchResultItems{}
	}
	return *s.instant
}

func newTestAggregator(t *testing.T, plugins ...plugin.Plugin) *Aggregator {
	t.Helper()
	reg := plugin.NewRegistry(t.TempDir(), nil, logging.NewNop())
	for _, p := range plugins {
		require.NoError(t, reg.RegisterNative(p))
	}
	t.Cleanup(reg.Close)
	return NewAggregator(reg, DefaultOptions(), logging.NewNop())
}

func corpusItem(id, name, pluginID string) types.SearchResultItem {
	return types.SearchResultItem{ID: id, Name: name, PluginID: pluginID}
}

func TestRefreshCorpusCollectsAllPlugins(t *testing.T) {
	a := newTestAggregator(t,
		&stubPlugin{
			manifest:  types.Manifest{ID: "a", Name: "A"},
			supported: true,
			items:     []types.SearchResultItem{corpusItem("a1", "Apple", "a")},
		},
		&stubPlugin{
			manifest:  types.Manifest{ID: "b", Name: "B"},
			supported: true,
			items:     []types.SearchResultItem{corpusItem("b1", "Banana", "b")},
		},
	)

	require.NoError(t, a.RefreshCorpus(context.Background()))
	assert.Len(t, a.Corpus(), 2)
	assert.False(t, a.CorpusBuiltAt().IsZero())
}

func TestRefreshCorpusIsolatesFailures(t *testing.T) {
	a := newTestAggregator(t,
		&stubPlugin{
			manifest:  types.Manifest{ID: "ok", Name: "OK"},
			supported: true,
			items:     []types.SearchResultItem{corpusItem("i1", "Item", "ok")},
		},
		&stubPlugin{
			manifest:  types.Manifest{ID: "bad", Name: "Bad"},
			supported: true,
			err:       errors.New("plugin exploded"),
		},
	)

	require.NoError(t, a.RefreshCorpus(context.Background()))

	corpus := a.Corpus()
	require.Len(t, corpus, 1)
	assert.Equal(t, "ok", corpus[0].PluginID)
}

func TestRefreshCorpusSkipsUnsupportedAndUnsearchable(t *testing.T) {
	no := false
	a := newTestAggregator(t,
		&stubPlugin{
			manifest:  types.Manifest{ID: "unsupported", Name: "U"},
			supported: false,
			items:     []types.SearchResultItem{corpusItem("u1", "Hidden", "unsupported")},
		},
		&stubPlugin{
			manifest:  types.Manifest{ID: "optout", Name: "O", AllowSearch: &no},
			supported: true,
			items:     []types.SearchResultItem{corpusItem("o1", "Hidden", "optout")},
		},
	)

	require.NoError(t, a.RefreshCorpus(context.Background()))
	assert.Empty(t, a.Corpus())
}

func TestRefreshCorpusTimesOutSlowPlugin(t *testing.T) {
	reg := plugin.NewRegistry(t.TempDir(), nil, logging.NewNop())
	require.NoError(t, reg.RegisterNative(&stubPlugin{
		manifest:  types.Manifest{ID: "slow", Name: "Slow"},
		supported: true,
		delay:     time.Second,
		items:     []types.SearchResultItem{corpusItem("s1", "Late", "slow")},
	}))
	require.NoError(t, reg.RegisterNative(&stubPlugin{
		manifest:  types.Manifest{ID: "fast", Name: "Fast"},
		supported: true,
		items:     []types.SearchResultItem{corpusItem("f1", "Quick", "fast")},
	}))
	t.Cleanup(reg.Close)

	a := NewAggregator(reg, Options{CorpusTimeout: 50 * time.Millisecond, BrowseLimit: 20}, logging.NewNop())
	require.NoError(t, a.RefreshCorpus(context.Background()))

	corpus := a.Corpus()
	require.Len(t, corpus, 1)
	assert.Equal(t, "fast", corpus[0].PluginID)
}

func TestSearchRanksAndExcludesZeroScores(t *testing.T) {
	a := newTestAggregator(t, &stubPlugin{
		manifest:  types.Manifest{ID: "p", Name: "P"},
		supported: true,
		items: []types.SearchResultItem{
			corpusItem("1", "Calculator", "p"),
			corpusItem("2", "Calendar", "p"),
			corpusItem("3", "Terminal", "p"),
		},
	})
	require.NoError(t, a.RefreshCorpus(context.Background()))

	results := a.Search("cal")
	require.Len(t, results, 2)
	assert.True(t, sort.SliceIsSorted(results, func(i, j int) bool {
		return results[i].Score >= results[j].Score
	}))
	for _, r := range results {
		assert.Positive(t, r.Score)
	}
}

func TestSearchAppliesManifestRules(t *testing.T) {
	m := types.Manifest{
		ID: "color", Name: "Color",
		Weight:     10,
		MatchRules: []types.MatchRule{{Pattern: `^#[0-9a-f]{6}$`, Weight: 20}},
	}
	require.NoError(t, m.MatchRules[0].Compile())
	a := newTestAggregator(t, &stubPlugin{
		manifest:  m,
		supported: true,
		items: []types.SearchResultItem{{
			ID: "tile", Name: "Color", Weight: 10, PluginID: "color",
		}},
	})
	require.NoError(t, a.RefreshCorpus(context.Background()))

	results := a.Search("#ff00aa")
	require.Len(t, results, 1)
	assert.InDelta(t, 20.0, results[0].Score, 1e-9)
	assert.Equal(t, types.MatchRulePattern, results[0].MatchType)
}

func TestSearchEmptyQuery(t *testing.T) {
	a := newTestAggregator(t)
	require.NoError(t, a.RefreshCorpus(context.Background()))
	assert.Nil(t, a.Search(""))
	assert.Nil(t, a.Search("   "))
}

func TestInstantSearchOnlyConsultsCapablePlugins(t *testing.T) {
	capable := &stubPlugin{
		manifest:  types.Manifest{ID: "inst", Name: "Inst"},
		supported: true,
		instant: &types.InstantSearchResultItems{
			Items: []types.InstantSearchResultItem{{ID: "r", Name: "result one"}},
		},
	}
	a := newTestAggregator(t,
		stubInstant{capable},
		&stubPlugin{manifest: types.Manifest{ID: "plain", Name: "Plain"}, supported: true},
	)

	results := a.InstantSearch("result")
	require.Len(t, results, 1)
	assert.Equal(t, "inst", results[0].Item.PluginID)
	assert.Positive(t, results[0].Score)
}

func TestInstantAnswerWithoutTextMatchSurvives(t *testing.T) {
	calc := &stubPlugin{
		manifest:  types.Manifest{ID: "calc", Name: "Calculator"},
		supported: true,
		instant: &types.InstantSearchResultItems{
			Items: []types.InstantSearchResultItem{{ID: "r", Name: "Result: 4"}},
		},
	}
	a := newTestAggregator(t, stubInstant{calc})

	results := a.InstantSearch("2+2")
	require.Len(t, results, 1)
	assert.Equal(t, "Result: 4", results[0].Item.Name)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestCombinedBrowseMode(t *testing.T) {
	items := make([]types.SearchResultItem, 30)
	for i := range items {
		items[i] = corpusItem(string(rune('a'+i)), "Entry", "p")
	}
	reg := plugin.NewRegistry(t.TempDir(), nil, logging.NewNop())
	require.NoError(t, reg.RegisterNative(&stubPlugin{
		manifest:  types.Manifest{ID: "p", Name: "P"},
		supported: true,
		items:     items,
	}))
	t.Cleanup(reg.Close)

	a := NewAggregator(reg, Options{CorpusTimeout: time.Second, BrowseLimit: 20}, logging.NewNop())
	require.NoError(t, a.RefreshCorpus(context.Background()))

	combined := a.Combined("")
	assert.Len(t, combined.Corpus, 20)
	assert.Empty(t, combined.Instant)
	for _, r := range combined.Corpus {
		assert.Zero(t, r.Score)
		assert.Equal(t, types.MatchNone, r.MatchType)
	}
}

func TestCombinedWithQuery(t *testing.T) {
	capable := &stubPlugin{
		manifest:  types.Manifest{ID: "inst", Name: "Inst"},
		supported: true,
		items:     []types.SearchResultItem{corpusItem("c", "Match Corpus", "inst")},
		instant: &types.InstantSearchResultItems{
			Items: []types.InstantSearchResultItem{{ID: "i", Name: "Match Instant"}},
		},
	}
	a := newTestAggregator(t, stubInstant{capable})
	require.NoError(t, a.RefreshCorpus(context.Background()))

	combined := a.Combined("match")
	assert.Equal(t, "match", combined.Query)
	assert.Len(t, combined.Instant, 1)
	assert.Len(t, combined.Corpus, 1)
}
