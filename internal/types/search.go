package types

// SearchResultItem is one entry of the batch-computed corpus. Items are
// produced by a plugin's heavy search call and cached until the next refresh.
type SearchResultItem struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Icon        string         `json:"icon,omitempty"`
	Description string         `json:"description,omitempty"`
	SearchTerms []string       `json:"searchTerms,omitempty"`
	Weight      float64        `json:"weight,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	PluginID    string         `json:"pluginId"`
}

// EffectiveWeight returns the item's ranking multiplier, defaulting to 1.
func (s *SearchResultItem) EffectiveWeight() float64 {
	if s.Weight == 0 {
		return 1
	}
	return s.Weight
}

// InstantSearchResultItem is the lightweight per-keystroke variant. It carries
// no explicit search terms and is never cached.
type InstantSearchResultItem struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Icon        string         `json:"icon,omitempty"`
	Description string         `json:"description,omitempty"`
	Weight      float64        `json:"weight,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	PluginID    string         `json:"pluginId"`
}

// EffectiveWeight returns the item's ranking multiplier, defaulting to 1.
func (s *InstantSearchResultItem) EffectiveWeight() float64 {
	if s.Weight == 0 {
		return 1
	}
	return s.Weight
}

// InstantSearchResultItems is a single plugin's per-keystroke contribution.
type InstantSearchResultItems struct {
	Items   []InstantSearchResultItem `json:"items"`
	HasMore bool                      `json:"hasMore,omitempty"`
}

// MatchType labels which scoring signal won for a result.
type MatchType string

const (
	MatchTerms       MatchType = "terms"
	MatchRulePattern MatchType = "rule"
	MatchPhonetic    MatchType = "phonetic"
	MatchName        MatchType = "name"
	MatchDescription MatchType = "description"
	MatchNone        MatchType = "none"
)

// SearchResult is a scored corpus item.
type SearchResult struct {
	Item        SearchResultItem `json:"item"`
	Score       float64          `json:"score"`
	MatchType   MatchType        `json:"matchType"`
	MatchedRule string           `json:"matchedRule,omitempty"`
}

// InstantSearchResult is a scored instant item.
type InstantSearchResult struct {
	Item      InstantSearchResultItem `json:"item"`
	Score     float64                 `json:"score"`
	MatchType MatchType               `json:"matchType"`
}

// CombinedResults is the UI-facing merge of both search paths: instant
// results take priority ordering over corpus results.
type CombinedResults struct {
	Query   string                `json:"query"`
	Instant []InstantSearchResult `json:"instant"`
	Corpus  []SearchResult        `json:"corpus"`
}
