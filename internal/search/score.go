// Package search ranks corpus and instant items against a query.
package search

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"

	"github.com/spotlaunch/launcherd/internal/types"
)

// Signal multipliers. Terms are the strongest signal because the plugin
// author declared them explicitly, descriptions the weakest because they
// are prose.
const (
	termSignal        = 12.0
	phoneticSignal    = 8.0
	nameSignal        = 10.0
	descriptionFactor = 0.5
	subsequenceSignal = 5.0
	prefixBonus       = 1.0
	infixPenalty      = 0.8
)

// matchPriority breaks score ties between signals of equal value.
var matchPriority = map[types.MatchType]int{
	types.MatchTerms:       5,
	types.MatchRulePattern: 4,
	types.MatchPhonetic:    3,
	types.MatchName:        2,
	types.MatchDescription: 1,
	types.MatchNone:        0,
}

var pinyinArgs = pinyin.NewArgs()

// scored is the outcome of ranking one item.
type scored struct {
	score       float64
	matchType   types.MatchType
	matchedRule string
}

// scoreItem ranks a corpus item. Text signals are scaled by the item's
// weight; a rule match contributes its declared weight unscaled. A zero
// result means the item does not match at all.
func scoreItem(query string, item *types.SearchResultItem, rules []types.MatchRule) scored {
	best := scoreText(query, item.Name, item.Description, item.SearchTerms)
	if best.score > 0 {
		best.score *= item.EffectiveWeight()
	}

	for i := range rules {
		r := &rules[i]
		if !r.Matches(query) {
			continue
		}
		rs := r.EffectiveWeight()
		if rs > best.score || (rs == best.score && matchPriority[types.MatchRulePattern] > matchPriority[best.matchType]) {
			best = scored{score: rs, matchType: types.MatchRulePattern, matchedRule: r.Pattern}
		}
	}
	return best
}

// scoreInstantItem ranks a per-keystroke item. Instant items carry no search
// terms and no rules apply to them.
func scoreInstantItem(query string, item *types.InstantSearchResultItem) scored {
	best := scoreText(query, item.Name, item.Description, nil)
	if best.score > 0 {
		best.score *= item.EffectiveWeight()
	}
	// An instant item is the plugin's answer to this exact query. It stays in
	// the result set even when its text shares nothing with the query, floored
	// at the item weight.
	if w := item.EffectiveWeight(); best.score < w {
		best.score = w
	}
	return best
}

// scoreText evaluates the text signals and keeps the strongest one.
func scoreText(query, name, description string, terms []string) scored {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return scored{matchType: types.MatchNone}
	}

	best := scored{matchType: types.MatchNone}
	consider := func(score float64, mt types.MatchType) {
		if score <= 0 {
			return
		}
		if score > best.score || (score == best.score && matchPriority[mt] > matchPriority[best.matchType]) {
			best = scored{score: score, matchType: mt}
		}
	}

	for _, term := range terms {
		consider(termScore(q, term), types.MatchTerms)
	}
	consider(phoneticScore(q, name), types.MatchPhonetic)
	consider(substringScore(q, name, nameSignal), types.MatchName)
	consider(subsequenceScore(q, name), types.MatchName)
	consider(substringScore(q, description, nameSignal)*descriptionFactor, types.MatchDescription)
	consider(subsequenceScore(q, description)*descriptionFactor, types.MatchDescription)

	return best
}

// termScore rewards queries contained in a declared search term, scaled by
// how much of the term the query covers.
func termScore(q, term string) float64 {
	t := strings.ToLower(term)
	if t == "" || !strings.Contains(t, q) {
		return 0
	}
	return float64(len([]rune(q))) / float64(len([]rune(t))) * termSignal
}

// substringScore rewards a contiguous match, with a bonus for prefix matches.
func substringScore(q, text string, signal float64) float64 {
	t := strings.ToLower(text)
	if t == "" {
		return 0
	}
	idx := strings.Index(t, q)
	if idx < 0 {
		return 0
	}
	factor := infixPenalty
	if idx == 0 {
		factor = prefixBonus
	}
	return float64(len([]rune(q))) / float64(len([]rune(t))) * factor * signal
}

// subsequenceScore rewards the query's runes appearing in order within the
// name, even when not contiguous. Every query rune must match.
func subsequenceScore(q, name string) float64 {
	n := []rune(strings.ToLower(name))
	if len(n) == 0 {
		return 0
	}
	qr := []rune(q)
	qi := 0
	for _, r := range n {
		if qi < len(qr) && r == qr[qi] {
			qi++
		}
	}
	if qi < len(qr) {
		return 0
	}
	return float64(len(qr)) / float64(len(n)) * subsequenceSignal
}

// phoneticScore matches the query against the romanized reading of a name
// containing Han characters. Each Han rune may consume either a prefix of
// its full pinyin or just its initial letter; latin runes match literally.
// The whole query must be consumed, and the score reflects how much of the
// name the match spans.
func phoneticScore(q, name string) float64 {
	n := []rune(strings.ToLower(name))
	if len(n) == 0 {
		return 0
	}

	hasHan := false
	for _, r := range n {
		if unicode.Is(unicode.Han, r) {
			hasHan = true
			break
		}
	}
	if !hasHan {
		return 0
	}

	qr := []rune(q)
	qi := 0
	span := 0
	for _, r := range n {
		if qi >= len(qr) {
			break
		}
		if !unicode.Is(unicode.Han, r) {
			if r == qr[qi] {
				qi++
				span++
			}
			continue
		}
		readings := pinyin.SinglePinyin(r, pinyinArgs)
		consumed := 0
		for _, reading := range readings {
			if c := prefixOverlap(qr[qi:], []rune(reading)); c > consumed {
				consumed = c
			}
		}
		if consumed > 0 {
			qi += consumed
			span++
		}
	}
	if qi < len(qr) {
		return 0
	}
	return float64(span) / float64(len(n)) * phoneticSignal
}

// prefixOverlap returns how many leading runes of q match a prefix of the
// reading. A match of just the initial letter counts as one.
func prefixOverlap(q, reading []rune) int {
	max := len(q)
	if len(reading) < max {
		max = len(reading)
	}
	i := 0
	for i < max && q[i] == reading[i] {
		i++
	}
	return i
}
