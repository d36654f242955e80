package types

import (
	"fmt"
	"regexp"
)

// PluginType discriminates bundled plugins from externally distributed ones.
type PluginType string

const (
	PluginBuiltin  PluginType = "builtin"
	PluginExternal PluginType = "external"
)

// MatchRule is a manifest-declared heuristic that boosts a plugin's relevance
// for queries resembling a particular content shape (e.g. "looks like JSON").
// The pattern is matched case-insensitively against the raw query.
type MatchRule struct {
	Pattern     string  `json:"pattern"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description,omitempty"`

	re *regexp.Regexp
}

// Compile validates and caches the rule's regular expression.
func (r *MatchRule) Compile() error {
	re, err := regexp.Compile("(?i)" + r.Pattern)
	if err != nil {
		return fmt.Errorf("invalid match rule %q: %w", r.Pattern, err)
	}
	r.re = re
	return nil
}

// Matches reports whether the raw query fires this rule.
// Uncompiled rules never match.
func (r *MatchRule) Matches(query string) bool {
	return r.re != nil && r.re.MatchString(query)
}

// EffectiveWeight returns the rule's declared score, defaulting to 1.
func (r *MatchRule) EffectiveWeight() float64 {
	if r.Weight == 0 {
		return 1
	}
	return r.Weight
}

// Manifest is the static descriptor of a plugin's identity and declared
// capabilities. Manifests are immutable once loaded.
type Manifest struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Icon        string     `json:"icon,omitempty"`
	Version     string     `json:"version,omitempty"`
	Description string     `json:"description,omitempty"`
	Author      string     `json:"author,omitempty"`
	Entry       string     `json:"entry,omitempty"`
	Type        PluginType `json:"type"`

	// AllowSearch gates participation in both search paths. Defaults to true.
	AllowSearch *bool `json:"allowSearch,omitempty"`

	// Weight is the ranking multiplier applied to the plugin's launcher tile.
	// Must be >= 0; zero-value means unset and is treated as 1.
	Weight float64 `json:"weight,omitempty"`

	MatchRules []MatchRule `json:"matchRules,omitempty"`

	// SearchInputPlaceholder replaces the host search box hint while the
	// plugin's view session is active.
	SearchInputPlaceholder string `json:"searchInputPlaceholder,omitempty"`

	// Sandbox declares the isolation relaxations the plugin's entry artifact
	// requires. Everything not declared here stays at the restrictive default.
	Sandbox *SandboxRequest `json:"sandbox,omitempty"`
}

// Searchable reports whether the manifest allows search participation.
func (m *Manifest) Searchable() bool {
	return m.AllowSearch == nil || *m.AllowSearch
}

// EffectiveWeight returns the ranking multiplier, defaulting to 1.
func (m *Manifest) EffectiveWeight() float64 {
	if m.Weight == 0 {
		return 1
	}
	return m.Weight
}

// EntryArtifact returns the relative path of the renderable entry, defaulting
// to index.html.
func (m *Manifest) EntryArtifact() string {
	if m.Entry == "" {
		return "index.html"
	}
	return m.Entry
}

// SandboxRequest lists isolation relaxations a manifest may ask for.
// Absent fields keep the restrictive default.
type SandboxRequest struct {
	NodeIntegration  bool `json:"nodeIntegration,omitempty"`
	InlineScripts    bool `json:"inlineScripts,omitempty"`
	DisableIsolation bool `json:"disableIsolation,omitempty"`
}
