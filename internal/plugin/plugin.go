// Package plugin implements the launcher plugin runtime: manifest parsing,
// package loading (including sandboxed script plugins) and the live catalog.
package plugin

import (
	"context"
	"errors"

	"github.com/spotlaunch/launcherd/internal/types"
)

// Plugin is the capability contract every loaded plugin satisfies.
type Plugin interface {
	// Manifest returns the immutable descriptor. Never nil.
	Manifest() *types.Manifest

	// IsSupported gates the plugin on the current platform/environment.
	// Unsupported plugins are excluded from every operation.
	IsSupported() bool

	// SearchItems computes the plugin's corpus contribution. It may be
	// heavy (file scans, API calls); it runs off the control path and its
	// results are cached by the caller until the next refresh.
	SearchItems(ctx context.Context) ([]types.SearchResultItem, error)
}

// InstantSearcher is the optional per-keystroke search capability.
// Implementations must be cheap, with no network or disk I/O, so a slow
// plugin cannot stall keystroke handling.
type InstantSearcher interface {
	InstantSearchItems(term string) types.InstantSearchResultItems
}

// Located is implemented by plugins loaded from an on-disk package. The
// directory anchors the plugin's renderable entry artifact.
type Located interface {
	Dir() string
}

// Invoker is the optional generic invocation capability.
type Invoker interface {
	Invoke(ctx context.Context, arg any) (any, error)
}

// SettingsAware exposes optional setting hooks.
type SettingsAware interface {
	// SettingDefault returns the default value for a setting key.
	SettingDefault(key string) any

	// RescanSettingKeys lists setting keys whose change invalidates the
	// plugin's corpus contribution.
	RescanSettingKeys() []string
}

// ErrNotSupported is returned by optional operations a plugin does not
// implement.
var ErrNotSupported = errors.New("plugin: operation not supported")
