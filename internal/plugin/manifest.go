package plugin

import (
	"errors"
	"fmt"
	"os"

	"github.com/bytedance/sonic"

	"github.com/spotlaunch/launcherd/internal/types"
)

// ManifestFile is the descriptor file name inside a plugin package.
const ManifestFile = "plugin.json"

// ScriptFile is the optional capability script inside a plugin package.
const ScriptFile = "plugin.js"

// Validation errors. All are LoadErrors: the offending package is skipped
// and scanning continues with its siblings.
var (
	ErrNoExport      = errors.New("manifest: package exposes no export object")
	ErrNoManifest    = errors.New("manifest: export lacks a manifest field")
	ErrNoSearchItems = errors.New("manifest: export lacks a callable getSearchResultItems")
	ErrMissingID     = errors.New("manifest: id is required")
	ErrMissingName   = errors.New("manifest: name is required")
	ErrBadWeight     = errors.New("manifest: weight must be >= 0")
)

// ReadManifestFile parses and validates a plugin.json descriptor.
func ReadManifestFile(path string) (*types.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	var m types.Manifest
	if err := sonic.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: malformed descriptor: %w", err)
	}
	if err := validateManifest(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseManifestValue validates a manifest decoded from a script export's
// `manifest` field.
func ParseManifestValue(v any) (*types.Manifest, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("manifest: malformed descriptor: %w", err)
	}

	var m types.Manifest
	if err := sonic.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: malformed descriptor: %w", err)
	}
	if err := validateManifest(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func validateManifest(m *types.Manifest) error {
	if m.ID == "" {
		return ErrMissingID
	}
	if m.Name == "" {
		return ErrMissingName
	}
	if m.Weight < 0 {
		return ErrBadWeight
	}
	if m.Type == "" {
		m.Type = types.PluginExternal
	}
	for i := range m.MatchRules {
		if err := m.MatchRules[i].Compile(); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
	}
	return nil
}
