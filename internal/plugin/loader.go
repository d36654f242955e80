package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/spotlaunch/launcherd/internal/logging"
	"github.com/spotlaunch/launcherd/internal/sandbox"
	"github.com/spotlaunch/launcherd/internal/store"
	"github.com/spotlaunch/launcherd/internal/types"
)

// Loader parses and validates a single plugin package directory. Loaders
// keep no state across loads: every call re-reads the package's current
// on-disk content, so a refresh observes edits made since the last scan.
type Loader struct {
	sandboxCfg sandbox.Config
	stores     store.Provider
	log        *logging.Logger
}

// NewLoader creates a package loader. stores provides each script plugin's
// namespaced persistence; it may be nil for manifest-only setups.
func NewLoader(sandboxCfg sandbox.Config, stores store.Provider, log *logging.Logger) *Loader {
	if log == nil {
		log = logging.NewNop()
	}
	return &Loader{
		sandboxCfg: sandboxCfg,
		stores:     stores,
		log:        log,
	}
}

// Load reads one plugin package directory and returns a validated Plugin.
// Failures are LoadErrors: the caller logs, skips the package and continues
// scanning siblings.
func (l *Loader) Load(ctx context.Context, dir string) (Plugin, error) {
	scriptPath := filepath.Join(dir, ScriptFile)
	if _, err := os.Stat(scriptPath); err == nil {
		return l.loadScript(ctx, dir, scriptPath)
	}

	manifest, err := ReadManifestFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	l.checkEntryArtifact(dir, manifest)
	return newTilePlugin(manifest, dir), nil
}

// loadScript evaluates plugin.js in a fresh sandbox and validates its export.
func (l *Loader) loadScript(ctx context.Context, dir, scriptPath string) (Plugin, error) {
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	plog := l.log.Component(filepath.Base(dir))
	rt, err := sandbox.New(l.sandboxCfg, plog)
	if err != nil {
		return nil, err
	}

	if err := rt.Run(ctx, string(script)); err != nil {
		rt.Close()
		return nil, fmt.Errorf("script evaluation failed: %w", err)
	}

	exports, err := rt.Exports()
	if err != nil {
		rt.Close()
		return nil, ErrNoExport
	}

	manifest, err := l.resolveManifest(dir, exports)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if l.stores != nil {
		rt.BindStore(l.stores.Namespace(manifest.ID))
	}

	p, err := newScriptPlugin(manifest, dir, rt, exports, plog)
	if err != nil {
		rt.Close()
		return nil, err
	}

	l.checkEntryArtifact(dir, manifest)
	return p, nil
}

// resolveManifest prefers the export's manifest field, falling back to
// plugin.json for script packages that keep their descriptor separate.
func (l *Loader) resolveManifest(dir string, exports *goja.Object) (*types.Manifest, error) {
	if val := exports.Get("manifest"); val != nil && !goja.IsUndefined(val) && !goja.IsNull(val) {
		return ParseManifestValue(val.Export())
	}

	manifestPath := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(manifestPath); err == nil {
		return ReadManifestFile(manifestPath)
	}
	return nil, ErrNoManifest
}

// checkEntryArtifact warns when the renderable entry is missing or does not
// sniff as HTML. This is advisory only; the package still loads.
func (l *Loader) checkEntryArtifact(dir string, manifest *types.Manifest) {
	entry := filepath.Join(dir, manifest.EntryArtifact())
	mt, err := mimetype.DetectFile(entry)
	if err != nil {
		l.log.Warn("plugin entry artifact missing",
			zap.String("plugin", manifest.ID),
			zap.String("entry", entry))
		return
	}
	if !mt.Is("text/html") && !strings.HasPrefix(mt.String(), "text/") {
		l.log.Warn("plugin entry artifact is not renderable",
			zap.String("plugin", manifest.ID),
			zap.String("mime", mt.String()))
	}
}
