package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/spotlaunch/launcherd/internal/logging"
	"github.com/spotlaunch/launcherd/internal/sandbox"
	"github.com/spotlaunch/launcherd/internal/types"
)

// scriptPlugin adapts a sandboxed plugin.js export to the Plugin contract.
// The underlying goja runtime is not goroutine-safe, so every capability
// call is serialized through mu.
type scriptPlugin struct {
	manifest *types.Manifest
	dir      string
	rt       *sandbox.Runtime
	exports  *goja.Object
	log      *logging.Logger

	mu sync.Mutex

	searchFn         goja.Callable
	instantFn        goja.Callable
	supportedFn      goja.Callable
	invokeFn         goja.Callable
	settingDefaultFn goja.Callable
	rescanKeysFn     goja.Callable
}

// withInstant is the variant returned for exports that declare
// getInstantSearchResultItems. The split keeps the instant capability an
// explicit interface rather than a convention.
type withInstant struct {
	*scriptPlugin
}

func (w withInstant) InstantSearchItems(term string) types.InstantSearchResultItems {
	return w.scriptPlugin.instantSearchItems(term)
}

// newScriptPlugin wires an evaluated export object into a Plugin. The export
// must carry a callable getSearchResultItems; the caller has already
// validated the manifest.
func newScriptPlugin(manifest *types.Manifest, dir string, rt *sandbox.Runtime, exports *goja.Object, log *logging.Logger) (Plugin, error) {
	p := &scriptPlugin{
		manifest: manifest,
		dir:      dir,
		rt:       rt,
		exports:  exports,
		log:      log,
	}

	var ok bool
	if p.searchFn, ok = sandbox.Callable(exports, "getSearchResultItems"); !ok {
		return nil, ErrNoSearchItems
	}
	p.supportedFn, _ = sandbox.Callable(exports, "isSupported")
	p.invokeFn, _ = sandbox.Callable(exports, "invoke")
	p.settingDefaultFn, _ = sandbox.Callable(exports, "getSettingDefaultValue")
	p.rescanKeysFn, _ = sandbox.Callable(exports, "getSettingKeysTriggeringRescan")

	if p.instantFn, ok = sandbox.Callable(exports, "getInstantSearchResultItems"); ok {
		return withInstant{p}, nil
	}
	return p, nil
}

func (p *scriptPlugin) Manifest() *types.Manifest { return p.manifest }

func (p *scriptPlugin) Dir() string { return p.dir }

// IsSupported defaults to true when the script declares no gate.
func (p *scriptPlugin) IsSupported() bool {
	if p.supportedFn == nil {
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	val, err := p.rt.Call(context.Background(), p.supportedFn, p.exports)
	if err != nil {
		p.log.Warn("isSupported call failed", zap.Error(err))
		return false
	}
	supported, _ := val.(bool)
	return supported
}

func (p *scriptPlugin) SearchItems(ctx context.Context) ([]types.SearchResultItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	val, err := p.rt.Call(ctx, p.searchFn, p.exports)
	if err != nil {
		return nil, fmt.Errorf("getSearchResultItems: %w", err)
	}

	var items []types.SearchResultItem
	if err := remarshal(val, &items); err != nil {
		return nil, fmt.Errorf("getSearchResultItems: malformed result: %w", err)
	}
	for i := range items {
		if items[i].PluginID == "" {
			items[i].PluginID = p.manifest.ID
		}
	}
	return items, nil
}

// instantSearchItems runs the per-keystroke capability. Failures degrade to
// an empty contribution.
func (p *scriptPlugin) instantSearchItems(term string) types.InstantSearchResultItems {
	p.mu.Lock()
	defer p.mu.Unlock()

	val, err := p.rt.Call(context.Background(), p.instantFn, p.exports, term)
	if err != nil {
		p.log.Warn("getInstantSearchResultItems call failed", zap.Error(err))
		return types.InstantSearchResultItems{}
	}

	var result types.InstantSearchResultItems
	if err := remarshal(val, &result); err != nil {
		p.log.Warn("getInstantSearchResultItems returned malformed result", zap.Error(err))
		return types.InstantSearchResultItems{}
	}
	for i := range result.Items {
		if result.Items[i].PluginID == "" {
			result.Items[i].PluginID = p.manifest.ID
		}
	}
	return result
}

func (p *scriptPlugin) Invoke(ctx context.Context, arg any) (any, error) {
	if p.invokeFn == nil {
		return nil, ErrNotSupported
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.rt.Call(ctx, p.invokeFn, p.exports, arg)
}

func (p *scriptPlugin) SettingDefault(key string) any {
	if p.settingDefaultFn == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	val, err := p.rt.Call(context.Background(), p.settingDefaultFn, p.exports, key)
	if err != nil {
		return nil
	}
	return val
}

func (p *scriptPlugin) RescanSettingKeys() []string {
	if p.rescanKeysFn == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	val, err := p.rt.Call(context.Background(), p.rescanKeysFn, p.exports)
	if err != nil {
		return nil
	}
	var keys []string
	if err := remarshal(val, &keys); err != nil {
		return nil
	}
	return keys
}

// Close releases the plugin's sandbox runtime.
func (p *scriptPlugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.rt.Close()
}

// remarshal converts an exported goja value into a typed Go structure via a
// JSON round-trip, tolerating the loose shapes scripts produce.
func remarshal(val any, out any) error {
	if val == nil {
		return nil
	}
	data, err := sonic.Marshal(val)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(data, out)
}
