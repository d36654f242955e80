package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spotlaunch/launcherd/internal/logging"
)

// Registry maintains the live plugin catalog. Each LoadAll builds a fresh
// arena keyed by manifest id and swaps it wholesale: no loader state keyed
// by package path survives a generation, so a refresh always observes the
// current on-disk content.
type Registry struct {
	root   string
	loader *Loader
	log    *logging.Logger
	loads  *prometheus.CounterVec

	mu         sync.RWMutex
	plugins    map[string]Plugin
	native     []Plugin
	generation uint64
}

// NewRegistry creates a registry scanning root for plugin packages.
func NewRegistry(root string, loader *Loader, log *logging.Logger) *Registry {
	if log == nil {
		log = logging.NewNop()
	}
	return &Registry{
		root:    root,
		loader:  loader,
		log:     log,
		plugins: make(map[string]Plugin),
	}
}

// RegisterNative adds an in-process plugin. Native plugins survive refreshes;
// a scanned package with the same id overwrites them for that generation.
func (r *Registry) RegisterNative(p Plugin) error {
	m := p.Manifest()
	if m == nil || m.ID == "" {
		return fmt.Errorf("native plugin requires a manifest id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.native = append(r.native, p)
	r.plugins[m.ID] = p
	return nil
}

// TrackLoads counts per-package load outcomes ("ok" or "error") in c. Set it
// before the first LoadAll.
func (r *Registry) TrackLoads(c *prometheus.CounterVec) {
	r.loads = c
}

func (r *Registry) countLoad(outcome string) {
	if r.loads != nil {
		r.loads.WithLabelValues(outcome).Inc()
	}
}

// LoadAll clears the catalog and rescans the plugins root. One bad package
// never aborts the scan of the rest; failures are logged and skipped. A
// missing root yields an empty catalog (plus natives), not an error.
func (r *Registry) LoadAll(ctx context.Context) error {
	arena := make(map[string]Plugin)

	r.mu.RLock()
	native := append([]Plugin(nil), r.native...)
	r.mu.RUnlock()

	for _, p := range native {
		arena[p.Manifest().ID] = p
	}

	entries, err := os.ReadDir(r.root)
	if err != nil {
		r.log.Warn("plugins root not readable", zap.String("root", r.root), zap.Error(err))
		entries = nil
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(r.root, entry.Name())

		p, err := r.loader.Load(ctx, dir)
		if err != nil {
			r.countLoad("error")
			r.log.Warn("skipping plugin package",
				zap.String("dir", entry.Name()),
				zap.Error(err))
			continue
		}
		r.countLoad("ok")

		id := p.Manifest().ID
		if prev, ok := arena[id]; ok {
			r.log.Warn("duplicate plugin id, overwriting prior entry",
				zap.String("id", id),
				zap.String("dir", entry.Name()))
			closePlugin(prev)
		}
		arena[id] = p
	}

	r.mu.Lock()
	old := r.plugins
	r.plugins = arena
	r.generation++
	gen := r.generation
	r.mu.Unlock()

	// Tear down replaced script runtimes from the previous generation.
	for id, p := range old {
		if arena[id] == p {
			continue
		}
		closePlugin(p)
	}

	r.log.Info("plugin catalog loaded",
		zap.Int("count", len(arena)),
		zap.Uint64("generation", gen))
	return nil
}

// Refresh re-runs LoadAll. This is the only way the catalog changes; there
// is no filesystem watcher.
func (r *Registry) Refresh(ctx context.Context) error {
	return r.LoadAll(ctx)
}

// GetAll returns all registered plugins sorted by manifest id.
func (r *Registry) GetAll() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Manifest().ID < out[j].Manifest().ID
	})
	return out
}

// GetByID returns a plugin by manifest id.
func (r *Registry) GetByID(id string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[id]
	return p, ok
}

// Generation returns the current catalog generation. It increments on every
// LoadAll, letting callers detect staleness of cached corpus data.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.generation
}

// Stats returns catalog statistics.
func (r *Registry) Stats() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	supported := 0
	for _, p := range r.plugins {
		if p.IsSupported() {
			supported++
		}
	}
	return map[string]any{
		"total":      len(r.plugins),
		"supported":  supported,
		"generation": r.generation,
	}
}

// Close tears down every loaded plugin.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.plugins {
		closePlugin(p)
	}
	r.plugins = make(map[string]Plugin)
}

func closePlugin(p Plugin) {
	if c, ok := p.(interface{ Close() error }); ok {
		c.Close()
	}
}
