package plugin

import (
	"context"

	"github.com/spotlaunch/launcherd/internal/types"
)

// tilePlugin backs a manifest-only package: it contributes a single corpus
// item, the plugin's own launcher tile, so view-only plugins still surface
// in search.
type tilePlugin struct {
	manifest *types.Manifest
	dir      string
}

func newTilePlugin(manifest *types.Manifest, dir string) Plugin {
	return &tilePlugin{manifest: manifest, dir: dir}
}

func (p *tilePlugin) Manifest() *types.Manifest { return p.manifest }

func (p *tilePlugin) Dir() string { return p.dir }

func (p *tilePlugin) IsSupported() bool { return true }

func (p *tilePlugin) SearchItems(ctx context.Context) ([]types.SearchResultItem, error) {
	return []types.SearchResultItem{{
		ID:          p.manifest.ID,
		Name:        p.manifest.Name,
		Icon:        p.manifest.Icon,
		Description: p.manifest.Description,
		Weight:      p.manifest.EffectiveWeight(),
		PluginID:    p.manifest.ID,
	}}, nil
}
