// Package builtin hosts the launcher's in-process plugins.
package builtin

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/spotlaunch/launcherd/internal/types"
)

// appsManifest describes the installed-applications plugin.
var appsManifest = types.Manifest{
	ID:          "applications",
	Name:        "Applications",
	Icon:        "icon://apps",
	Version:     "1.0.0",
	Description: "Search and launch installed desktop applications",
	Type:        types.PluginBuiltin,
}

// defaultScanDirs are the freedesktop application directories.
func defaultScanDirs() []string {
	home, _ := os.UserHomeDir()
	return []string{
		"/usr/share/applications",
		"/usr/local/share/applications",
		filepath.Join(home, ".local/share/applications"),
	}
}

// Applications scans freedesktop .desktop entries and contributes one corpus
// item per installed application.
type Applications struct {
	scanDirs []string
	patterns []string
	maxDepth int
}

// NewApplications creates the plugin with default scan directories.
func NewApplications() *Applications {
	return &Applications{
		scanDirs: defaultScanDirs(),
		patterns: []string{"**/*.desktop"},
		maxDepth: 2,
	}
}

func (a *Applications) Manifest() *types.Manifest { return &appsManifest }

// IsSupported gates the plugin to platforms with freedesktop entries.
func (a *Applications) IsSupported() bool {
	return runtime.GOOS == "linux"
}

// SearchItems walks the scan directories and parses every matching desktop
// entry. Unreadable directories and malformed entries are skipped.
func (a *Applications) SearchItems(ctx context.Context) ([]types.SearchResultItem, error) {
	var (
		mu    sync.Mutex
		items []types.SearchResultItem
	)

	conf := fastwalk.Config{Follow: false}
	for _, dir := range a.scanDirs {
		root := dir
		err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				if depth(root, p) > a.maxDepth {
					return filepath.SkipDir
				}
				return nil
			}

			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return nil
			}
			if !a.matches(rel) {
				return nil
			}

			if item, ok := parseDesktopEntry(p); ok {
				mu.Lock()
				items = append(items, item)
				mu.Unlock()
			}
			return nil
		})
		if err != nil && err != ctx.Err() {
			continue
		}
		if ctx.Err() != nil {
			return items, ctx.Err()
		}
	}
	return items, nil
}

// matches tests the relative path against the configured glob patterns.
func (a *Applications) matches(rel string) bool {
	for _, pattern := range a.patterns {
		if ok, err := doublestar.Match(pattern, filepath.ToSlash(rel)); err == nil && ok {
			return true
		}
	}
	return false
}

func depth(root, p string) int {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}

// parseDesktopEntry extracts Name/Exec/Icon/Comment from a .desktop file.
// Entries without Name and Exec are not launchable and are skipped.
func parseDesktopEntry(path string) (types.SearchResultItem, bool) {
	f, err := os.Open(path)
	if err != nil {
		return types.SearchResultItem{}, false
	}
	defer f.Close()

	var name, exec, icon, comment string
	inDesktopEntry := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inDesktopEntry = line == "[Desktop Entry]"
			continue
		}
		if !inDesktopEntry {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Name=") && name == "":
			name = line[len("Name="):]
		case strings.HasPrefix(line, "Exec=") && exec == "":
			exec = line[len("Exec="):]
		case strings.HasPrefix(line, "Icon=") && icon == "":
			icon = line[len("Icon="):]
		case strings.HasPrefix(line, "Comment=") && comment == "":
			comment = line[len("Comment="):]
		case line == "NoDisplay=true":
			return types.SearchResultItem{}, false
		}
	}

	if name == "" || exec == "" {
		return types.SearchResultItem{}, false
	}

	return types.SearchResultItem{
		ID:          "app-" + filepath.Base(path),
		Name:        name,
		Icon:        icon,
		Description: comment,
		SearchTerms: []string{strings.ToLower(name)},
		PluginID:    appsManifest.ID,
		Data: map[string]any{
			"exec": strings.TrimSpace(stripFieldCodes(exec)),
			"path": path,
		},
	}, true
}

// stripFieldCodes removes %u/%U/%f/%F placeholders from an Exec line.
func stripFieldCodes(exec string) string {
	for _, code := range []string{"%u", "%U", "%f", "%F", "%i", "%c", "%k"} {
		exec = strings.ReplaceAll(exec, code, "")
	}
	return exec
}
