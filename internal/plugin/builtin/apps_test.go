package builtin

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDesktopFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func scanDir(t *testing.T) (*Applications, string) {
	t.Helper()
	dir := t.TempDir()
	a := NewApplications()
	a.scanDirs = []string{dir}
	return a, dir
}

func TestScanDesktopEntries(t *testing.T) {
	a, dir := scanDir(t)
	writeDesktopFile(t, dir, "editor.desktop", `[Desktop Entry]
Name=Text Editor
Exec=editor %U
Icon=accessories-text-editor
Comment=Edit text files
`)

	items, err := a.SearchItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "Text Editor", items[0].Name)
	assert.Equal(t, "accessories-text-editor", items[0].Icon)
	assert.Equal(t, "Edit text files", items[0].Description)
	assert.Equal(t, "applications", items[0].PluginID)
	assert.Equal(t, "editor", items[0].Data["exec"])
}

func TestScanSkipsNoDisplayEntries(t *testing.T) {
	a, dir := scanDir(t)
	writeDesktopFile(t, dir, "hidden.desktop", `[Desktop Entry]
Name=Hidden Tool
Exec=hidden
NoDisplay=true
`)

	items, err := a.SearchItems(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestScanSkipsUnlaunchableEntries(t *testing.T) {
	a, dir := scanDir(t)
	writeDesktopFile(t, dir, "broken.desktop", `[Desktop Entry]
Name=No Exec Line
`)
	writeDesktopFile(t, dir, "notes.txt", `not a desktop entry`)

	items, err := a.SearchItems(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestScanOnlyReadsDesktopEntrySection(t *testing.T) {
	a, dir := scanDir(t)
	writeDesktopFile(t, dir, "multi.desktop", `[Desktop Action new-window]
Name=New Window
Exec=app --new-window

[Desktop Entry]
Name=App
Exec=app
`)

	items, err := a.SearchItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "App", items[0].Name)
	assert.Equal(t, "app", items[0].Data["exec"])
}

func TestScanMissingDirectory(t *testing.T) {
	a := NewApplications()
	a.scanDirs = []string{filepath.Join(t.TempDir(), "nope")}

	items, err := a.SearchItems(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestIsSupported(t *testing.T) {
	a := NewApplications()
	assert.Equal(t, runtime.GOOS == "linux", a.IsSupported())
}

func TestManifest(t *testing.T) {
	a := NewApplications()
	m := a.Manifest()
	assert.Equal(t, "applications", m.ID)
	assert.True(t, m.Searchable())
}
