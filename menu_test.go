package loader

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/renameio/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axondata/go-loader/internal/storage"
)

func menuRegistry() *Registry {
	reg := NewRegistry()
	reg.System = []Descriptor{
		{Kind: KindSystem, Name: "Sub-GHz", Icon: "subghz"},
		{Kind: KindSystem, Name: "125 kHz RFID", Icon: "rfid"},
		{Kind: KindSystem, Name: "NFC", Icon: "nfc"},
	}
	reg.Internal = []Descriptor{{Kind: KindInternal, Name: "Storage Move"}}
	reg.External = []Descriptor{
		{Kind: KindExternalAlias, Name: "Snake", Path: "/ext/apps/Games/snake.fap", Icon: "snake"},
		{Kind: KindExternalAlias, Name: ApplicationsName},
	}
	return reg
}

func writeMenu(t *testing.T, path, content string) {
	t.Helper()
	if err := renameio.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func labels(apps []MenuApp) []string {
	out := make([]string, 0, len(apps))
	for _, a := range apps {
		out = append(out, a.Label)
	}
	return out
}

func TestMenuGeneratedWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu_apps.txt")

	apps := NewMenuCatalogBuilder(path, menuRegistry()).Build(context.Background())

	assert.Equal(t, "MenuAppList Version 1\nSub-GHz\n125 kHz RFID\nNFC\nSnake\n", readFile(t, path))
	assert.Equal(t, []string{"Sub-GHz", "125 kHz RFID", "NFC", "Snake"}, labels(apps))
	assert.Equal(t, MenuApp{Label: "Snake", Icon: "snake", Exe: "Snake"}, apps[3])
}

func TestMenuVersionZeroMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu_apps.txt")
	writeMenu(t, path, "MenuAppList Version 0\nRFID\nSubGHz\nNFC\n")

	apps := NewMenuCatalogBuilder(path, menuRegistry()).Build(context.Background())

	assert.Equal(t, []string{"125 kHz RFID", "Sub-GHz", "NFC"}, labels(apps))
	assert.Equal(t, "rfid", apps[0].Icon)
}

func TestMenuVersionOneKeepsLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu_apps.txt")
	writeMenu(t, path, "MenuAppList Version 1\nRFID\nNFC\n")

	apps := NewMenuCatalogBuilder(path, menuRegistry()).Build(context.Background())

	assert.Equal(t, []string{"NFC"}, labels(apps), "renames only apply to version 0")
}

func TestMenuRegeneratedOnBadHeader(t *testing.T) {
	for name, content := range map[string]string{
		"newer version": "MenuAppList Version 2\nNFC\n",
		"garbage":       "hello\nNFC\n",
		"empty":         "",
		"not a number":  "MenuAppList Version x\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "menu_apps.txt")
			writeMenu(t, path, content)

			apps := NewMenuCatalogBuilder(path, menuRegistry()).Build(context.Background())

			assert.Len(t, apps, 4)
			assert.Contains(t, readFile(t, path), "MenuAppList Version 1\n")
		})
	}
}

func TestMenuDropsUnresolvedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu_apps.txt")
	writeMenu(t, path, "MenuAppList Version 1\nNFC\n\nGone App\n/ext/apps/missing.fap\nStorage Move\n")

	apps := NewMenuCatalogBuilder(path, menuRegistry()).Build(context.Background())

	assert.Equal(t, []string{"NFC", "Storage Move"}, labels(apps))
}

func TestMenuResolvesImagePaths(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "snake.fap")
	writeMenu(t, image, "[manifest]\n")
	path := filepath.Join(dir, "menu_apps.txt")
	writeMenu(t, path, "MenuAppList Version 1\n"+image+"\nNFC\n")

	images := &fakeImageLoader{metas: map[string]ImageMeta{
		image: {Name: "Snake Deluxe", Icon: "snake_icon"},
	}}
	apps := NewMenuCatalogBuilder(path, menuRegistry(), WithMenuImages(images)).Build(context.Background())

	require.Len(t, apps, 2)
	assert.Equal(t, MenuApp{Label: "Snake Deluxe", Icon: "snake_icon", Exe: image}, apps[0])

	// Without an image loader the path cannot be resolved.
	apps = NewMenuCatalogBuilder(path, menuRegistry()).Build(context.Background())
	assert.Equal(t, []string{"NFC"}, labels(apps))
}

func TestMenuMergesLegacyApps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "menu_apps.txt")
	legacy := filepath.Join(dir, "favorites.txt")
	writeMenu(t, legacy, "Storage Move")

	apps := NewMenuCatalogBuilder(path, menuRegistry(), WithLegacyAppsPath(legacy)).Build(context.Background())

	assert.Equal(t, "MenuAppList Version 1\nSub-GHz\n125 kHz RFID\nNFC\nSnake\nStorage Move\n", readFile(t, path))
	assert.Equal(t, "Storage Move", apps[len(apps)-1].Label)

	_, err := os.Stat(legacy)
	assert.True(t, errors.Is(err, os.ErrNotExist), "legacy file removed after merge")
}

// recordingStorage counts the operations that reach the underlying storage
// and fails the first writeFailures writes
type recordingStorage struct {
	*storage.FS

	mu            sync.Mutex
	opened        []string
	writes        int
	writeFailures int
}

func (s *recordingStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.opened = append(s.opened, path)
	s.mu.Unlock()
	return s.FS.Open(ctx, path)
}

func (s *recordingStorage) WriteFile(ctx context.Context, path string, data []byte, perm fs.FileMode) error {
	s.mu.Lock()
	s.writes++
	fail := s.writes <= s.writeFailures
	s.mu.Unlock()
	if fail {
		return fs.ErrPermission
	}
	return s.FS.WriteFile(ctx, path, data, perm)
}

func TestMenuFileAccessGoesThroughStorage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "menu_apps.txt")
	legacy := filepath.Join(dir, "favorites.txt")
	writeMenu(t, legacy, "Storage Move\n")

	st := &recordingStorage{FS: storage.New()}
	apps := NewMenuCatalogBuilder(path, menuRegistry(),
		WithLegacyAppsPath(legacy),
		WithMenuStorage(st),
	).Build(context.Background())

	assert.Equal(t, 1, st.writes)
	assert.Equal(t, []string{path, legacy, path}, st.opened)
	assert.Equal(t, "Storage Move", apps[len(apps)-1].Label)
}

func TestMenuWriteFailureKeepsLegacyApps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "menu_apps.txt")
	legacy := filepath.Join(dir, "favorites.txt")
	writeMenu(t, legacy, "Storage Move\n")

	st := &recordingStorage{FS: storage.New(), writeFailures: 1}
	apps := NewMenuCatalogBuilder(path, menuRegistry(),
		WithLegacyAppsPath(legacy),
		WithMenuStorage(st),
	).Build(context.Background())

	assert.Empty(t, apps)
	assert.Equal(t, "Storage Move\n", readFile(t, legacy))
}

func TestMenuRegenerationFailureYieldsEmptyCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "menu_apps.txt")

	apps := NewMenuCatalogBuilder(path, menuRegistry()).Build(context.Background())
	assert.Empty(t, apps)
}

func TestParseMenuHeader(t *testing.T) {
	tests := []struct {
		line    string
		version uint64
		wantErr bool
	}{
		{"MenuAppList Version 1", 1, false},
		{"MenuAppList Version 0", 0, false},
		{"MenuAppList Version 1\r", 1, false},
		{"MenuAppList Version 2", 0, true},
		{"MenuAppList Version -1", 0, true},
		{"MenuAppList Version", 0, true},
		{"menuapplist version 1", 0, true},
	}

	for _, tt := range tests {
		version, err := parseMenuHeader(tt.line)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrMenuVersion, tt.line)
			continue
		}
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.version, version, tt.line)
	}
}

func TestSupervisorBuildsMenuOnNormalBoot(t *testing.T) {
	dir := t.TempDir()

	sup, err := New(menuRegistry(), WithMenuCatalog(filepath.Join(dir, "menu_apps.txt"), ""))
	require.NoError(t, err)
	catalog := sup.MenuCatalog()
	assert.Len(t, catalog, 4)

	catalog[0].Label = "changed"
	assert.Equal(t, "Sub-GHz", sup.MenuCatalog()[0].Label, "catalog is immutable")

	dfu, err := New(menuRegistry(), WithMenuCatalog(filepath.Join(dir, "dfu.txt"), ""), WithBootMode(BootModeDFU))
	require.NoError(t, err)
	assert.Empty(t, dfu.MenuCatalog())
	_, err = os.Stat(filepath.Join(dir, "dfu.txt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
