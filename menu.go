package loader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/axondata/go-loader/internal/storage"
)

// Storage is the file access used for existence checks and persisted reads
// and writes
type Storage interface {
	Exists(path string) bool
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	WriteFile(ctx context.Context, path string, data []byte, perm fs.FileMode) error
	Remove(path string) error
}

// MenuApp is one entry of the menu catalog
type MenuApp struct {
	// Label is the display label
	Label string
	// Icon is the icon reference
	Icon string
	// Exe is what Start is called with: a registry name or an image path
	Exe string
}

// legacyLabels are the label renames applied to version 0 menu files
var legacyLabels = map[string]string{
	"RFID":   "125 kHz RFID",
	"SubGHz": "Sub-GHz",
}

// MenuCatalogBuilder builds the menu catalog from the persisted menu file
type MenuCatalogBuilder struct {
	// Path is the persisted menu file
	Path string
	// LegacyAppsPath is an optional older list of extra entries, merged into
	// a regenerated menu file and then removed
	LegacyAppsPath string
	// Registry resolves registry names
	Registry *Registry
	// Images reads display metadata of image paths; may be nil
	Images ImageLoader
	// Storage checks paths and opens the menu file
	Storage Storage

	logger *zap.Logger
}

// MenuOption configures a MenuCatalogBuilder
type MenuOption func(*MenuCatalogBuilder)

// WithMenuLogger sets the logger
func WithMenuLogger(logger *zap.Logger) MenuOption {
	return func(b *MenuCatalogBuilder) {
		b.logger = logger
	}
}

// WithMenuImages sets the image loader used to read image metadata
func WithMenuImages(images ImageLoader) MenuOption {
	return func(b *MenuCatalogBuilder) {
		b.Images = images
	}
}

// WithMenuStorage sets the storage
func WithMenuStorage(s Storage) MenuOption {
	return func(b *MenuCatalogBuilder) {
		b.Storage = s
	}
}

// WithLegacyAppsPath sets the legacy extra entries file
func WithLegacyAppsPath(path string) MenuOption {
	return func(b *MenuCatalogBuilder) {
		b.LegacyAppsPath = path
	}
}

// NewMenuCatalogBuilder creates a builder for the menu file at path
func NewMenuCatalogBuilder(path string, registry *Registry, opts ...MenuOption) *MenuCatalogBuilder {
	b := &MenuCatalogBuilder{
		Path:     path,
		Registry: registry,
		Storage:  storage.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build reads the menu file and resolves it into a catalog. A missing,
// unreadable or unsupported file is regenerated and read once more; if that
// also fails the catalog is empty. Lines that resolve to nothing are dropped.
func (b *MenuCatalogBuilder) Build(ctx context.Context) []MenuApp {
	version, lines, err := b.read(ctx)
	if err != nil {
		b.logger.Info("regenerating menu file", zap.String("path", b.Path), zap.Error(err))
		if err := b.Storage.Remove(b.Path); err != nil {
			b.logger.Warn("removing menu file failed", zap.String("path", b.Path), zap.Error(err))
		}
		if err := b.WriteMenuFile(ctx); err != nil {
			b.logger.Error("writing menu file failed", zap.String("path", b.Path), zap.Error(err))
			return nil
		}
		version, lines, err = b.read(ctx)
		if err != nil {
			b.logger.Error("menu file unusable after regeneration", zap.String("path", b.Path), zap.Error(err))
			return nil
		}
	}

	apps := make([]MenuApp, 0, len(lines))
	for _, line := range lines {
		if version == 0 {
			if renamed, ok := legacyLabels[line]; ok {
				line = renamed
			}
		}
		if app, ok := b.resolve(line); ok {
			apps = append(apps, app)
		} else {
			b.logger.Debug("dropping menu entry", zap.String("entry", line))
		}
	}
	return apps
}

// WriteMenuFile atomically writes a fresh menu file at the current version
func (b *MenuCatalogBuilder) WriteMenuFile(ctx context.Context) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s%d\n", MenuHeaderPrefix, MenuVersion)
	for _, name := range b.Registry.menuNames() {
		buf.WriteString(name)
		buf.WriteByte('\n')
	}

	legacy, err := b.readLegacyApps(ctx)
	if err != nil {
		b.logger.Warn("reading legacy apps file failed", zap.String("path", b.LegacyAppsPath), zap.Error(err))
	}
	buf.Write(legacy)

	if err := b.Storage.WriteFile(ctx, b.Path, buf.Bytes(), FileMode); err != nil {
		return fmt.Errorf("writing menu file: %w", err)
	}

	if legacy != nil {
		if err := b.Storage.Remove(b.LegacyAppsPath); err != nil {
			b.logger.Warn("removing legacy apps file failed", zap.String("path", b.LegacyAppsPath), zap.Error(err))
		}
	}
	return nil
}

func (b *MenuCatalogBuilder) readLegacyApps(ctx context.Context) ([]byte, error) {
	if b.LegacyAppsPath == "" || !b.Storage.Exists(b.LegacyAppsPath) {
		return nil, nil
	}
	f, err := b.Storage.Open(ctx, b.LegacyAppsPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	return data, nil
}

// read opens the menu file and returns its version and entry lines
func (b *MenuCatalogBuilder) read(ctx context.Context) (uint64, []string, error) {
	f, err := b.Storage.Open(ctx, b.Path)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return 0, nil, err
		}
		return 0, nil, ErrMenuVersion
	}
	version, err := parseMenuHeader(scanner.Text())
	if err != nil {
		return 0, nil, err
	}

	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return 0, nil, err
	}
	return version, lines, nil
}

func parseMenuHeader(line string) (uint64, error) {
	rest, ok := strings.CutPrefix(strings.TrimRight(line, "\r"), MenuHeaderPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: bad header %q", ErrMenuVersion, line)
	}
	version, err := strconv.ParseUint(strings.TrimSpace(rest), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMenuVersion, err)
	}
	if version > MenuVersion {
		return 0, fmt.Errorf("%w: %d", ErrMenuVersion, version)
	}
	return version, nil
}

func (b *MenuCatalogBuilder) resolve(line string) (MenuApp, bool) {
	if b.Storage.Exists(line) {
		if b.Images == nil {
			return MenuApp{}, false
		}
		meta, err := b.Images.LoadMeta(line)
		if err != nil {
			b.logger.Debug("image metadata unreadable", zap.String("path", line), zap.Error(err))
			return MenuApp{}, false
		}
		return MenuApp{Label: meta.Name, Icon: meta.Icon, Exe: line}, true
	}

	if d, ok := b.Registry.findMenuEntry(line); ok {
		return MenuApp{Label: d.Name, Icon: d.Icon, Exe: d.Name}, true
	}
	return MenuApp{}, false
}
