package loader

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
)

// FirmwareAPI is the symbol interface images are bound against
type FirmwareAPI struct {
	// Version is the firmware API version
	Version APIVersion
	// Target is the hardware target of this firmware
	Target uint16
	// Symbols are the exported firmware symbols images may import
	Symbols map[string]struct{}
	// Entries are the entry points images may name as their entry symbol
	Entries map[string]AppFunc
}

// manifestFile is the on-storage layout of an image manifest
type manifestFile struct {
	Manifest struct {
		Name         string   `toml:"name"`
		Icon         string   `toml:"icon"`
		APIMajor     uint16   `toml:"api_major"`
		APIMinor     uint16   `toml:"api_minor"`
		Target       uint16   `toml:"target"`
		StackSize    int      `toml:"stack_size"`
		InsomniaSafe bool     `toml:"insomnia_safe"`
		Plugin       bool     `toml:"plugin"`
		Entry        string   `toml:"entry"`
		Imports      []string `toml:"imports"`
	} `toml:"manifest"`
}

func (f *manifestFile) toManifest() Manifest {
	m := f.Manifest
	flags := FlagDefault
	if m.InsomniaSafe {
		flags |= FlagInsomniaSafe
	}
	return Manifest{
		Name:      m.Name,
		Icon:      m.Icon,
		API:       APIVersion{Major: m.APIMajor, Minor: m.APIMinor},
		Target:    m.Target,
		StackSize: m.StackSize,
		Flags:     flags,
		Plugin:    m.Plugin,
		Entry:     m.Entry,
		Imports:   m.Imports,
	}
}

// FileImageLoader loads images stored as TOML manifests and binds them
// against a FirmwareAPI
type FileImageLoader struct {
	// API is the firmware symbol interface
	API FirmwareAPI
	// Runtime creates threads for mapped images
	Runtime Runtime
	// MaxImageSize is the largest image accepted; zero disables the check
	MaxImageSize int64

	logger *zap.Logger
}

// FileImageLoaderOption configures a FileImageLoader
type FileImageLoaderOption func(*FileImageLoader)

// WithImageLogger sets the logger
func WithImageLogger(logger *zap.Logger) FileImageLoaderOption {
	return func(l *FileImageLoader) {
		l.logger = logger
	}
}

// WithMaxImageSize sets the memory budget for a single image
func WithMaxImageSize(n int64) FileImageLoaderOption {
	return func(l *FileImageLoader) {
		l.MaxImageSize = n
	}
}

// NewFileImageLoader creates a FileImageLoader
func NewFileImageLoader(api FirmwareAPI, rt Runtime, opts ...FileImageLoaderOption) *FileImageLoader {
	l := &FileImageLoader{
		API:     api,
		Runtime: rt,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open allocates an image handle for path
func (l *FileImageLoader) Open(path string) Image {
	return &fileImage{loader: l, path: path, preload: ClassUnknown}
}

// APIVersion returns the firmware API version
func (l *FileImageLoader) APIVersion() APIVersion {
	return l.API.Version
}

// LoadMeta reads the name and icon of the image at path
func (l *FileImageLoader) LoadMeta(path string) (ImageMeta, error) {
	mf, err := decodeManifest(path)
	if err != nil {
		return ImageMeta{}, err
	}
	if mf.Manifest.Name == "" {
		return ImageMeta{}, fmt.Errorf("%s: %w", path, ErrInvalidManifest)
	}
	return ImageMeta{Name: mf.Manifest.Name, Icon: mf.Manifest.Icon}, nil
}

func decodeManifest(path string) (*manifestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	var mf manifestFile
	if _, err := toml.Decode(string(data), &mf); err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, ErrInvalidFile)
	}
	return &mf, nil
}

type fileImage struct {
	loader   *FileImageLoader
	path     string
	manifest Manifest
	preload  Classification
	entry    AppFunc
	thread   Thread
}

func (img *fileImage) Preload() Classification {
	img.preload = img.doPreload()
	return img.preload
}

func (img *fileImage) doPreload() Classification {
	l := img.loader

	info, err := os.Stat(img.path)
	if err != nil || info.IsDir() {
		return ClassInvalidFile
	}
	if l.MaxImageSize > 0 && info.Size() > l.MaxImageSize {
		return ClassNotEnoughMemory
	}

	mf, err := decodeManifest(img.path)
	if err != nil {
		l.logger.Warn("image decode failed", zap.String("path", img.path), zap.Error(err))
		return ClassInvalidFile
	}
	img.manifest = mf.toManifest()

	m := img.manifest
	if m.Name == "" || m.API.Major == 0 || (!m.Plugin && m.Entry == "") {
		return ClassInvalidManifest
	}
	if m.Target != 0 && m.Target != l.API.Target {
		return ClassTargetMismatch
	}
	return CheckAPIVersion(m.API, l.API.Version)
}

func (img *fileImage) Map() Classification {
	if img.preload != ClassSuccess && !img.preload.Recoverable() {
		return ClassUnknown
	}

	l := img.loader
	var missing []string
	for _, sym := range img.manifest.Imports {
		if _, ok := l.API.Symbols[sym]; !ok {
			missing = append(missing, sym)
		}
	}
	if !img.manifest.Plugin {
		entry, ok := l.API.Entries[img.manifest.Entry]
		if !ok {
			missing = append(missing, img.manifest.Entry)
		}
		img.entry = entry
	}
	if len(missing) > 0 {
		l.logger.Warn("unresolved symbols", zap.String("path", img.path), zap.Strings("symbols", missing))
		return ClassMissingImports
	}
	return ClassSuccess
}

func (img *fileImage) Manifest() Manifest {
	return img.manifest
}

func (img *fileImage) IsRunnable() bool {
	return !img.manifest.Plugin
}

func (img *fileImage) NewThread(args string) Thread {
	img.thread = img.loader.Runtime.NewThread(img.manifest.Name, img.manifest.StackSize, img.entry, args)
	return img.thread
}

func (img *fileImage) Release() {
	if img.thread != nil {
		img.thread.Release()
		img.thread = nil
	}
	img.entry = nil
}
