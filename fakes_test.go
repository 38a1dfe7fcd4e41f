package loader

import (
	"context"
	"io"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// gate is a built-in application entry that runs until released
type gate struct {
	ready   chan struct{}
	release chan struct{}
	code    int32
	once    sync.Once
}

func newGate(code int32) *gate {
	return &gate{
		ready:   make(chan struct{}),
		release: make(chan struct{}),
		code:    code,
	}
}

func (g *gate) entry(app *AppContext) int32 {
	close(g.ready)
	<-g.release
	return g.code
}

func (g *gate) open() {
	g.once.Do(func() { close(g.release) })
}

func (g *gate) waitReady(t *testing.T) {
	t.Helper()
	select {
	case <-g.ready:
	case <-time.After(waitTimeout):
		t.Fatal("application did not start")
	}
}

type fakePresenter struct {
	mu      sync.Mutex
	answer  Button
	dialogs []Dialog
}

func (p *fakePresenter) Show(d Dialog) Button {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialogs = append(p.dialogs, d)
	return p.answer
}

func (p *fakePresenter) shown() []Dialog {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Dialog, len(p.dialogs))
	copy(out, p.dialogs)
	return out
}

type fakeOverlays struct {
	mu     sync.Mutex
	opened []Overlay
	closed map[Overlay]func()
}

func (o *fakeOverlays) Open(ov Overlay, closed func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, ov)
	if o.closed == nil {
		o.closed = make(map[Overlay]func())
	}
	o.closed[ov] = closed
}

func (o *fakeOverlays) close(ov Overlay) {
	o.mu.Lock()
	fn := o.closed[ov]
	o.mu.Unlock()
	fn()
}

func (o *fakeOverlays) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}

func (o *fakeOverlays) openedSoFar() []Overlay {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Overlay, len(o.opened))
	copy(out, o.opened)
	return out
}

// fakeStorage reports a fixed set of paths as existing
type fakeStorage struct {
	paths map[string]bool
}

func (s *fakeStorage) Exists(path string) bool {
	return s.paths[path]
}

func (s *fakeStorage) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, fs.ErrNotExist
}

func (s *fakeStorage) WriteFile(context.Context, string, []byte, fs.FileMode) error {
	return fs.ErrPermission
}

func (s *fakeStorage) Remove(string) error {
	return nil
}

type fakeImage struct {
	rt       Runtime
	preload  Classification
	mapped   Classification
	manifest Manifest
	entry    AppFunc

	mapCalls atomic.Int32
	released atomic.Int32
	thread   Thread
}

func (img *fakeImage) Preload() Classification {
	return img.preload
}

func (img *fakeImage) Map() Classification {
	img.mapCalls.Add(1)
	return img.mapped
}

func (img *fakeImage) Manifest() Manifest {
	return img.manifest
}

func (img *fakeImage) IsRunnable() bool {
	return !img.manifest.Plugin
}

func (img *fakeImage) NewThread(args string) Thread {
	img.thread = img.rt.NewThread(img.manifest.Name, img.manifest.StackSize, img.entry, args)
	return img.thread
}

func (img *fakeImage) Release() {
	img.released.Add(1)
	if img.thread != nil {
		img.thread.Release()
	}
}

type fakeImageLoader struct {
	api    APIVersion
	images map[string]*fakeImage
	metas  map[string]ImageMeta
}

func (l *fakeImageLoader) Open(path string) Image {
	return l.images[path]
}

func (l *fakeImageLoader) LoadMeta(path string) (ImageMeta, error) {
	meta, ok := l.metas[path]
	if !ok {
		return ImageMeta{}, ErrInvalidFile
	}
	return meta, nil
}

func (l *fakeImageLoader) APIVersion() APIVersion {
	return l.api
}

// harness runs a Supervisor for the duration of a test
type harness struct {
	sup       *Supervisor
	power     *WakeLock
	presenter *fakePresenter
	overlays  *fakeOverlays
	events    chan Event
	resets    atomic.Int32
}

func newHarness(t *testing.T, reg *Registry, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		presenter: &fakePresenter{},
		overlays:  &fakeOverlays{},
		events:    make(chan Event, 64),
	}
	h.power = &WakeLock{OnReset: func() { h.resets.Add(1) }}

	bus := NewEventBus()
	bus.Subscribe(func(ev Event) { h.events <- ev })

	base := []Option{
		WithPower(h.power),
		WithPresenter(h.presenter),
		WithOverlays(h.overlays),
		WithEventBus(bus),
	}
	sup, err := New(reg, append(base, opts...)...)
	require.NoError(t, err)
	h.sup = sup

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- sup.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-errc
	})
	return h
}

func (h *harness) waitEvent(t *testing.T, typ EventType) Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-h.events:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", typ)
			return Event{}
		}
	}
}

func (h *harness) drainEvents() []Event {
	var out []Event
	for {
		select {
		case ev := <-h.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}
