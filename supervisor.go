package loader

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/axondata/go-loader/internal/storage"
)

// Supervisor owns the foreground slot. All state changes happen on the
// goroutine executing Run; every public method is a request to it.
type Supervisor struct {
	registry  *Registry
	images    ImageLoader
	runtime   Runtime
	storage   Storage
	presenter Presenter
	power     Power
	overlayUI OverlayOpener
	bus       *EventBus
	metrics   *Metrics
	logger    *zap.Logger

	menuPath       string
	legacyAppsPath string
	menu           []MenuApp
	autorun        string
	bootMode       BootMode
	hooks          []func() error
	appsRoot       string

	requests chan message
	done     chan struct{}
	started  atomic.Bool

	// Owned by the Run goroutine.
	slot     slot
	overlays OverlayState
}

// Option configures a Supervisor
type Option func(*Supervisor)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithMetrics enables Prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// WithImageLoader enables dynamically loaded images
func WithImageLoader(images ImageLoader) Option {
	return func(s *Supervisor) {
		s.images = images
	}
}

// WithRuntime sets the execution runtime for built-in applications
func WithRuntime(rt Runtime) Option {
	return func(s *Supervisor) {
		s.runtime = rt
	}
}

// WithStorage sets the storage used for path checks and the menu file
func WithStorage(st Storage) Option {
	return func(s *Supervisor) {
		s.storage = st
	}
}

// WithPresenter sets the dialog presenter
func WithPresenter(p Presenter) Option {
	return func(s *Supervisor) {
		s.presenter = p
	}
}

// WithPower sets the wake-lock and reset controller
func WithPower(p Power) Option {
	return func(s *Supervisor) {
		s.power = p
	}
}

// WithOverlays sets the overlay UI opener
func WithOverlays(o OverlayOpener) Option {
	return func(s *Supervisor) {
		s.overlayUI = o
	}
}

// WithEventBus sets the event bus
func WithEventBus(b *EventBus) Option {
	return func(s *Supervisor) {
		s.bus = b
	}
}

// WithMenuCatalog builds the menu catalog from the file at path at
// construction, merging legacyAppsPath when regenerating
func WithMenuCatalog(path, legacyAppsPath string) Option {
	return func(s *Supervisor) {
		s.menuPath = path
		s.legacyAppsPath = legacyAppsPath
	}
}

// WithAutorun sets the application started by Run on a normal boot
func WithAutorun(name string) Option {
	return func(s *Supervisor) {
		s.autorun = name
	}
}

// WithBootMode sets the boot mode
func WithBootMode(m BootMode) Option {
	return func(s *Supervisor) {
		s.bootMode = m
	}
}

// WithStartHooks adds hooks executed once by Run before autorun
func WithStartHooks(hooks ...func() error) Option {
	return func(s *Supervisor) {
		s.hooks = append(s.hooks, hooks...)
	}
}

// WithAppsRoot sets the images directory stripped from presented messages
func WithAppsRoot(root string) Option {
	return func(s *Supervisor) {
		s.appsRoot = root
	}
}

// New creates a Supervisor for registry. On a normal boot with a menu file
// configured, the menu catalog is built here and never changes afterwards.
func New(registry *Registry, opts ...Option) (*Supervisor, error) {
	if registry == nil {
		return nil, errors.New("loader: registry is required")
	}

	s := &Supervisor{
		registry:  registry,
		storage:   storage.New(),
		overlayUI: noopOverlays{},
		bus:       NewEventBus(),
		logger:    zap.NewNop(),
		appsRoot:  DefaultAppsRoot,
		requests:  make(chan message, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.runtime == nil {
		s.runtime = NewGoroutineRuntime(context.Background())
	}
	if s.power == nil {
		s.power = &WakeLock{}
	}
	if s.presenter == nil {
		s.presenter = LogPresenter{Logger: s.logger}
	}

	if s.bootMode == BootModeNormal && s.menuPath != "" {
		builder := NewMenuCatalogBuilder(s.menuPath, registry,
			WithMenuStorage(s.storage),
			WithMenuImages(s.images),
			WithMenuLogger(s.logger),
			WithLegacyAppsPath(s.legacyAppsPath),
		)
		s.menu = builder.Build(context.Background())
	}

	return s, nil
}

// Run executes boot hooks and autorun, then processes requests until ctx is
// done. It may be called once.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("loader: supervisor already running")
	}
	defer close(s.done)

	s.logger.Info("executing system start hooks", zap.Int("count", len(s.hooks)))
	merr := &MultiError{}
	for _, hook := range s.hooks {
		merr.Add(hook())
	}
	if err := merr.Err(); err != nil {
		s.logger.Error("system start hooks failed", zap.Error(err))
	}

	if s.bootMode == BootModeNormal && s.autorun != "" {
		s.logger.Info("starting autorun app", zap.String("app", s.autorun))
		s.doStart(s.autorun, "")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-s.requests:
			s.dispatch(msg)
		}
	}
}

// Start launches name with args and waits for the outcome. The returned
// error is only set when the request could not be delivered.
func (s *Supervisor) Start(ctx context.Context, name, args string) (Result, error) {
	r, err := s.call(ctx, message{kind: msgStart, name: name, args: args})
	return r.result, err
}

// StartWithError is Start followed by the built-in error presentation
func (s *Supervisor) StartWithError(ctx context.Context, name, args string) (Result, error) {
	res, err := s.Start(ctx, name, args)
	if err != nil {
		return res, err
	}
	s.presentError(res, name)
	return res, nil
}

// StartDetached queues a start and returns without waiting. Failures are
// presented by the Supervisor.
func (s *Supervisor) StartDetached(ctx context.Context, name, args string) error {
	return s.post(ctx, message{
		kind: msgStartDetached,
		name: strings.Clone(name),
		args: strings.Clone(args),
	})
}

// Lock occupies the empty slot without an application and reports whether
// it succeeded
func (s *Supervisor) Lock(ctx context.Context) (bool, error) {
	r, err := s.call(ctx, message{kind: msgLock})
	return r.ok, err
}

// Unlock releases a hold taken by Lock. It returns ErrNotLocked when the
// slot is empty or occupied by an application.
func (s *Supervisor) Unlock(ctx context.Context) error {
	r, err := s.call(ctx, message{kind: msgUnlock})
	if err != nil {
		return err
	}
	return r.err
}

// IsLocked reports whether the slot is occupied by an application or a lock
func (s *Supervisor) IsLocked(ctx context.Context) (bool, error) {
	r, err := s.call(ctx, message{kind: msgIsLocked})
	return r.ok, err
}

// Signal delivers signal to the running application. It reports false when
// no application is running.
func (s *Supervisor) Signal(ctx context.Context, signal uint32, arg any) (bool, error) {
	r, err := s.call(ctx, message{kind: msgSignal, signal: signal, arg: arg})
	return r.ok, err
}

// ApplicationName returns the name of the running application
func (s *Supervisor) ApplicationName(ctx context.Context) (string, bool, error) {
	r, err := s.call(ctx, message{kind: msgApplicationName})
	return r.name, r.ok, err
}

// ShowMenu opens the main menu overlay
func (s *Supervisor) ShowMenu(ctx context.Context) error {
	_, err := s.call(ctx, message{kind: msgShowOverlay, overlay: OverlayMenu})
	return err
}

// ShowSettings opens the menu overlay in settings mode
func (s *Supervisor) ShowSettings(ctx context.Context) error {
	_, err := s.call(ctx, message{kind: msgShowOverlay, overlay: OverlaySettings})
	return err
}

// Overlays returns the open overlays
func (s *Supervisor) Overlays(ctx context.Context) (OverlayState, error) {
	r, err := s.call(ctx, message{kind: msgOverlay})
	return r.overlays, err
}

// MenuCatalog returns a copy of the menu catalog built at construction
func (s *Supervisor) MenuCatalog() []MenuApp {
	apps := make([]MenuApp, len(s.menu))
	copy(apps, s.menu)
	return apps
}

// Events returns the lifecycle event bus
func (s *Supervisor) Events() *EventBus {
	return s.bus
}

// post enqueues msg. Blocking on a full queue is what serializes producers.
func (s *Supervisor) post(ctx context.Context, msg message) error {
	select {
	case s.requests <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStopped
	}
}

// call enqueues msg and waits for the Supervisor to apply it. Once queued the
// request is applied even if ctx is cancelled, so the wait ignores ctx.
func (s *Supervisor) call(ctx context.Context, msg message) (reply, error) {
	msg.reply = make(chan reply, 1)
	if err := s.post(ctx, msg); err != nil {
		return reply{}, err
	}
	select {
	case r := <-msg.reply:
		return r, nil
	case <-s.done:
		select {
		case r := <-msg.reply:
			return r, nil
		default:
			return reply{}, ErrStopped
		}
	}
}

// slotState is the occupancy of the foreground slot
type slotState int

const (
	slotEmpty slotState = iota
	slotSentinel
	slotOccupied
)

// slot holds the running application only in the occupied state
type slot struct {
	state slotState
	app   *runningApp
}

func (s *slot) running() (*runningApp, bool) {
	if s.state != slotOccupied {
		return nil, false
	}
	return s.app, true
}

func (s *slot) occupy(app *runningApp) {
	s.state = slotOccupied
	s.app = app
}

func (s *slot) clear() {
	s.state = slotEmpty
	s.app = nil
}

// runningApp is the resources of one run, released once by doAppClosed
type runningApp struct {
	runID    uuid.UUID
	thread   Thread
	args     string
	image    Image
	wakeLock bool
	started  time.Time
}
