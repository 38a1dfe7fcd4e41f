package loader

import (
	"context"
	"sync"

	"vawter.tech/stopper"
)

// AppFunc is the entry point of an application. The return value is the
// exit code, which is logged and never surfaced to callers.
type AppFunc func(app *AppContext) int32

// SignalHandler handles an out-of-band signal delivered to a running
// application. It reports whether the signal was handled.
type SignalHandler func(signal uint32, arg any) bool

// AppContext is handed to a running application
type AppContext struct {
	context.Context

	// Args is the argument string the application was started with
	Args string

	mu      sync.Mutex
	handler SignalHandler
}

// SetSignalHandler installs the handler for Supervisor.Signal
func (a *AppContext) SetSignalHandler(h SignalHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

func (a *AppContext) signal(signal uint32, arg any) bool {
	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()

	if h == nil {
		return false
	}
	return h(signal, arg)
}

// Thread is an execution context for one application run
type Thread interface {
	// Name returns the thread name
	Name() string
	// AppID returns the diagnostic application id
	AppID() string
	// SetAppID tags the thread for diagnostics
	SetAppID(id string)
	// SetStopCallback registers fn to be called once the entry returned
	SetStopCallback(fn func())
	// Start runs the entry point
	Start()
	// Join waits for the entry to return and yields its exit code
	Join() int32
	// Signal delivers an out-of-band signal to the application
	Signal(signal uint32, arg any) bool
	// Release frees the thread after Join
	Release()
}

// Runtime allocates execution contexts
type Runtime interface {
	NewThread(name string, stackSize int, entry AppFunc, args string) Thread
}

// GoroutineRuntime runs each application on a goroutine owned by a stopper
// context, so shutting the runtime down cancels every application context.
type GoroutineRuntime struct {
	sctx *stopper.Context
}

// NewGoroutineRuntime creates a runtime bound to ctx
func NewGoroutineRuntime(ctx context.Context) *GoroutineRuntime {
	return &GoroutineRuntime{sctx: stopper.WithContext(ctx)}
}

// NewThread allocates a thread; stackSize is recorded but not enforced
func (r *GoroutineRuntime) NewThread(name string, stackSize int, entry AppFunc, args string) Thread {
	return &goroutineThread{
		rt:        r,
		name:      name,
		stackSize: stackSize,
		entry:     entry,
		app:       &AppContext{Args: args},
		done:      make(chan struct{}),
	}
}

// Stop stops every running application context, waiting up to the grace
// period for entries to return
func (r *GoroutineRuntime) Stop(ctx context.Context) error {
	r.sctx.Stop(0)
	done := make(chan error, 1)
	go func() { done <- r.sctx.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type goroutineThread struct {
	rt        *GoroutineRuntime
	name      string
	stackSize int
	entry     AppFunc
	app       *AppContext

	mu       sync.Mutex
	appID    string
	onStop   func()
	code     int32
	done     chan struct{}
	released bool
}

func (t *goroutineThread) Name() string {
	return t.name
}

func (t *goroutineThread) AppID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appID
}

func (t *goroutineThread) SetAppID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appID = id
}

func (t *goroutineThread) SetStopCallback(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStop = fn
}

func (t *goroutineThread) finish(code int32) {
	t.mu.Lock()
	t.code = code
	onStop := t.onStop
	t.mu.Unlock()

	close(t.done)
	if onStop != nil {
		onStop()
	}
}

func (t *goroutineThread) Start() {
	accepted := t.rt.sctx.Go(func(sctx *stopper.Context) error {
		t.app.Context = sctx
		t.finish(t.entry(t.app))
		return nil
	})
	if !accepted {
		// The runtime is stopping; report the run as finished so the slot is freed.
		go t.finish(-1)
	}
}

func (t *goroutineThread) Join() int32 {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.code
}

func (t *goroutineThread) Signal(signal uint32, arg any) bool {
	select {
	case <-t.done:
		return false
	default:
	}
	return t.app.signal(signal, arg)
}

func (t *goroutineThread) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	t.onStop = nil
	t.app.SetSignalHandler(nil)
}
