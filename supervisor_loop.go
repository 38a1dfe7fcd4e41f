package loader

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// messageKind is the closed set of requests the Supervisor handles
type messageKind int

const (
	msgStart messageKind = iota
	msgStartDetached
	msgLock
	msgUnlock
	msgIsLocked
	msgShowOverlay
	msgOverlayClosed
	msgAppClosed
	msgSignal
	msgApplicationName
	msgOverlay
)

// messageKind string constants
const (
	msgStartStr           = "start"
	msgStartDetachedStr   = "start_detached"
	msgLockStr            = "lock"
	msgUnlockStr          = "unlock"
	msgIsLockedStr        = "is_locked"
	msgShowOverlayStr     = "show_overlay"
	msgOverlayClosedStr   = "overlay_closed"
	msgAppClosedStr       = "app_closed"
	msgSignalStr          = "signal"
	msgApplicationNameStr = "application_name"
	msgOverlayStr         = "overlay"
	msgUnknownStr         = "unknown"
)

// String returns the string representation of a messageKind
func (k messageKind) String() string {
	switch k {
	case msgStart:
		return msgStartStr
	case msgStartDetached:
		return msgStartDetachedStr
	case msgLock:
		return msgLockStr
	case msgUnlock:
		return msgUnlockStr
	case msgIsLocked:
		return msgIsLockedStr
	case msgShowOverlay:
		return msgShowOverlayStr
	case msgOverlayClosed:
		return msgOverlayClosedStr
	case msgAppClosed:
		return msgAppClosedStr
	case msgSignal:
		return msgSignalStr
	case msgApplicationName:
		return msgApplicationNameStr
	case msgOverlay:
		return msgOverlayStr
	default:
		return msgUnknownStr
	}
}

type message struct {
	kind    messageKind
	name    string
	args    string
	overlay Overlay
	runID   uuid.UUID
	signal  uint32
	arg     any

	// reply is nil for detached requests
	reply chan reply
}

type reply struct {
	result   Result
	ok       bool
	name     string
	overlays OverlayState
	err      error
}

func (s *Supervisor) dispatch(msg message) {
	var r reply

	switch msg.kind {
	case msgStart:
		r.result = s.doStart(msg.name, msg.args)
	case msgStartDetached:
		res := s.doStart(msg.name, msg.args)
		s.presentError(res, msg.name)
	case msgLock:
		r.ok = s.doLock()
	case msgUnlock:
		r.err = s.doUnlock()
	case msgIsLocked:
		r.ok = s.slot.state != slotEmpty
	case msgShowOverlay:
		s.doShowOverlay(msg.overlay)
	case msgOverlayClosed:
		s.doOverlayClosed(msg.overlay)
	case msgAppClosed:
		s.doAppClosed(msg.runID)
	case msgSignal:
		r.ok = s.doSignal(msg.signal, msg.arg)
	case msgApplicationName:
		r.name, r.ok = s.doApplicationName()
	case msgOverlay:
		r.overlays = s.overlays
	default:
		s.metrics.observeLogicError()
		s.logger.Error("unhandled message", zap.Stringer("kind", msg.kind))
	}

	if msg.reply != nil {
		msg.reply <- r
	}
}

func (s *Supervisor) doLock() bool {
	if s.slot.state != slotEmpty {
		return false
	}
	s.slot.state = slotSentinel
	return true
}

func (s *Supervisor) doUnlock() error {
	if s.slot.state != slotSentinel {
		s.logger.Error("unlock without lock", zap.Int("state", int(s.slot.state)))
		return ErrNotLocked
	}
	s.slot.clear()
	return nil
}

func (s *Supervisor) doSignal(signal uint32, arg any) bool {
	app, ok := s.slot.running()
	if !ok {
		return false
	}
	return app.thread.Signal(signal, arg)
}

func (s *Supervisor) doApplicationName() (string, bool) {
	app, ok := s.slot.running()
	if !ok {
		return "", false
	}
	return app.thread.Name(), true
}

// launch occupies the slot with thread and starts it. The stop callback only
// posts a message; cleanup happens in doAppClosed on the Supervisor goroutine.
func (s *Supervisor) launch(thread Thread, image Image, args string, flags Flags) {
	app := &runningApp{
		runID:   uuid.New(),
		thread:  thread,
		args:    args,
		image:   image,
		started: time.Now(),
	}

	if flags.wantsWakeLock() {
		s.power.EnterWakeLock()
		app.wakeLock = true
	}

	runID := app.runID
	thread.SetStopCallback(func() {
		if err := s.post(context.Background(), message{kind: msgAppClosed, runID: runID}); err != nil {
			s.logger.Warn("app closed after supervisor stopped", zap.String("run_id", runID.String()))
		}
	})

	s.slot.occupy(app)
	s.metrics.observeRunning(true, app.wakeLock)
	thread.Start()
}

// doAppClosed releases everything a run owned. It runs once per run; a
// notification that does not match the running app is a logic error.
func (s *Supervisor) doAppClosed(runID uuid.UUID) {
	app, ok := s.slot.running()
	if !ok || app.runID != runID {
		s.metrics.observeLogicError()
		s.logger.Error("app closed notification without matching app",
			zap.String("run_id", runID.String()),
			zap.Int("state", int(s.slot.state)))
		return
	}

	code := app.thread.Join()
	name := app.thread.Name()
	s.logger.Info("app returned",
		zap.String("app", name),
		zap.Int32("code", code),
		zap.Duration("uptime", time.Since(app.started)))

	app.args = ""

	if app.wakeLock {
		s.power.ExitWakeLock()
		app.wakeLock = false
	}

	if app.image != nil {
		app.image.Release()
		app.image = nil
	} else {
		app.thread.Release()
	}
	app.thread = nil

	s.bus.Publish(Event{Type: EventStopped, Name: name, RunID: runID})
	s.slot.clear()

	s.metrics.observeStop()
	s.metrics.observeRunning(false, false)
	s.logger.Info("application stopped", zap.String("app", name))
}
