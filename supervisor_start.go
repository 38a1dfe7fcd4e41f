package loader

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

func (s *Supervisor) doStart(name, args string) Result {
	res := s.startByName(name, args)
	s.metrics.observeStart(res)
	return res
}

func (s *Supervisor) statusError(status Status, kind ErrorKind, format string, a ...any) Result {
	msg := fmt.Sprintf(format, a...)
	s.logger.Error("start failed",
		zap.Int("status", int(status)),
		zap.Stringer("kind", kind),
		zap.String("message", msg))
	return Result{Status: status, Kind: kind, Message: msg}
}

func success() Result {
	return Result{Status: StatusOK, Kind: KindUnknown, Message: "App started"}
}

func (s *Supervisor) startByName(name, args string) Result {
	switch s.slot.state {
	case slotSentinel:
		return s.statusError(StatusAppStarted, KindAppStarted, "Loader is locked")
	case slotOccupied:
		return s.statusError(StatusAppStarted, KindAppStarted,
			"Loader is locked, please close the %q first", s.slot.app.thread.Name())
	}

	name = s.registry.Canonical(name)

	if d, ok := s.registry.FindBuiltin(name); ok {
		s.startBuiltin(d, args)
		return success()
	}

	if name == ApplicationsName {
		s.doShowOverlay(OverlayApplications)
		return success()
	}

	d, ok := s.registry.FindExternal(name)
	if !ok {
		d = pathDescriptor(name)
	}

	if s.images != nil && s.storage.Exists(d.Path) {
		return s.startImage(d, args)
	}

	return s.statusError(StatusUnknownApp, KindUnknownApp, "Application %q not found", d.Path)
}

func (s *Supervisor) startBuiltin(d *Descriptor, args string) {
	s.logger.Info("starting", zap.String("app", d.Name))
	s.bus.Publish(Event{Type: EventBeforeLoad, Name: d.Name})

	thread := s.runtime.NewThread(d.Name, d.StackSize, d.Entry, args)
	thread.SetAppID(d.AppID)
	s.launch(thread, nil, args, d.Flags)
}

// pathDescriptor describes an image addressed directly by its storage path
func pathDescriptor(path string) *Descriptor {
	return &Descriptor{
		Kind:  KindExternalPath,
		Name:  path,
		AppID: imageAppID(path),
		Path:  path,
	}
}

// startImage sequences an image launch. Any failure releases the image and
// publishes EventLoadFailed, leaving the slot empty. An alias's flags
// override the manifest; a direct path runs with the manifest's own.
func (s *Supervisor) startImage(d *Descriptor, args string) Result {
	path := d.Path
	s.bus.Publish(Event{Type: EventBeforeLoad, Name: path})

	img := s.images.Open(path)
	res, ok := s.loadImage(img, path)
	if !ok {
		img.Release()
		s.bus.Publish(Event{Type: EventLoadFailed, Name: path})
		return res
	}

	flags := img.Manifest().Flags
	if d.Kind != KindExternalPath {
		flags = d.Flags
	}

	appID := d.AppID
	if appID == "" {
		appID = imageAppID(path)
	}
	thread := img.NewThread(args)
	thread.SetAppID(appID)
	s.launch(thread, img, args, flags)
	return success()
}

// loadImage runs the two-phase load: classify the preload, map only if the
// preload succeeded or is a recoverable mismatch, then resolve the final
// status. A pending mismatch takes precedence over a mapping failure.
func (s *Supervisor) loadImage(img Image, path string) (Result, bool) {
	s.logger.Info("loading", zap.String("path", path))
	begin := time.Now()

	preload := img.Preload()
	if preload != ClassSuccess && !preload.Recoverable() {
		return s.preloadFailure(StatusInternal, path, preload), false
	}

	mapped := img.Map()
	elapsed := time.Since(begin)
	s.metrics.observeLoad(elapsed)
	s.logger.Info("loaded", zap.String("path", path), zap.Duration("elapsed", elapsed))

	if mapped != ClassSuccess {
		if preload.Recoverable() {
			return s.preloadFailure(StatusInternal, path, preload), false
		}
		return s.statusError(StatusInternal, mapped.Kind(), "Load failed, %s: %s", path, mapped), false
	}

	if preload.Recoverable() && !s.confirmMismatch(img.Manifest(), preload) {
		return s.preloadFailure(StatusDeclined, path, preload), false
	}

	if !img.IsRunnable() {
		return s.statusError(StatusInternal, KindPluginNotRunnable, "Plugin %s is not runnable", path), false
	}

	return Result{}, true
}

func (s *Supervisor) preloadFailure(status Status, path string, c Classification) Result {
	return s.statusError(status, c.Kind(), "Preload failed, %s: %s", path, c)
}

// imageAppID derives the diagnostic id from the image file name
func imageAppID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
