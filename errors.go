package loader

import (
	"errors"
	"fmt"
)

// Common errors returned by loader operations
var (
	// ErrUnknownApp indicates no catalog resolved the requested name
	ErrUnknownApp = errors.New("loader: unknown app")

	// ErrAppStarted indicates the foreground slot is already occupied
	ErrAppStarted = errors.New("loader: app started")

	// ErrInvalidFile indicates an image could not be read or parsed
	ErrInvalidFile = errors.New("loader: invalid file")

	// ErrInvalidManifest indicates an image manifest is malformed
	ErrInvalidManifest = errors.New("loader: invalid manifest")

	// ErrMissingImports indicates an image needs symbols the firmware lacks
	ErrMissingImports = errors.New("loader: missing imports")

	// ErrHWMismatch indicates an image targets different hardware
	ErrHWMismatch = errors.New("loader: hardware target mismatch")

	// ErrOutdatedApp indicates an image was built against an older API
	ErrOutdatedApp = errors.New("loader: outdated app")

	// ErrOutdatedFirmware indicates an image needs a newer API
	ErrOutdatedFirmware = errors.New("loader: outdated firmware")

	// ErrOutOfMemory indicates an image does not fit in memory
	ErrOutOfMemory = errors.New("loader: out of memory")

	// ErrPluginNotRunnable indicates the image is a plugin
	ErrPluginNotRunnable = errors.New("loader: plugin not runnable")

	// ErrInternal is the generic load failure
	ErrInternal = errors.New("loader: internal error")

	// ErrNotLocked indicates Unlock was called without a sentinel hold
	ErrNotLocked = errors.New("loader: not locked")

	// ErrStopped indicates the supervisor loop is no longer running
	ErrStopped = errors.New("loader: supervisor stopped")

	// ErrMenuVersion indicates the menu file header is missing or unsupported
	ErrMenuVersion = errors.New("loader: unsupported menu file version")
)

// StartError is the error form of a failed Result
type StartError struct {
	// Status is the outcome class
	Status Status
	// Kind is the failure classification
	Kind ErrorKind
	// Message is the free-text description
	Message string
}

// Error returns a formatted error message
func (e *StartError) Error() string {
	return fmt.Sprintf("loader %s (%s): %s", e.Status, e.Kind, e.Message)
}

// Unwrap returns the sentinel error for the failure kind
func (e *StartError) Unwrap() error {
	switch e.Status {
	case StatusAppStarted:
		return ErrAppStarted
	case StatusUnknownApp:
		return ErrUnknownApp
	}
	return kindError(e.Kind)
}

func kindError(k ErrorKind) error {
	switch k {
	case KindUnknownApp:
		return ErrUnknownApp
	case KindAppStarted:
		return ErrAppStarted
	case KindInvalidFile:
		return ErrInvalidFile
	case KindInvalidManifest:
		return ErrInvalidManifest
	case KindMissingImports:
		return ErrMissingImports
	case KindHWMismatch:
		return ErrHWMismatch
	case KindOutdatedApp:
		return ErrOutdatedApp
	case KindOutdatedFirmware:
		return ErrOutdatedFirmware
	case KindOutOfMemory:
		return ErrOutOfMemory
	case KindPluginNotRunnable:
		return ErrPluginNotRunnable
	default:
		return ErrInternal
	}
}

// MultiError aggregates multiple errors from boot hooks
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Unwrap exposes the accumulated errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
