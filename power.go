package loader

import "sync/atomic"

// Power controls the device-wide wake-lock and reset
type Power interface {
	EnterWakeLock()
	ExitWakeLock()
	// Reset reboots the device
	Reset()
}

// WakeLock is an in-process Power implementation that counts wake-lock
// holders. Reset is delegated to OnReset when set.
type WakeLock struct {
	held    atomic.Int32
	OnReset func()
}

// EnterWakeLock increments the holder count
func (w *WakeLock) EnterWakeLock() {
	w.held.Add(1)
}

// ExitWakeLock decrements the holder count
func (w *WakeLock) ExitWakeLock() {
	if w.held.Add(-1) < 0 {
		panic("loader: wake-lock exit without enter")
	}
}

// Held returns the number of active holders
func (w *WakeLock) Held() int32 {
	return w.held.Load()
}

// Reset calls OnReset
func (w *WakeLock) Reset() {
	if w.OnReset != nil {
		w.OnReset()
	}
}
