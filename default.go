package loader

import "sync/atomic"

var defaultSupervisor atomic.Pointer[Supervisor]

// SetDefault installs s as the process-wide Supervisor. Only the first call
// succeeds; the default is never replaced or torn down.
func SetDefault(s *Supervisor) bool {
	if s == nil {
		return false
	}
	return defaultSupervisor.CompareAndSwap(nil, s)
}

// Default returns the process-wide Supervisor, or nil before SetDefault
func Default() *Supervisor {
	return defaultSupervisor.Load()
}
