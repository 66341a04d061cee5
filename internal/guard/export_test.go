package guard

import "time"

// Hooks for the package tests.

// PolicyOptions exposes a policy's configuration.
func PolicyOptions(p *Policy) Options {
	return p.opts
}

// SetClock replaces the store's time source.
func SetClock(s *MemStore, now func() time.Time) {
	s.now = now
}

var WindowSeconds = windowSeconds
