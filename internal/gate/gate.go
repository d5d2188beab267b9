package gate

import "sync"

// Gate lets callbacks run until it is closed. Close waits for a callback in
// flight to finish, so once Close returns no callback runs again.
//
// A callback must not call Close on its own gate.
type Gate struct {
	mu     sync.RWMutex
	closed bool
}

// Run calls fn unless the gate is closed and reports whether it ran.
func (g *Gate) Run(fn func()) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return false
	}

	fn()

	return true
}

// Close closes the gate. It returns false if the gate was already closed.
func (g *Gate) Close() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false
	}

	g.closed = true

	return true
}

// Closed reports whether Close was called.
func (g *Gate) Closed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.closed
}
