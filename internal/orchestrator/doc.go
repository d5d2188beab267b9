// Package orchestrator wires the position tracker, the emergency feed, the
// alert state machine and the history ledger around a single event loop,
// and releases all of them on teardown.
package orchestrator
