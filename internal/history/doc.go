// Package history keeps the received reports and lets an operator replay
// one of them on the map.
package history
