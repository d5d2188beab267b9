// Package gate provides the close-once callback guard used by subscriptions
// for race-free teardown.
package gate
