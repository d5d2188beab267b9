// Package tracker samples the live position from a Source and draws it.
//
// Tracker.Start wraps the source callbacks so that Subscription.Stop is
// race-free: after it returns no sample or error callback runs. Live keeps
// the one canonical position and its marker and accuracy circle.
package tracker
