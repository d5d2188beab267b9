// Package feed listens to the emergency report feed.
//
// The feed pushes a full snapshot on every change. Latest is the pure
// selection of the newest report in a snapshot; Listener emits it only when
// it is strictly newer than the last report it emitted, so churn and
// duplicate pushes never re-alert.
package feed
