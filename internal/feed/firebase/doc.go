// Package firebase implements the emergency feed on top of the Firebase
// Realtime Database REST streaming API (server-sent events).
package firebase
