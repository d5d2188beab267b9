// Package redisfeed implements the emergency feed on a Redis hash with a
// pub/sub channel announcing changes.
package redisfeed
