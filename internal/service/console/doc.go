// Package console is the operator command line client: a thin wrapper
// around the operator gRPC API with per-call timeouts, and the actions of
// the trackguard-console binary.
package console
