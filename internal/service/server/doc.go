// Package server runs the trackguard-server process: it loads the
// configuration, connects the feed, gpsd and OSRM, and serves the operator
// gRPC API and the overlay HTTP endpoints until the context ends.
package server
