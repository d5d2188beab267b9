// Package gpsd implements a position source that reads TPV reports from a
// gpsd daemon over its JSON protocol.
package gpsd
