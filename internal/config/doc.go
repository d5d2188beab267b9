// Package config defines the trackguard settings and provides helpers to
// load, validate and save them in YAML format.
//
// Config groups the operator API address, the emergency feed backend, the
// gpsd tracker options, the OSRM routing client and alert behaviour.
package config
