// Package alert drives the single active emergency alert: the popup and
// alarm cue of a new event, and its marker, hazard circle and route once
// the operator asks to see it on the map.
package alert
