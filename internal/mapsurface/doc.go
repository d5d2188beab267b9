// Package mapsurface defines the rendering capability the tracking core draws
// on, the fixed overlay slots each component owns, and an in-memory surface
// that an external map client reads as GeoJSON.
package mapsurface
