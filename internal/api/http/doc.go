// Package httpapi publishes the drawn overlays as GeoJSON so a web map can
// render them, plus the alert state and a health check.
package httpapi
