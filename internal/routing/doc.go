// Package routing computes routes between the live position and an
// emergency. OSRM talks to an OSRM server; Planner runs requests off the
// event loop so a slow route never delays alert display.
package routing
