// Package tracking contains the core domain types of live tracking and
// emergency alerting: positions, emergency events, the alert state, history
// entries, routes and the error taxonomy shared by all components.
package tracking
