// Package inbound exposes the postwork operations over net/http.
//
// Routes are registered explicitly on a ServeMux. Worker callbacks are
// verified before they reach the block state machine.
package inbound
