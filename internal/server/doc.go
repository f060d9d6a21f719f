// Package server exposes a registered agent over HTTP: a configuration
// endpoint the planner introspects, an execute endpoint that runs one
// sub-plan against the local engine, and a WebSocket stream of the
// lifecycle events each execution emits
package server
