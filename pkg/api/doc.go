// Package api defines the data model shared between plan producers and the
// plan execution engine: plans, sub-plans, nodes, lifecycle events, and the
// task and agent schemas advertised to the planning service
//
// Node and event shapes form the wire contract with the Brixel planning API;
// any consumer constructing plans must conform to the node-kind vocabulary
// declared here
package api
