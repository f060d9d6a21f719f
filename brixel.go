// Package brixel identifies the client distribution. The SDK surface lives
// under pkg/ and the agent server under cmd/brixeld
package brixel

const (
	// Name identifies the service in structured log output
	Name = "brixel-client"

	// Version is the client distribution version
	Version = "0.1.0"
)
