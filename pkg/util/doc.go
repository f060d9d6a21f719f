// Package util provides small generic helpers shared across the client
package util
