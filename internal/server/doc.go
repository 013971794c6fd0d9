// Package server provides the HTTP serving layer: a lifecycle manager
// with graceful shutdown and the router wiring the public API routes.
package server
