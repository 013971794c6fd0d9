// Package handlers implements the HTTP surface of the routing engine:
// batch dispatch, the agent registry, the reinforcement and decay
// operations, a read-only selection probe, and health probes. Handlers are
// thin: they validate and decode, delegate to the domain packages, and
// wrap results in the shared response envelope.
package handlers
