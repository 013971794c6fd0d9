// Package types defines the shared domain types of the Myriad routing
// engine: agents, concepts, tasks, task results, and the unified error
// taxonomy used across the capability store, discovery, dispatch, and
// neurogenesis components.
package types
