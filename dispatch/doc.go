// Package dispatch executes task batches against selected agents. The
// Coordinator fans tasks out over a bounded worker pool, posts each query
// to its agent over HTTP with a transport-fault retry bound, reports every
// outcome to the reinforcement engine, and hands unroutable tasks to the
// graph expander. A batch always yields exactly one result per task; tasks
// still in flight when the batch deadline fires are finalized as
// deadline_exceeded.
package dispatch
