// Package capability owns the weighted agent/concept graph behind the
// routing engine. It is pure data access: agents, concepts, and weighted
// HandlesConcept edges keyed by (agent, concept, intent), with no routing
// or learning logic of its own.
//
// Three backends implement the same Store contract:
//
//   - MemoryStore: RWMutex-guarded maps, for tests and embedded use.
//   - RedisStore: go-redis backed, per-edge atomicity via WATCH transactions.
//   - GormStore: SQL backed via GORM, works with any supported dialect.
//
// All writes are single-record, last-writer-wins. Concept names are
// case-folded before every lookup or write, and intent names are checked
// against a fixed allow-list before they reach any backend, so untrusted
// input can never be interpolated into a query.
package capability
