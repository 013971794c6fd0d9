// Package neurogenesis expands the capability graph when routing fails.
// One expansion session walks researching and synthesizing phases against
// an external knowledge source, computes a confidence from the evidence,
// and either wires the concept to an existing agent, provisions a new one,
// or gives up. Sessions are bounded by a hard timeout, and concurrent
// expansions of the same (concept, intent) pair collapse into one.
package neurogenesis
