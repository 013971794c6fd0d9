package types

import (
	"strings"
	"time"
)

// AgentType classifies what kind of work an agent can host.
type AgentType string

const (
	// AgentTypeFactBase indicates an agent that answers declarative queries
	// (definitions, explanations) from a knowledge base.
	AgentTypeFactBase AgentType = "FactBase"
	// AgentTypeFunctionExecutor indicates an agent that computes results
	// (calculations, transformations) rather than recalling facts.
	AgentTypeFunctionExecutor AgentType = "FunctionExecutor"
	// AgentTypeHybrid indicates an agent that can do both.
	AgentTypeHybrid AgentType = "Hybrid"
)

// ValidAgentType reports whether t is one of the known agent types.
func ValidAgentType(t AgentType) bool {
	switch t {
	case AgentTypeFactBase, AgentTypeFunctionExecutor, AgentTypeHybrid:
		return true
	}
	return false
}

// Agent is a registered worker in the capability graph. Agents are created
// at registration or by neurogenesis and are never deleted; retiring an
// agent marks it inactive instead.
type Agent struct {
	// Name is the unique identity of the agent.
	Name string `json:"name" yaml:"name"`

	// Endpoint is the network address queries are sent to. Never empty for
	// a registered agent.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Type is the agent classification.
	Type AgentType `json:"agent_type" yaml:"agent_type"`

	// IntentMap maps an intent name to the relative path the agent serves
	// it on (e.g. "define" -> "/query").
	IntentMap map[string]string `json:"intent_map" yaml:"intent_map"`

	// Inactive marks a retired agent. Inactive agents keep their edges but
	// are skipped by discovery.
	Inactive bool `json:"inactive,omitempty" yaml:"inactive,omitempty"`

	// RegisteredAt is when the agent was first registered.
	RegisteredAt time.Time `json:"registered_at,omitempty" yaml:"-"`
}

// IntentPath returns the relative path the agent serves the given intent on.
func (a *Agent) IntentPath(intent string) (string, bool) {
	p, ok := a.IntentMap[intent]
	return p, ok
}

// NormalizeConcept canonicalizes a concept name. Concept identity is
// case-insensitive and whitespace runs fold to underscores, so
// "Compound Interest" and "compound_interest" name the same concept.
// Every lookup and write goes through this first.
func NormalizeConcept(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}
