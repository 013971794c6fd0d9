package types

// TaskStatus is the terminal status of a dispatched task.
type TaskStatus string

const (
	// TaskStatusSuccess indicates the selected agent answered the query.
	TaskStatusSuccess TaskStatus = "success"
	// TaskStatusError indicates the task failed terminally (unreachable
	// agent, exhausted retries, failed neurogenesis, deadline).
	TaskStatusError TaskStatus = "error"
	// TaskStatusNeurogenesisSuccess indicates no adequate agent existed and
	// the graph was expanded with a new edge or agent to serve the task.
	TaskStatusNeurogenesisSuccess TaskStatus = "neurogenesis_success"
	// TaskStatusNeurogenesisPartial indicates neurogenesis produced usable
	// knowledge but could not complete the full expansion.
	TaskStatusNeurogenesisPartial TaskStatus = "neurogenesis_partial"
)

// Task is one unit of routable work. Tasks are immutable once dispatched.
type Task struct {
	// TaskID uniquely identifies the task within a batch.
	TaskID string `json:"task_id"`

	// Concept is the topic the task is about. Normalized before routing.
	Concept string `json:"concept"`

	// Intent is the operation requested on the concept (define, explain,
	// calculate, ...).
	Intent string `json:"intent"`

	// Args are opaque arguments forwarded to the selected agent.
	Args map[string]any `json:"args,omitempty"`
}

// TaskResult is the outcome of one task. Produced exactly once per task and
// never mutated after finalization.
type TaskResult struct {
	// TaskID echoes the task this result belongs to.
	TaskID string `json:"task_id"`

	// Status is the terminal outcome.
	Status TaskStatus `json:"status"`

	// AgentName is the agent that served (or was created to serve) the task.
	AgentName string `json:"agent_name,omitempty"`

	// Data is the agent's response payload.
	Data any `json:"data,omitempty"`

	// NeurogenesisData carries synthesized knowledge when the task was
	// answered by graph expansion rather than an existing edge.
	NeurogenesisData any `json:"neurogenesis_data,omitempty"`

	// ErrorMessage describes the failure when Status is error.
	ErrorMessage string `json:"error_message,omitempty"`
}

// AgentRequest is the wire request sent to an agent endpoint.
type AgentRequest struct {
	Intent string         `json:"intent"`
	Args   map[string]any `json:"args,omitempty"`
}

// AgentResponse is the wire response expected from an agent endpoint.
// A non-2xx status or malformed JSON body is treated as a transport error.
type AgentResponse struct {
	AgentName string `json:"agent_name"`
	Status    string `json:"status"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
}

// OK reports whether the agent accepted and answered the request.
func (r *AgentResponse) OK() bool {
	return r.Status == "success"
}
