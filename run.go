package flow

import "time"

// RunStatus is the lifecycle state of an execution run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further events follow a run in this state.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunCancelled
}

// Run is one invocation of the engine over an immutable graph snapshot.
type Run struct {
	ExecutionID string     `json:"executionId"`
	WorkflowID  string     `json:"workflowId,omitempty"`
	Status      RunStatus  `json:"status"`
	Nodes       []Node     `json:"nodes"`
	Edges       []Edge     `json:"edges"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// EventKind names the push-channel event an Event is delivered as.
type EventKind string

const (
	EventNodeStatus     EventKind = "node-status"
	EventExecutionLog   EventKind = "execution-log"
	EventWorkflowStatus EventKind = "workflow-status"
)

// Event is a single progress notification of a run. Seq orders the events
// of one run starting at 1.
type Event struct {
	Seq         int       `json:"seq"`
	Kind        EventKind `json:"kind"`
	ExecutionID string    `json:"executionId"`
	NodeID      string    `json:"nodeId,omitempty"`
	Status      string    `json:"status,omitempty"`
	Message     string    `json:"message,omitempty"`
	Timestamp   string    `json:"timestamp,omitempty"`
}

// Payload returns the wire body observers receive for the event's kind.
func (e Event) Payload() map[string]any {
	switch e.Kind {
	case EventNodeStatus:
		return map[string]any{"executionId": e.ExecutionID, "nodeId": e.NodeID, "status": e.Status}
	case EventExecutionLog:
		return map[string]any{"executionId": e.ExecutionID, "message": e.Message, "timestamp": e.Timestamp}
	default:
		return map[string]any{"executionId": e.ExecutionID, "status": e.Status}
	}
}
