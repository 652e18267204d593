package contextmgr

// EventType distinguishes pipeline lifecycle events.
type EventType string

const (
	// EventStarted fires when a run begins reducing a conversation.
	EventStarted EventType = "started"
	// EventCompleted fires when a run finishes, whatever it changed.
	EventCompleted EventType = "completed"
	// EventFailed fires when a stage fails; the run may still continue.
	EventFailed EventType = "failed"
	// EventWarning fires when pressure remains above the warning
	// threshold after a run.
	EventWarning EventType = "warning"
)

// Event is the payload published on the manager's broker while the
// pipeline runs. Subscribers get enough to drive UI badges and logs
// without holding a reference to the conversation itself.
type Event struct {
	Type           EventType `json:"type"`
	PressureBefore float64   `json:"pressure_before"`
	PressureAfter  float64   `json:"pressure_after"`
	Stage          string    `json:"stage,omitempty"`
	Compacted      bool      `json:"compacted,omitempty"`
	Error          string    `json:"error,omitempty"`
}
