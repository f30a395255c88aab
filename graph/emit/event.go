package emit

// Event names emitted by the engine.
const (
	MsgRunStart        = "run_start"
	MsgNodeStart       = "node_start"
	MsgNodeEnd         = "node_end"
	MsgNodeError       = "node_error"
	MsgInterrupt       = "interrupt"
	MsgResume          = "resume"
	MsgCheckpointSaved = "checkpoint_saved"
	MsgRunComplete     = "run_complete"
	MsgRunFailed       = "run_failed"
)

// Event represents an observability event emitted during a run.
type Event struct {
	// ThreadID identifies the run that emitted this event.
	ThreadID string

	// Graph is the name of the graph executing the node. Inside an embedded
	// graph this is the embedded graph's name.
	Graph string

	// Step is the step number within Graph. Zero for run-level events.
	Step int

	// NodeID identifies which node emitted this event.
	// Empty string for run-level events.
	NodeID string

	// Msg names the event, one of the Msg* constants.
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": Execution duration in milliseconds
	//   - "error": Error details
	//   - "status": Final run status
	//   - "version": Checkpoint version
	Meta map[string]any
}
