package tasks

import "encoding/json"

// Task type names, shared between the scheduler and the worker mux.
const (
	// TypeActivityFlush drains the pending activity marks from Redis into
	// the sessions table.
	TypeActivityFlush = "activity:flush"
)

// ActivityFlushPayload is currently empty; the worker discovers the
// pending sessions from Redis itself. Kept as a struct so the payload can
// grow without changing the task contract.
type ActivityFlushPayload struct{}

// NewActivityFlushTask builds the payload for an activity flush task.
func NewActivityFlushTask() ([]byte, error) {
	return json.Marshal(ActivityFlushPayload{})
}
