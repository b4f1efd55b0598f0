package domain

import (
	"encoding/json"
	"time"
)

// Event types published on the board channel. Every accepted commit
// produces one state-change event followed by one activity-added event;
// conflict events are delivered to the initiating client only.
const (
	EventTaskCreated   = "task-created"
	EventTaskUpdated   = "task-updated"
	EventTaskMoved     = "task-moved"
	EventTaskDeleted   = "task-deleted"
	EventTaskAssigned  = "task-assigned"
	EventActivityAdded = "activity-added"
	EventConflict      = "conflict"
)

// Event is the envelope carried over the pub/sub channel and down each
// client stream. TargetClientID is set only on conflict events.
type Event struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	TaskID         string          `json:"taskId,omitempty"`
	TargetClientID string          `json:"targetClientId,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Time           int64           `json:"time"`
}

// NewEvent wraps a payload into an envelope. The timestamp orders events
// loosely for consumers; per-task ordering is guaranteed by publish order.
func NewEvent(id, typ, taskID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:     id,
		Type:   typ,
		TaskID: taskID,
		Data:   data,
		Time:   time.Now().UnixNano(),
	}, nil
}

// TaskMovedPayload carries the pre-move status alongside the committed
// task so clients can render the transition direction.
type TaskMovedPayload struct {
	Task      Task   `json:"task"`
	OldStatus Status `json:"oldStatus"`
	NewStatus Status `json:"newStatus"`
}

type TaskDeletedPayload struct {
	TaskID string `json:"taskId"`
}

// ConflictPayload is the ephemeral descriptor returned to the client that
// lost an optimistic-lock race. Field names match what board clients
// already consume.
type ConflictPayload struct {
	TaskID        string     `json:"taskId"`
	ServerVersion int64      `json:"currentVersion"`
	ClientVersion int64      `json:"yourVersion"`
	ServerTask    Task       `json:"currentTask"`
	ClientUpdates TaskUpdate `json:"yourUpdates"`
}
