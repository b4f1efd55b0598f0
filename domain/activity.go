package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action classifies an activity entry.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionDeleted   Action = "deleted"
	ActionMoved     Action = "moved"
	ActionAssigned  Action = "assigned"
	ActionCompleted Action = "completed"
)

// Activity is one entry of the append-only board trail. TaskTitle is a
// snapshot taken when the entry is recorded so it stays resolvable after
// the task itself is deleted. Entries are never updated or removed.
type Activity struct {
	ID        string    `json:"id"`
	User      UserRef   `json:"user"`
	Action    Action    `json:"action"`
	TaskID    string    `json:"taskId"`
	TaskTitle string    `json:"taskTitle"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewActivity(user UserRef, action Action, taskID, taskTitle, details string) Activity {
	return Activity{
		ID:        uuid.NewString(),
		User:      user,
		Action:    action,
		TaskID:    taskID,
		TaskTitle: taskTitle,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
}

// Detail strings are part of the client contract: the activity panel
// parses the "from <old> to <new>" fragment to render directional cues,
// so the wording below must stay stable.

func CreatedDetails(title string) string {
	return fmt.Sprintf("Created task %q", title)
}

func UpdatedDetails(title string) string {
	return fmt.Sprintf("Updated task %q", title)
}

func DeletedDetails(title string) string {
	return fmt.Sprintf("Deleted task %q", title)
}

func MovedDetails(title string, from, to Status) string {
	return fmt.Sprintf("Moved task %q from %s to %s", title, from, to)
}

func AssignedDetails(title, userName string) string {
	return fmt.Sprintf("Smart assigned task %q to %s", title, userName)
}

func ResolvedDetails(title string) string {
	return fmt.Sprintf("Resolved conflict and updated task %q", title)
}
