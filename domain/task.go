package domain

import (
	"strings"
	"time"
)

// Status is a board column. Tasks may move between any two statuses,
// the board imposes no ordering.
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// UserRef identifies a user. Names are denormalized onto tasks and
// activities so records stay readable after the user listing changes.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Task is a single board item. Version is the optimistic-lock token: it
// starts at 1 and every accepted commit increments it by exactly one.
type Task struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Status       Status    `json:"status"`
	Priority     Priority  `json:"priority"`
	AssignedUser *UserRef  `json:"assignedUser,omitempty"`
	CreatedBy    UserRef   `json:"createdBy"`
	Version      int64     `json:"version"`
	LastModified time.Time `json:"lastModified"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Column names are reserved; a task title may not collide with them in
// any case, including the hyphenated spelling clients send for drag targets.
var reservedTitles = map[string]struct{}{
	"todo":        {},
	"in progress": {},
	"in-progress": {},
	"done":        {},
}

func ReservedTitle(title string) bool {
	_, ok := reservedTitles[strings.ToLower(strings.TrimSpace(title))]
	return ok
}

// ValidateTitle checks the board-wide title rules that do not require a
// store lookup. Uniqueness is checked at commit time.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return Validation("title is required")
	}
	if ReservedTitle(title) {
		return Validation("task title cannot match column names")
	}
	return nil
}

// TaskUpdate is a partial field set. Nil fields are left untouched.
type TaskUpdate struct {
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Status       *Status   `json:"status,omitempty"`
	Priority     *Priority `json:"priority,omitempty"`
	AssignedUser *UserRef  `json:"assignedUser,omitempty"`
}

// Validate rejects invalid enum values before any store round trip.
func (u TaskUpdate) Validate() error {
	if u.Status != nil && !u.Status.Valid() {
		return Validation("invalid status")
	}
	if u.Priority != nil && !u.Priority.Valid() {
		return Validation("invalid priority")
	}
	if u.Title != nil {
		if err := ValidateTitle(*u.Title); err != nil {
			return err
		}
	}
	return nil
}

// Apply copies the present fields onto the task. Version and timestamps
// are owned by the commit path, not by updates.
func (u TaskUpdate) Apply(t *Task) {
	if u.Title != nil {
		t.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.AssignedUser != nil {
		if u.AssignedUser.ID == "" {
			t.AssignedUser = nil
		} else {
			ref := *u.AssignedUser
			t.AssignedUser = &ref
		}
	}
}
