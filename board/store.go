package board

import (
	"context"

	"boardsync/domain"
)

// Store abstracts the durable keyed task store. Implementations must
// return domain.ErrNotFound for unknown task ids; the guard provides the
// per-task mutual exclusion, so individual calls only need to be atomic
// per operation.
type Store interface {
	GetTask(ctx context.Context, id string) (domain.Task, error)
	PutTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context) ([]domain.Task, error)
	// TaskTitleExists reports whether another task on the board already
	// uses the given title. excludeID skips the task being renamed.
	TaskTitleExists(ctx context.Context, title, excludeID string) (bool, error)

	GetUser(ctx context.Context, id string) (domain.UserRef, error)
	// ListUsers returns the canonical user listing in ascending id order;
	// the smart-assign tie-break depends on this order being stable.
	ListUsers(ctx context.Context) ([]domain.UserRef, error)

	AppendActivity(ctx context.Context, a domain.Activity) error
	ListActivities(ctx context.Context, limit int) ([]domain.Activity, error)
}

// Publisher fans a committed event out to the board channel.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}
