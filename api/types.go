package api

import (
	"context"

	"boardsync/board"
	"boardsync/domain"
)

// Board is the mutation and query surface handlers talk to.
type Board interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	LatestActivities(ctx context.Context) ([]domain.Activity, error)
	CreateTask(ctx context.Context, actorID string, in board.CreateTaskInput) (domain.Task, error)
	UpdateTask(ctx context.Context, actorID, taskID string, upd domain.TaskUpdate) (domain.Task, error)
	DeleteTask(ctx context.Context, actorID, taskID string) error
	MoveTask(ctx context.Context, actorID, taskID string, newStatus domain.Status) (domain.Task, error)
	SmartAssign(ctx context.Context, actorID, taskID string) (domain.Task, error)
	SyncUpdate(ctx context.Context, actorID, clientID, taskID string, upd domain.TaskUpdate, version int64) (domain.Task, error)
	ResolveConflict(ctx context.Context, actorID, taskID, resolution string, upd *domain.TaskUpdate) (*domain.Task, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}
