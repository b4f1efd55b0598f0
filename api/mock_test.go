package api

import (
	"context"
	"errors"

	"boardsync/board"
	"boardsync/domain"
)

// mockBoard routes each operation through an optional function field;
// unset fields return zero values so tests only wire what they assert.
type mockBoard struct {
	listTasks        func(ctx context.Context) ([]domain.Task, error)
	latestActivities func(ctx context.Context) ([]domain.Activity, error)
	createTask       func(ctx context.Context, actorID string, in board.CreateTaskInput) (domain.Task, error)
	updateTask       func(ctx context.Context, actorID, taskID string, upd domain.TaskUpdate) (domain.Task, error)
	deleteTask       func(ctx context.Context, actorID, taskID string) error
	moveTask         func(ctx context.Context, actorID, taskID string, newStatus domain.Status) (domain.Task, error)
	smartAssign      func(ctx context.Context, actorID, taskID string) (domain.Task, error)
	syncUpdate       func(ctx context.Context, actorID, clientID, taskID string, upd domain.TaskUpdate, version int64) (domain.Task, error)
	resolveConflict  func(ctx context.Context, actorID, taskID, resolution string, upd *domain.TaskUpdate) (*domain.Task, error)
}

func (m *mockBoard) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if m.listTasks == nil {
		return nil, nil
	}
	return m.listTasks(ctx)
}

func (m *mockBoard) LatestActivities(ctx context.Context) ([]domain.Activity, error) {
	if m.latestActivities == nil {
		return nil, nil
	}
	return m.latestActivities(ctx)
}

func (m *mockBoard) CreateTask(ctx context.Context, actorID string, in board.CreateTaskInput) (domain.Task, error) {
	if m.createTask == nil {
		return domain.Task{}, nil
	}
	return m.createTask(ctx, actorID, in)
}

func (m *mockBoard) UpdateTask(ctx context.Context, actorID, taskID string, upd domain.TaskUpdate) (domain.Task, error) {
	if m.updateTask == nil {
		return domain.Task{}, nil
	}
	return m.updateTask(ctx, actorID, taskID, upd)
}

func (m *mockBoard) DeleteTask(ctx context.Context, actorID, taskID string) error {
	if m.deleteTask == nil {
		return nil
	}
	return m.deleteTask(ctx, actorID, taskID)
}

func (m *mockBoard) MoveTask(ctx context.Context, actorID, taskID string, newStatus domain.Status) (domain.Task, error) {
	if m.moveTask == nil {
		return domain.Task{}, nil
	}
	return m.moveTask(ctx, actorID, taskID, newStatus)
}

func (m *mockBoard) SmartAssign(ctx context.Context, actorID, taskID string) (domain.Task, error) {
	if m.smartAssign == nil {
		return domain.Task{}, nil
	}
	return m.smartAssign(ctx, actorID, taskID)
}

func (m *mockBoard) SyncUpdate(ctx context.Context, actorID, clientID, taskID string, upd domain.TaskUpdate, version int64) (domain.Task, error) {
	if m.syncUpdate == nil {
		return domain.Task{}, nil
	}
	return m.syncUpdate(ctx, actorID, clientID, taskID, upd, version)
}

func (m *mockBoard) ResolveConflict(ctx context.Context, actorID, taskID, resolution string, upd *domain.TaskUpdate) (*domain.Task, error) {
	if m.resolveConflict == nil {
		return nil, nil
	}
	return m.resolveConflict(ctx, actorID, taskID, resolution, upd)
}

// mockAuth accepts "Bearer good" as user u1 and rejects everything else.
type mockAuth struct{}

func (mockAuth) UserIDFromAuthHeader(h string) (string, error) {
	if h == "Bearer good" {
		return "u1", nil
	}
	return "", errors.New("unauthorized")
}
