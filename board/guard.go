package board

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"boardsync/domain"
)

// Guard is the single enforcement point for optimistic concurrency. Every
// mutation to an existing task flows through TryCommit or Remove, which
// serialize on a per-task lock: commits to the same task never observe the
// same prior version, commits to distinct tasks never block each other.
type Guard struct {
	store  Store
	tracer trace.Tracer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGuard(store Store) *Guard {
	return &Guard{
		store:  store,
		tracer: otel.Tracer("boardsync/board"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Commit describes one guarded mutation.
type Commit struct {
	TaskID string
	// Expected, when non-nil, is compared against the stored version
	// before Mutate runs. A mismatch aborts with VersionConflictError.
	// Nil skips the comparison (REST updates and forced overwrites).
	Expected *int64
	Mutate   func(*domain.Task) error
	// Committed runs after the store write while the task's lock is still
	// held. Activity append and broadcast go here so per-task publish
	// order matches commit order.
	Committed func(context.Context, domain.Task) error
}

// TryCommit performs one read-check-write cycle. On success the returned
// task carries the incremented version and updated LastModified.
func (g *Guard) TryCommit(ctx context.Context, c Commit) (domain.Task, error) {
	ctx, span := g.tracer.Start(ctx, "board.commit",
		trace.WithAttributes(attribute.String("task.id", c.TaskID)))
	defer span.End()

	l := g.taskLock(c.TaskID)
	l.Lock()
	defer l.Unlock()

	t, err := g.store.GetTask(ctx, c.TaskID)
	if err != nil {
		span.RecordError(err)
		return domain.Task{}, err
	}
	if c.Expected != nil && *c.Expected != t.Version {
		span.SetAttributes(attribute.Bool("conflict", true))
		return domain.Task{}, &domain.VersionConflictError{
			ServerVersion: t.Version,
			ServerTask:    t,
		}
	}
	if c.Mutate != nil {
		if err := c.Mutate(&t); err != nil {
			span.RecordError(err)
			return domain.Task{}, err
		}
	}
	t.Version++
	t.LastModified = time.Now().UTC()
	if err := g.store.PutTask(ctx, t); err != nil {
		span.RecordError(err)
		return domain.Task{}, &domain.StoreError{Op: "put task", Err: err}
	}
	if c.Committed != nil {
		if err := c.Committed(ctx, t); err != nil {
			span.RecordError(err)
			return domain.Task{}, err
		}
	}
	span.SetAttributes(attribute.Int64("task.version", t.Version))
	return t, nil
}

// Remove deletes the task under its lock and hands the final snapshot to
// committed before the lock is released, so trailing activity entries can
// capture the title of a task the store can no longer resolve.
func (g *Guard) Remove(ctx context.Context, taskID string, committed func(context.Context, domain.Task) error) (domain.Task, error) {
	ctx, span := g.tracer.Start(ctx, "board.remove",
		trace.WithAttributes(attribute.String("task.id", taskID)))
	defer span.End()

	l := g.taskLock(taskID)
	l.Lock()
	defer l.Unlock()

	t, err := g.store.GetTask(ctx, taskID)
	if err != nil {
		span.RecordError(err)
		return domain.Task{}, err
	}
	if err := g.store.DeleteTask(ctx, taskID); err != nil {
		span.RecordError(err)
		return domain.Task{}, &domain.StoreError{Op: "delete task", Err: err}
	}
	if committed != nil {
		if err := committed(ctx, t); err != nil {
			span.RecordError(err)
			return domain.Task{}, err
		}
	}
	return t, nil
}

// taskLock returns the mutex for a task id, creating it on first use.
// Locks are never discarded; the map is bounded by the number of tasks
// the board has ever seen in this process.
func (g *Guard) taskLock(id string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[id]
	if !ok {
		l = &sync.Mutex{}
		g.locks[id] = l
	}
	return l
}
