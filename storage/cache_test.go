package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"boardsync/domain"
)

// fakeBackend counts read calls so tests can tell hits from misses.
type fakeBackend struct {
	tasks []domain.Task
	acts  []domain.Activity

	listTaskCalls     int
	listActivityCalls int
}

func (f *fakeBackend) GetTask(context.Context, string) (domain.Task, error) {
	return domain.Task{}, domain.ErrNotFound
}

func (f *fakeBackend) PutTask(_ context.Context, t domain.Task) error {
	f.tasks = append(f.tasks, t)
	return nil
}

func (f *fakeBackend) DeleteTask(context.Context, string) error { return nil }

func (f *fakeBackend) ListTasks(context.Context) ([]domain.Task, error) {
	f.listTaskCalls++
	return f.tasks, nil
}

func (f *fakeBackend) TaskTitleExists(context.Context, string, string) (bool, error) {
	return false, nil
}

func (f *fakeBackend) GetUser(context.Context, string) (domain.UserRef, error) {
	return domain.UserRef{}, domain.ErrNotFound
}

func (f *fakeBackend) ListUsers(context.Context) ([]domain.UserRef, error) { return nil, nil }

func (f *fakeBackend) AppendActivity(_ context.Context, a domain.Activity) error {
	f.acts = append(f.acts, a)
	return nil
}

func (f *fakeBackend) ListActivities(context.Context, int) ([]domain.Activity, error) {
	f.listActivityCalls++
	return f.acts, nil
}

func cacheUnderTest(t *testing.T) (*Cache, *fakeBackend) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })
	base := &fakeBackend{tasks: []domain.Task{{ID: "t1", Title: "Fix login", Version: 1}}}
	return NewCache(base, rc, time.Minute), base
}

func TestListTasksServedFromCache(t *testing.T) {
	cache, base := cacheUnderTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tasks, err := cache.ListTasks(ctx)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(tasks) != 1 || tasks[0].ID != "t1" {
			t.Fatalf("unexpected tasks: %+v", tasks)
		}
	}
	if base.listTaskCalls != 1 {
		t.Fatalf("expected a single backend read, got %d", base.listTaskCalls)
	}
}

func TestPutTaskEvictsTaskListing(t *testing.T) {
	cache, base := cacheUnderTest(t)
	ctx := context.Background()

	if _, err := cache.ListTasks(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if err := cache.PutTask(ctx, domain.Task{ID: "t2", Title: "Second", Version: 1}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	tasks, err := cache.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("stale listing after commit, got %d tasks", len(tasks))
	}
	if base.listTaskCalls != 2 {
		t.Fatalf("expected a fresh backend read after eviction, got %d", base.listTaskCalls)
	}
}

func TestAppendActivityEvictsEveryWindow(t *testing.T) {
	cache, base := cacheUnderTest(t)
	ctx := context.Background()

	// Warm two differently sized windows.
	if _, err := cache.ListActivities(ctx, 10); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if _, err := cache.ListActivities(ctx, 20); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if base.listActivityCalls != 2 {
		t.Fatalf("expected two backend reads to warm, got %d", base.listActivityCalls)
	}

	act := domain.NewActivity(domain.UserRef{ID: "u1", Name: "Ada"}, domain.ActionCreated, "t1", "Fix login", domain.CreatedDetails("Fix login"))
	if err := cache.AppendActivity(ctx, act); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	acts, err := cache.ListActivities(ctx, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(acts) != 1 {
		t.Fatalf("stale activity window after append, got %d", len(acts))
	}
	if base.listActivityCalls != 3 {
		t.Fatalf("expected a fresh backend read after eviction, got %d", base.listActivityCalls)
	}
}

func TestNilClientDisablesCaching(t *testing.T) {
	base := &fakeBackend{}
	cache := NewCache(base, nil, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cache.ListTasks(ctx); err != nil {
			t.Fatalf("list failed: %v", err)
		}
	}
	if base.listTaskCalls != 2 {
		t.Fatalf("nil client must pass every read through, got %d calls", base.listTaskCalls)
	}
}
