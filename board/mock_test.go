package board

import (
	"context"
	"strings"
	"sync"

	"boardsync/domain"
)

type memStore struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
	users []domain.UserRef
	acts  []domain.Activity

	putErr      error
	activityErr error
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[string]domain.Task)}
}

func (m *memStore) GetTask(_ context.Context, id string) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memStore) PutTask(_ context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.tasks[t.ID] = t
	return nil
}

func (m *memStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *memStore) ListTasks(_ context.Context) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) TaskTitleExists(_ context.Context, title, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID != excludeID && strings.EqualFold(t.Title, title) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) GetUser(_ context.Context, id string) (domain.UserRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.UserRef{}, domain.ErrNotFound
}

func (m *memStore) ListUsers(_ context.Context) ([]domain.UserRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.UserRef, len(m.users))
	copy(out, m.users)
	return out, nil
}

func (m *memStore) AppendActivity(_ context.Context, a domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activityErr != nil {
		return m.activityErr
	}
	m.acts = append(m.acts, a)
	return nil
}

func (m *memStore) ListActivities(_ context.Context, limit int) ([]domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Activity, 0, limit)
	for i := len(m.acts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.acts[i])
	}
	return out, nil
}

func (m *memStore) activities() []domain.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Activity, len(m.acts))
	copy(out, m.acts)
	return out
}

func (m *memStore) task(id string) (domain.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

type memPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *memPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *memPublisher) all() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *memPublisher) ofType(typ string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, ev := range p.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
