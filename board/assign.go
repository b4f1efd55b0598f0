package board

import (
	"context"
	"sort"

	"boardsync/domain"
)

// SmartAssign hands the task to the least-loaded user. Load counts only
// assigned tasks still in Todo or In Progress; Done tasks carry no weight.
// Ties go to the first user in canonical (id-ascending) listing order so
// the outcome never depends on incidental collection order. The commit
// itself carries no version check: smart-assign is last-write-wins against
// interleaved edits, like the other request/response paths.
func (s *Service) SmartAssign(ctx context.Context, actorID, taskID string) (domain.Task, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return domain.Task{}, &domain.StoreError{Op: "list users", Err: err}
	}
	if len(users) == 0 {
		return domain.Task{}, domain.ErrNoEligibleUser
	}
	chosen, err := s.leastLoaded(ctx, users)
	if err != nil {
		return domain.Task{}, err
	}
	actor := s.actor(ctx, actorID)
	return s.guard.TryCommit(ctx, Commit{
		TaskID: taskID,
		Mutate: func(t *domain.Task) error {
			ref := chosen
			t.AssignedUser = &ref
			return nil
		},
		Committed: func(ctx context.Context, t domain.Task) error {
			return s.announce(ctx, actor, domain.ActionAssigned, t.ID, t.Title,
				domain.AssignedDetails(t.Title, chosen.Name), domain.EventTaskAssigned, t)
		},
	})
}

func (s *Service) leastLoaded(ctx context.Context, users []domain.UserRef) (domain.UserRef, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return domain.UserRef{}, &domain.StoreError{Op: "list tasks", Err: err}
	}
	active := make(map[string]int, len(users))
	for _, t := range tasks {
		if t.AssignedUser == nil || t.Status == domain.StatusDone {
			continue
		}
		active[t.AssignedUser.ID]++
	}

	// The store already lists users in id order; sorting again keeps the
	// tie-break independent of any particular Store implementation.
	ordered := make([]domain.UserRef, len(users))
	copy(ordered, users)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	chosen := ordered[0]
	for _, u := range ordered[1:] {
		if active[u.ID] < active[chosen.ID] {
			chosen = u
		}
	}
	return chosen, nil
}
