package board

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"boardsync/domain"
)

// activityWindow is how many trail entries a newly connecting client sees.
const activityWindow = 20

// Resolution values accepted by ResolveConflict.
const (
	ResolutionKeepCurrent = "keep-current"
	ResolutionOverwrite   = "overwrite"
)

// Service implements the board operations on top of the guard, the store
// and the broadcast publisher. All accepted commits append exactly one
// activity entry and publish the state-change event followed by the
// activity-added event, in that order, from inside the task's critical
// section.
type Service struct {
	store Store
	guard *Guard
	pub   Publisher
	log   *log.Logger

	// titleMu serializes title uniqueness checks against creates, since
	// those cannot ride on a per-task lock.
	titleMu sync.Mutex
}

func NewService(store Store, pub Publisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Service{
		store: store,
		guard: NewGuard(store),
		pub:   pub,
		log:   logger,
	}
}

func (s *Service) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return s.store.ListTasks(ctx)
}

func (s *Service) LatestActivities(ctx context.Context) ([]domain.Activity, error) {
	return s.store.ListActivities(ctx, activityWindow)
}

// CreateTaskInput carries the create request fields. Zero-valued priority
// and status fall back to Medium and Todo.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    domain.Priority
	Status      domain.Status
}

func (s *Service) CreateTask(ctx context.Context, actorID string, in CreateTaskInput) (domain.Task, error) {
	title := strings.TrimSpace(in.Title)
	if err := domain.ValidateTitle(title); err != nil {
		return domain.Task{}, err
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	} else if !in.Priority.Valid() {
		return domain.Task{}, domain.Validation("invalid priority")
	}
	if in.Status == "" {
		in.Status = domain.StatusTodo
	} else if !in.Status.Valid() {
		return domain.Task{}, domain.Validation("invalid status")
	}
	actor := s.actor(ctx, actorID)

	s.titleMu.Lock()
	defer s.titleMu.Unlock()
	taken, err := s.store.TaskTitleExists(ctx, title, "")
	if err != nil {
		return domain.Task{}, &domain.StoreError{Op: "title lookup", Err: err}
	}
	if taken {
		return domain.Task{}, domain.Validation("task title must be unique")
	}

	t := domain.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		CreatedBy:   actor,
		Version:     1,
	}
	t.CreatedAt = time.Now().UTC()
	t.LastModified = t.CreatedAt
	if err := s.store.PutTask(ctx, t); err != nil {
		return domain.Task{}, &domain.StoreError{Op: "put task", Err: err}
	}
	if err := s.announce(ctx, actor, domain.ActionCreated, t.ID, t.Title,
		domain.CreatedDetails(t.Title), domain.EventTaskCreated, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// UpdateTask is the plain request/response path: it never compares
// versions, so interleaved edits are last-write-wins by design.
func (s *Service) UpdateTask(ctx context.Context, actorID, taskID string, upd domain.TaskUpdate) (domain.Task, error) {
	if err := upd.Validate(); err != nil {
		return domain.Task{}, err
	}
	actor := s.actor(ctx, actorID)
	return s.guard.TryCommit(ctx, Commit{
		TaskID: taskID,
		Mutate: func(t *domain.Task) error {
			return s.applyChecked(ctx, t, upd)
		},
		Committed: func(ctx context.Context, t domain.Task) error {
			return s.announce(ctx, actor, domain.ActionUpdated, t.ID, t.Title,
				domain.UpdatedDetails(t.Title), domain.EventTaskUpdated, t)
		},
	})
}

// SyncUpdate is the real-time path: the client's version is compared
// against the stored one and a mismatch yields a conflict descriptor
// delivered only to the initiating client. A version of zero means the
// client did not present one and the comparison is skipped; any other
// value, valid or not, is compared and can only match a stored version.
func (s *Service) SyncUpdate(ctx context.Context, actorID, clientID, taskID string, upd domain.TaskUpdate, version int64) (domain.Task, error) {
	if err := upd.Validate(); err != nil {
		return domain.Task{}, err
	}
	actor := s.actor(ctx, actorID)
	var expected *int64
	if version != 0 {
		expected = &version
	}
	t, err := s.guard.TryCommit(ctx, Commit{
		TaskID:   taskID,
		Expected: expected,
		Mutate: func(t *domain.Task) error {
			upd.Apply(t)
			return nil
		},
		Committed: func(ctx context.Context, t domain.Task) error {
			return s.announce(ctx, actor, domain.ActionUpdated, t.ID, t.Title,
				domain.UpdatedDetails(t.Title), domain.EventTaskUpdated, t)
		},
	})
	var conflict *domain.VersionConflictError
	if errors.As(err, &conflict) {
		s.emitConflict(ctx, clientID, taskID, version, upd, conflict)
		return domain.Task{}, err
	}
	return t, err
}

// MoveTask changes a task's status. Any transition is legal; the pre-move
// status rides on the broadcast payload for directional rendering.
func (s *Service) MoveTask(ctx context.Context, actorID, taskID string, newStatus domain.Status) (domain.Task, error) {
	if !newStatus.Valid() {
		return domain.Task{}, domain.Validation("invalid status")
	}
	actor := s.actor(ctx, actorID)
	var oldStatus domain.Status
	return s.guard.TryCommit(ctx, Commit{
		TaskID: taskID,
		Mutate: func(t *domain.Task) error {
			oldStatus = t.Status
			t.Status = newStatus
			return nil
		},
		Committed: func(ctx context.Context, t domain.Task) error {
			payload := domain.TaskMovedPayload{Task: t, OldStatus: oldStatus, NewStatus: newStatus}
			return s.announce(ctx, actor, domain.ActionMoved, t.ID, t.Title,
				domain.MovedDetails(t.Title, oldStatus, newStatus), domain.EventTaskMoved, payload)
		},
	})
}

// DeleteTask removes the task and records the trail entry from the final
// snapshot, so the entry keeps the title even though the task is gone.
func (s *Service) DeleteTask(ctx context.Context, actorID, taskID string) error {
	actor := s.actor(ctx, actorID)
	_, err := s.guard.Remove(ctx, taskID, func(ctx context.Context, t domain.Task) error {
		return s.announce(ctx, actor, domain.ActionDeleted, t.ID, t.Title,
			domain.DeletedDetails(t.Title), domain.EventTaskDeleted,
			domain.TaskDeletedPayload{TaskID: t.ID})
	})
	return err
}

// ResolveConflict applies the client's decision for a previously reported
// conflict. keep-current discards the original update. overwrite commits
// the client's payload unconditionally: the stored version is not
// re-checked, so an overwrite can clobber a third editor's commit made
// after the conflict was raised. That matches the behavior board clients
// were built against; see DESIGN.md before changing it.
func (s *Service) ResolveConflict(ctx context.Context, actorID, taskID, resolution string, upd *domain.TaskUpdate) (*domain.Task, error) {
	switch resolution {
	case ResolutionKeepCurrent:
		return nil, nil
	case ResolutionOverwrite:
	default:
		return nil, domain.Validation("unknown resolution")
	}
	if upd == nil {
		return nil, domain.Validation("overwrite requires updates")
	}
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	actor := s.actor(ctx, actorID)
	t, err := s.guard.TryCommit(ctx, Commit{
		TaskID: taskID,
		Mutate: func(t *domain.Task) error {
			upd.Apply(t)
			return nil
		},
		Committed: func(ctx context.Context, t domain.Task) error {
			return s.announce(ctx, actor, domain.ActionUpdated, t.ID, t.Title,
				domain.ResolvedDetails(t.Title), domain.EventTaskUpdated, t)
		},
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// applyChecked applies a partial update, re-running the title rules when
// the title actually changes. Runs under the task's lock; the titleMu
// nesting (task lock, then titleMu) never occurs in the reverse order.
func (s *Service) applyChecked(ctx context.Context, t *domain.Task, upd domain.TaskUpdate) error {
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title != t.Title {
			s.titleMu.Lock()
			defer s.titleMu.Unlock()
			taken, err := s.store.TaskTitleExists(ctx, title, t.ID)
			if err != nil {
				return &domain.StoreError{Op: "title lookup", Err: err}
			}
			if taken {
				return domain.Validation("task title must be unique")
			}
		}
	}
	upd.Apply(t)
	return nil
}

// announce appends the activity entry and publishes the state-change and
// activity-added events, in that order. An activity append failure fails
// the operation; publish failures are logged but do not roll anything
// back, the commit already happened.
func (s *Service) announce(ctx context.Context, actor domain.UserRef, action domain.Action, taskID, taskTitle, details, eventType string, payload any) error {
	act := domain.NewActivity(actor, action, taskID, taskTitle, details)
	if err := s.store.AppendActivity(ctx, act); err != nil {
		return &domain.StoreError{Op: "append activity", Err: err}
	}
	s.publish(ctx, eventType, taskID, payload)
	s.publish(ctx, domain.EventActivityAdded, taskID, act)
	return nil
}

func (s *Service) publish(ctx context.Context, eventType, taskID string, payload any) {
	ev, err := domain.NewEvent(uuid.NewString(), eventType, taskID, payload)
	if err != nil {
		s.log.WithFields(log.Fields{"event": eventType, "task": taskID}).Errorf("marshal event: %v", err)
		return
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.WithFields(log.Fields{"event": eventType, "task": taskID}).Errorf("publish: %v", err)
	}
}

// emitConflict sends the descriptor to the initiating client only. It is
// never broadcast and never recorded on the trail.
func (s *Service) emitConflict(ctx context.Context, clientID, taskID string, clientVersion int64, upd domain.TaskUpdate, conflict *domain.VersionConflictError) {
	payload := domain.ConflictPayload{
		TaskID:        taskID,
		ServerVersion: conflict.ServerVersion,
		ClientVersion: clientVersion,
		ServerTask:    conflict.ServerTask,
		ClientUpdates: upd,
	}
	ev, err := domain.NewEvent(uuid.NewString(), domain.EventConflict, taskID, payload)
	if err != nil {
		s.log.Errorf("marshal conflict event: %v", err)
		return
	}
	ev.TargetClientID = clientID
	if err := s.pub.Publish(ctx, ev); err != nil {
		s.log.Errorf("publish conflict: %v", err)
	}
}

// actor resolves the acting user's display name for denormalized records.
// Unknown ids fall back to the id itself rather than failing the mutation.
func (s *Service) actor(ctx context.Context, actorID string) domain.UserRef {
	u, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return domain.UserRef{ID: actorID, Name: actorID}
	}
	return u
}
