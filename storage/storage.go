package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"boardsync/domain"
)

// The service has exactly one implicit board; every task and activity
// lives in this partition. Users get their own partition in a separate
// table so the canonical listing is just a partition scan.
const (
	boardPartition = "main-board"
	userPartition  = "users"
)

// Storage provides access to the underlying table storage.
type Storage struct {
	tasks      *aztables.Client
	users      *aztables.Client
	activities *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, usersTable, activitiesTable string) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{
		tasks:      svc.NewClient(tasksTable),
		users:      svc.NewClient(usersTable),
		activities: svc.NewClient(activitiesTable),
	}, nil
}

type taskEntity struct {
	aztables.Entity
	Title            string `json:"Title"`
	Description      string `json:"Description"`
	Status           string `json:"Status"`
	Priority         string `json:"Priority"`
	AssignedUserID   string `json:"AssignedUserId"`
	AssignedUserName string `json:"AssignedUserName"`
	CreatedByID      string `json:"CreatedById"`
	CreatedByName    string `json:"CreatedByName"`
	Version          int64  `json:"Version"`
	LastModified     string `json:"LastModified"`
	CreatedAt        string `json:"CreatedAt"`
}

func encodeTask(t domain.Task) taskEntity {
	ent := taskEntity{
		Entity:        aztables.Entity{PartitionKey: boardPartition, RowKey: t.ID},
		Title:         t.Title,
		Description:   t.Description,
		Status:        string(t.Status),
		Priority:      string(t.Priority),
		CreatedByID:   t.CreatedBy.ID,
		CreatedByName: t.CreatedBy.Name,
		Version:       t.Version,
		LastModified:  t.LastModified.UTC().Format(time.RFC3339Nano),
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if t.AssignedUser != nil {
		ent.AssignedUserID = t.AssignedUser.ID
		ent.AssignedUserName = t.AssignedUser.Name
	}
	return ent
}

func decodeTask(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		Status:      domain.Status(ent.Status),
		Priority:    domain.Priority(ent.Priority),
		CreatedBy:   domain.UserRef{ID: ent.CreatedByID, Name: ent.CreatedByName},
		Version:     ent.Version,
	}
	if ent.AssignedUserID != "" {
		t.AssignedUser = &domain.UserRef{ID: ent.AssignedUserID, Name: ent.AssignedUserName}
	}
	t.LastModified, _ = time.Parse(time.RFC3339Nano, ent.LastModified)
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, ent.CreatedAt)
	return t, nil
}

func (s *Storage) GetTask(ctx context.Context, id string) (domain.Task, error) {
	resp, err := s.tasks.GetEntity(ctx, boardPartition, id, nil)
	if err != nil {
		return domain.Task{}, mapNotFound(err)
	}
	return decodeTask(resp.Value)
}

func (s *Storage) PutTask(ctx context.Context, t domain.Task) error {
	data, err := json.Marshal(encodeTask(t))
	if err != nil {
		return err
	}
	_, err = s.tasks.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	_, err := s.tasks.DeleteEntity(ctx, boardPartition, id, nil)
	return mapNotFound(err)
}

func (s *Storage) ListTasks(ctx context.Context) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + boardPartition + "'"
	pager := s.tasks.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTask(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	return tasks, nil
}

func (s *Storage) TaskTitleExists(ctx context.Context, title, excludeID string) (bool, error) {
	filter := fmt.Sprintf("PartitionKey eq '%s' and Title eq '%s'", boardPartition, escapeODataString(title))
	pager := s.tasks.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return false, err
		}
		for _, e := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return false, err
			}
			if ent.RowKey != excludeID {
				return true, nil
			}
		}
	}
	return false, nil
}

type userEntity struct {
	aztables.Entity
	Name string `json:"Name"`
}

func (s *Storage) GetUser(ctx context.Context, id string) (domain.UserRef, error) {
	resp, err := s.users.GetEntity(ctx, userPartition, id, nil)
	if err != nil {
		return domain.UserRef{}, mapNotFound(err)
	}
	var ent userEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.UserRef{}, err
	}
	return domain.UserRef{ID: ent.RowKey, Name: ent.Name}, nil
}

// ListUsers returns every known user in ascending id order. Table listings
// come back in key order already, which is exactly the canonical order the
// smart-assign tie-break needs.
func (s *Storage) ListUsers(ctx context.Context) ([]domain.UserRef, error) {
	filter := "PartitionKey eq '" + userPartition + "'"
	pager := s.users.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	users := []domain.UserRef{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent userEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			users = append(users, domain.UserRef{ID: ent.RowKey, Name: ent.Name})
		}
	}
	return users, nil
}

type activityEntity struct {
	aztables.Entity
	ActivityID string `json:"ActivityId"`
	UserID     string `json:"UserId"`
	UserName   string `json:"UserName"`
	Action     string `json:"Action"`
	TaskID     string `json:"TaskId"`
	TaskTitle  string `json:"TaskTitle"`
	Details    string `json:"Details"`
	CreatedAt  string `json:"CreatedAt"`
}

// activityRowKey inverts the timestamp so newer entries sort first in the
// table's ascending key order; the id suffix keeps same-instant keys unique.
func activityRowKey(a domain.Activity) string {
	return fmt.Sprintf("%020d-%s", math.MaxInt64-a.CreatedAt.UnixNano(), a.ID)
}

func (s *Storage) AppendActivity(ctx context.Context, a domain.Activity) error {
	ent := activityEntity{
		Entity:     aztables.Entity{PartitionKey: boardPartition, RowKey: activityRowKey(a)},
		ActivityID: a.ID,
		UserID:     a.User.ID,
		UserName:   a.User.Name,
		Action:     string(a.Action),
		TaskID:     a.TaskID,
		TaskTitle:  a.TaskTitle,
		Details:    a.Details,
		CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.activities.AddEntity(ctx, data, nil)
	return err
}

// ListActivities returns the newest entries first, at most limit of them.
func (s *Storage) ListActivities(ctx context.Context, limit int) ([]domain.Activity, error) {
	filter := "PartitionKey eq '" + boardPartition + "'"
	top := int32(limit)
	pager := s.activities.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Top: &top})
	out := []domain.Activity{}
	for pager.More() && len(out) < limit {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent activityEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			a := domain.Activity{
				ID:        ent.ActivityID,
				User:      domain.UserRef{ID: ent.UserID, Name: ent.UserName},
				Action:    domain.Action(ent.Action),
				TaskID:    ent.TaskID,
				TaskTitle: ent.TaskTitle,
				Details:   ent.Details,
			}
			a.CreatedAt, _ = time.Parse(time.RFC3339Nano, ent.CreatedAt)
			out = append(out, a)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func mapNotFound(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return err
}

// escapeODataString doubles single quotes per the OData filter grammar.
func escapeODataString(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}
