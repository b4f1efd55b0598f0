package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"boardsync/domain"
)

// Archive copies accepted board events onto a durable queue for offline
// consumers (audit, read models). It sits behind the live publish and is
// fire-and-forget: an archive failure never fails a commit.
type Archive struct {
	queue *azqueue.QueueClient
}

func NewArchive(connStr, queueName string) (*Archive, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &Archive{queue: q}, nil
}

func (a *Archive) Publish(ctx context.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = a.queue.EnqueueMessage(ctx, string(data), nil)
	return err
}
