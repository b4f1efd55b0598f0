package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"boardsync/domain"
)

// Archiver receives a copy of every published event, e.g. a durable queue
// for offline consumers. Archive failures never fail the publish.
type Archiver interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Publisher sends board events to the redis channel shared by every
// service instance. Publishes from a single commit happen in sequence on
// the same connection, so redis preserves per-task event order.
type Publisher struct {
	rc      *redis.Client
	channel string
	archive Archiver
	log     *log.Logger
}

func NewPublisher(rc *redis.Client, channel string, archive Archiver, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Publisher{rc: rc, channel: channel, archive: archive, log: logger}
}

func (p *Publisher) Publish(ctx context.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.rc.Publish(ctx, p.channel, data).Err(); err != nil {
		return err
	}
	if p.archive != nil {
		if err := p.archive.Publish(ctx, ev); err != nil {
			p.log.Errorf("archive event %s: %v", ev.Type, err)
		}
	}
	return nil
}

// SubscribeEvents consumes the board channel and feeds the hub until ctx
// is done, reconnecting when the pub/sub channel drops.
func SubscribeEvents(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, hub *Hub) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	receive:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break receive
				}
				var ev domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Errorf("unable to parse board event: %v", err)
					continue
				}
				hub.Dispatch(ev, []byte(msg.Payload))
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("board events channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}
