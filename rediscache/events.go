package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis"
	"github.com/saascore/saas-cloud/log"
)

const InstanceEventsChannel = "saas-instance-events"

// InstanceEvent is published whenever an instance changes state.
type InstanceEvent struct {
	Key         string    `json:"key"`
	State       string    `json:"state"`
	Operation   string    `json:"operation"`
	OperationID string    `json:"operation_id"`
	Error       string    `json:"error,omitempty"`
	Time        time.Time `json:"time"`
}

type EventPublisher struct {
	client  *RedisClient
	channel string
}

func NewEventPublisher(client *RedisClient) *EventPublisher {
	return &EventPublisher{
		client:  client,
		channel: InstanceEventsChannel,
	}
}

func (s *EventPublisher) Publish(ctx context.Context, ev *InstanceEvent) error {
	out, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, string(out))
}

// Subscribe returns the subscription for instance events.
func (s *EventPublisher) Subscribe(ctx context.Context) (*redis.PubSub, error) {
	return s.client.Subscribe(ctx, s.channel)
}

func ParseInstanceEvent(msg *redis.Message) (*InstanceEvent, error) {
	ev := &InstanceEvent{}
	if err := json.Unmarshal([]byte(msg.Payload), ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// WatchEvents calls cb for every instance event until the returned
// subscription is closed. Malformed payloads are logged and skipped.
func (s *EventPublisher) WatchEvents(ctx context.Context, cb func(ev *InstanceEvent)) (*redis.PubSub, error) {
	pubsub, err := s.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	ch := pubsub.Channel()
	go func() {
		for msg := range ch {
			ev, err := ParseInstanceEvent(msg)
			if err != nil {
				log.DebugLog(log.DebugLevelEvents, "bad instance event", "payload", msg.Payload, "err", err)
				continue
			}
			cb(ev)
		}
	}()
	return pubsub, nil
}
