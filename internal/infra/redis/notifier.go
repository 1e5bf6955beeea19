package redis

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"classroom-activity-service/internal/domain"
)

// EventChannel is the pub/sub channel activity events are published on.
const EventChannel = "activity:events"

// Notifier publishes activity events to Redis pub/sub so other service
// instances (and their websocket clients) see transitions made here.
// Delivery is best-effort: publish failures are logged, never returned.
type Notifier struct {
	client *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) Publish(ctx context.Context, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal activity event: %v", err)
		return
	}
	if err := n.client.Publish(ctx, EventChannel, payload).Err(); err != nil {
		log.Printf("publish activity event: %v", err)
	}
}
