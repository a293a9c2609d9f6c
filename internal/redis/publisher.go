package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// presenceChannelPrefix is the pub/sub channel family presence
// transitions fan out on, one channel per user so subscribers can
// filter server-side.
const presenceChannelPrefix = "vibelink:presence:"

// Presence event names on the wire.
const (
	PresenceEventOnline  = "presence.online"
	PresenceEventOffline = "presence.offline"
)

// PresenceEvent is the pub/sub payload other instances consume to
// track presence transitions they did not originate.
type PresenceEvent struct {
	Event     string    `json:"event"`
	UserID    string    `json:"user_id"`
	IsOnline  bool      `json:"is_online"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher fans presence transitions out over redis pub/sub.
type Publisher struct {
	client *goredis.Client
}

func NewPublisher(client *goredis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishPresence announces a presence transition on the user's
// channel.
func (p *Publisher) PublishPresence(ctx context.Context, userID string, isOnline bool, at time.Time) error {
	event := PresenceEvent{
		Event:     PresenceEventOffline,
		UserID:    userID,
		IsOnline:  isOnline,
		Timestamp: at.UTC(),
	}
	if isOnline {
		event.Event = PresenceEventOnline
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, presenceChannelPrefix+userID, data).Err()
}
