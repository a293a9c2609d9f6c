package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus is the externalized view of a user's online state.
// The authoritative copy lives in the realtime registry; this mirror
// exists so other processes (and a future multi-instance deployment)
// can read presence with TTL-based expiry.
type PresenceStatus struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceStore mirrors presence into Redis
type PresenceStore struct {
	client    *goredis.Client
	publisher *Publisher
	ttl       time.Duration
}

// Redis key prefixes for presence
const (
	presenceKeyPrefix = "presence:"       // per-user presence blob
	presenceOnlineSet = "presence:online" // set of online user IDs
)

// NewPresenceStore creates a new presence store. The TTL should cover
// at least two heartbeat intervals so a single missed refresh does not
// flap the mirror.
func NewPresenceStore(client *goredis.Client, publisher *Publisher, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 2 * time.Minute
	}
	return &PresenceStore{
		client:    client,
		publisher: publisher,
		ttl:       ttl,
	}
}

// SetOnline marks a user as online
func (p *PresenceStore) SetOnline(ctx context.Context, userID string) error {
	now := time.Now()
	status := PresenceStatus{
		UserID:   userID,
		IsOnline: true,
		LastSeen: now,
	}

	pipe := p.client.Pipeline()

	key := presenceKeyPrefix + userID
	data, _ := json.Marshal(status)
	pipe.Set(ctx, key, data, p.ttl)
	pipe.SAdd(ctx, presenceOnlineSet, userID)

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return p.publishPresenceEvent(ctx, userID, true, now)
}

// SetOffline marks a user as offline
func (p *PresenceStore) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	status := PresenceStatus{
		UserID:   userID,
		IsOnline: false,
		LastSeen: lastSeen,
	}

	pipe := p.client.Pipeline()

	key := presenceKeyPrefix + userID
	data, _ := json.Marshal(status)
	// Offline status sticks around longer for last-seen queries.
	pipe.Set(ctx, key, data, 24*time.Hour)
	pipe.SRem(ctx, presenceOnlineSet, userID)

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return p.publishPresenceEvent(ctx, userID, false, lastSeen)
}

// Heartbeat refreshes the presence TTL without re-publishing.
func (p *PresenceStore) Heartbeat(ctx context.Context, userID string) error {
	key := presenceKeyPrefix + userID
	return p.client.Expire(ctx, key, p.ttl).Err()
}

// GetPresence gets the presence status of a user
func (p *PresenceStore) GetPresence(ctx context.Context, userID string) (*PresenceStatus, error) {
	key := presenceKeyPrefix + userID
	data, err := p.client.Get(ctx, key).Result()
	if err == goredis.Nil {
		return &PresenceStatus{UserID: userID, IsOnline: false}, nil
	}
	if err != nil {
		return nil, err
	}

	var status PresenceStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// IsOnline checks if a user is online
func (p *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	return p.client.SIsMember(ctx, presenceOnlineSet, userID).Result()
}

// GetOnlineUsers returns all online user IDs
func (p *PresenceStore) GetOnlineUsers(ctx context.Context) ([]string, error) {
	return p.client.SMembers(ctx, presenceOnlineSet).Result()
}

func (p *PresenceStore) publishPresenceEvent(ctx context.Context, userID string, isOnline bool, timestamp time.Time) error {
	if p.publisher == nil {
		return nil
	}
	return p.publisher.PublishPresence(ctx, userID, isOnline, timestamp)
}

// TrackTyping sets a typing indicator for a user in a conversation
func (p *PresenceStore) TrackTyping(ctx context.Context, conversationID, userID string, isTyping bool) error {
	key := fmt.Sprintf("typing:%s", conversationID)

	if isTyping {
		pipe := p.client.Pipeline()
		pipe.SAdd(ctx, key, userID)
		pipe.Expire(ctx, key, 10*time.Second) // indicator expires on its own
		_, err := pipe.Exec(ctx)
		return err
	}

	return p.client.SRem(ctx, key, userID).Err()
}

// GetTypingUsers returns users currently typing in a conversation
func (p *PresenceStore) GetTypingUsers(ctx context.Context, conversationID string) ([]string, error) {
	key := fmt.Sprintf("typing:%s", conversationID)
	return p.client.SMembers(ctx, key).Result()
}
