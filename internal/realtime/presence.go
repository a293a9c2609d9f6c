package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"vibelink/internal/events"
)

// PeerSender is the slice of the Hub the registry needs for status
// fan-out.
type PeerSender interface {
	ToUser(userID uuid.UUID, eventType string, payload any)
	IsOnline(userID uuid.UUID) bool
}

// StatusSink persists presence transitions and resolves who may see
// them. Implemented by services.UserService.
type StatusSink interface {
	SetOnline(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error
	RefreshPresence(ctx context.Context, userID uuid.UUID) error
	VisibleStatusPeers(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// RegistryConfig carries the presence timing knobs.
type RegistryConfig struct {
	HeartbeatInterval time.Duration
	OfflineTimeout    time.Duration
	OfflineGrace      time.Duration
}

// Registry is the authoritative in-memory presence table. A user is
// online from first registration until their heartbeats stop for the
// offline timeout, they disconnect past the grace window, or they ask
// to appear offline.
type Registry struct {
	peers  PeerSender
	sink   StatusSink
	cfg    RegistryConfig
	logger *EventLogger

	mu            sync.Mutex
	lastActive    map[uuid.UUID]time.Time
	offlineTimers map[uuid.UUID]*time.Timer
	hidden        map[uuid.UUID]struct{}

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewRegistry(peers PeerSender, sink StatusSink, cfg RegistryConfig) *Registry {
	return &Registry{
		peers:         peers,
		sink:          sink,
		cfg:           cfg,
		logger:        newEventLogger(),
		lastActive:    make(map[uuid.UUID]time.Time),
		offlineTimers: make(map[uuid.UUID]*time.Timer),
		hidden:        make(map[uuid.UUID]struct{}),
		stopChan:      make(chan struct{}),
	}
}

// Register marks the user online. Reconnection inside the grace window
// cancels the pending offline transition so peers never see a flap.
func (r *Registry) Register(userID uuid.UUID) {
	r.mu.Lock()
	if t, ok := r.offlineTimers[userID]; ok {
		t.Stop()
		delete(r.offlineTimers, userID)
	}
	delete(r.hidden, userID)
	_, wasOnline := r.lastActive[userID]
	r.lastActive[userID] = time.Now()
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.sink.SetOnline(ctx, userID); err != nil {
		r.logger.Error("presence persist failed", userID, "", err)
	}

	if !wasOnline {
		r.broadcastStatus(ctx, userID, true, time.Time{})
	}
}

// Heartbeat refreshes the activity clock. An untracked heartbeat
// re-registers quietly so a missed register frame self-heals, except
// for users who asked to appear offline: heartbeats never promote
// them, only Register does.
func (r *Registry) Heartbeat(userID uuid.UUID) {
	r.mu.Lock()
	if _, off := r.hidden[userID]; off {
		r.mu.Unlock()
		return
	}
	_, tracked := r.lastActive[userID]
	r.lastActive[userID] = time.Now()
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if !tracked {
		if err := r.sink.SetOnline(ctx, userID); err != nil {
			r.logger.Error("presence persist failed", userID, "", err)
		}
		return
	}

	if err := r.sink.RefreshPresence(ctx, userID); err != nil {
		r.logger.Error("presence refresh failed", userID, "", err)
	}
}

// Deregister schedules the offline transition after the grace window.
// If the user reconnects before it fires, the transition is dropped.
func (r *Registry) Deregister(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.offlineTimers[userID]; ok {
		t.Stop()
	}

	r.offlineTimers[userID] = time.AfterFunc(r.cfg.OfflineGrace, func() {
		r.mu.Lock()
		delete(r.offlineTimers, userID)
		r.mu.Unlock()

		if r.peers.IsOnline(userID) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r.markOffline(ctx, userID, time.Now())
	})
}

// SetExplicitOffline makes the user appear offline immediately while
// their connections stay up. The user stays hidden from heartbeat
// self-healing until they register again.
func (r *Registry) SetExplicitOffline(ctx context.Context, userID uuid.UUID) {
	r.mu.Lock()
	r.hidden[userID] = struct{}{}
	r.mu.Unlock()

	r.markOffline(ctx, userID, time.Now())
}

func (r *Registry) markOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) {
	r.mu.Lock()
	_, wasOnline := r.lastActive[userID]
	delete(r.lastActive, userID)
	r.mu.Unlock()

	if err := r.sink.SetOffline(ctx, userID, lastSeen); err != nil {
		r.logger.Error("presence persist failed", userID, "", err)
	}

	if wasOnline {
		r.broadcastStatus(ctx, userID, false, lastSeen)
	}
}

// broadcastStatus fans the transition out to the peers allowed to see
// this user's status.
func (r *Registry) broadcastStatus(ctx context.Context, userID uuid.UUID, isOnline bool, lastSeen time.Time) {
	peerIDs, err := r.sink.VisibleStatusPeers(ctx, userID)
	if err != nil {
		r.logger.Error("presence peer lookup failed", userID, "", err)
		return
	}

	payload := map[string]any{
		"user_id":   userID,
		"is_online": isOnline,
	}
	if !isOnline && !lastSeen.IsZero() {
		payload["last_seen"] = lastSeen
	}

	for _, peerID := range peerIDs {
		r.peers.ToUser(peerID, events.EventUserStatusChange, payload)
	}
}

// Run sweeps for users whose heartbeats have gone silent. The sweep
// works over a snapshot so slow persistence never blocks registration.
func (r *Registry) Run() {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(time.Now())
		case <-r.stopChan:
			return
		}
	}
}

func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	var stale []uuid.UUID
	for userID, last := range r.lastActive {
		if now.Sub(last) > r.cfg.OfflineTimeout {
			stale = append(stale, userID)
		}
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, userID := range stale {
		r.logger.Info("presence timeout", userID, "")
		r.markOffline(ctx, userID, now)
	}
}

func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })

	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, t := range r.offlineTimers {
		t.Stop()
		delete(r.offlineTimers, userID)
	}
}
