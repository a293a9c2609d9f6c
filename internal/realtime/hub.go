package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vibelink/internal/events"
	"vibelink/internal/services"
)

// Hub maintains the set of active clients, their conversation room
// membership, and all outbound fan-out. It is the single owner of the
// connection map; presence and call state live in their own components
// and reach connections only through the Hub.
type Hub struct {
	clients    map[uuid.UUID]map[string]*Client
	register   chan *Client
	unregister chan *Client

	conversationService *services.ConversationService
	messageService      *services.MessageService
	presence            *Registry
	calls               *CallManager

	rateLimiter       *ConnectionRateLimiter
	logger            *EventLogger
	tokenScanInterval time.Duration

	mu        sync.RWMutex
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	isRunning int32
}

// conversationBootstrapLimit bounds how many rooms a fresh connection
// auto-joins.
const conversationBootstrapLimit = 50

// ConnectionRateLimiter tracks connection attempts per user
type ConnectionRateLimiter struct {
	connectionsPerUser map[uuid.UUID][]time.Time
	mu                 sync.Mutex
}

func NewConnectionRateLimiter() *ConnectionRateLimiter {
	return &ConnectionRateLimiter{
		connectionsPerUser: make(map[uuid.UUID][]time.Time),
	}
}

func (w *ConnectionRateLimiter) AllowConnection(userID uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-1 * time.Minute)

	valid := w.connectionsPerUser[userID][:0]
	for _, t := range w.connectionsPerUser[userID] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= 10 {
		w.connectionsPerUser[userID] = valid
		return false
	}

	w.connectionsPerUser[userID] = append(valid, now)
	return true
}

// NewHub creates a new Hub
func NewHub(conversationService *services.ConversationService, messageService *services.MessageService, tokenScanInterval time.Duration) *Hub {
	return &Hub{
		clients:             make(map[uuid.UUID]map[string]*Client),
		register:            make(chan *Client, 256),
		unregister:          make(chan *Client, 256),
		conversationService: conversationService,
		messageService:      messageService,
		rateLimiter:         NewConnectionRateLimiter(),
		logger:              newEventLogger(),
		tokenScanInterval:   tokenScanInterval,
		stopChan:            make(chan struct{}),
	}
}

// AttachPresence wires the presence registry. Must happen before Run.
func (h *Hub) AttachPresence(r *Registry) {
	h.presence = r
}

// AttachCalls wires the call signaling manager. Must happen before Run.
func (h *Hub) AttachCalls(m *CallManager) {
	h.calls = m
}

// Run starts the Hub
func (h *Hub) Run() {
	atomic.StoreInt32(&h.isRunning, 1)
	defer atomic.StoreInt32(&h.isRunning, 0)

	if h.tokenScanInterval > 0 {
		h.wg.Add(1)
		go h.runTokenSweep()
	}

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case <-h.stopChan:
			h.wg.Wait()
			return
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()

	if !h.rateLimiter.AllowConnection(client.userID) {
		h.logger.Warn("connection rate limit exceeded", client.userID, client.clientID)
		h.mu.Unlock()
		client.conn.Close()
		return
	}

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[string]*Client)
	}

	const maxConnectionsPerUser = 10
	if len(h.clients[client.userID]) >= maxConnectionsPerUser {
		h.logger.Warn("max connections per user reached", client.userID, client.clientID)
		for id, c := range h.clients[client.userID] {
			h.removeClient(c)
			delete(h.clients[client.userID], id)
			break
		}
	}

	h.clients[client.userID][client.clientID] = client
	firstConnection := len(h.clients[client.userID]) == 1
	h.mu.Unlock()

	joined := h.bootstrapRooms(client)

	client.Send(events.EventConnectionConfirmed, map[string]any{
		"user_id":   client.userID,
		"client_id": client.clientID,
	})
	client.Send(events.EventConversationsJoined, map[string]any{
		"conversation_ids": joined,
	})

	if firstConnection {
		if h.presence != nil {
			h.presence.Register(client.userID)
		}
		h.broadcastAllExcept(client.userID, events.EventNewConnection, map[string]any{
			"user_id": client.userID,
		})
	}

	h.logger.Info("client connected", client.userID, client.clientID)

	go client.writePump()
	go client.readPump()
}

// bootstrapRooms joins the connection to the user's most recent
// conversations so room broadcasts reach it without explicit joins.
func (h *Hub) bootstrapRooms(client *Client) []uuid.UUID {
	if h.conversationService == nil {
		return nil
	}
	ids, err := h.conversationService.GetUserConversationIDs(context.Background(), client.userID, conversationBootstrapLimit)
	if err != nil {
		h.logger.Error("conversation bootstrap failed", client.userID, client.clientID, err)
		return nil
	}

	h.mu.Lock()
	for _, id := range ids {
		client.conversations[id] = true
	}
	h.mu.Unlock()
	return ids
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	lastConnection := false
	if userClients, ok := h.clients[client.userID]; ok {
		if _, ok := userClients[client.clientID]; ok {
			delete(userClients, client.clientID)
			h.removeClient(client)

			if len(userClients) == 0 {
				delete(h.clients, client.userID)
				lastConnection = true
			}

			h.logger.Info("client disconnected", client.userID, client.clientID)
		}
	}
	h.mu.Unlock()

	if lastConnection {
		if h.presence != nil {
			h.presence.Deregister(client.userID)
		}
		if h.calls != nil {
			h.calls.HandleDisconnect(context.Background(), client.userID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	client.closeOnce.Do(func() {
		atomic.StoreInt32(&client.isClosing, 1)
		close(client.send)
	})
	client.conn.Close()
}

// JoinRoom adds the connection to a conversation room. No authorization
// beyond room name possession; message send is where participation is
// enforced.
func (h *Hub) JoinRoom(client *Client, conversationID uuid.UUID) {
	h.mu.Lock()
	client.conversations[conversationID] = true
	h.mu.Unlock()
}

func (h *Hub) LeaveRoom(client *Client, conversationID uuid.UUID) {
	h.mu.Lock()
	delete(client.conversations, conversationID)
	h.mu.Unlock()
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// ToUser delivers an event to every connection of one user.
func (h *Hub) ToUser(userID uuid.UUID, eventType string, payload any) {
	data := events.New(eventType, payload).Encode()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients[userID] {
		h.push(client, data)
	}
}

// ToConversation delivers an event to every connection in the room.
func (h *Hub) ToConversation(conversationID uuid.UUID, eventType string, payload any) {
	data := events.New(eventType, payload).Encode()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, userClients := range h.clients {
		for _, client := range userClients {
			if client.conversations[conversationID] {
				h.push(client, data)
			}
		}
	}
}

// ToConversationExcept is ToConversation minus one user's connections.
func (h *Hub) ToConversationExcept(conversationID, exceptUserID uuid.UUID, eventType string, payload any) {
	data := events.New(eventType, payload).Encode()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID, userClients := range h.clients {
		if userID == exceptUserID {
			continue
		}
		for _, client := range userClients {
			if client.conversations[conversationID] {
				h.push(client, data)
			}
		}
	}
}

func (h *Hub) broadcastAllExcept(exceptUserID uuid.UUID, eventType string, payload any) {
	data := events.New(eventType, payload).Encode()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID, userClients := range h.clients {
		if userID == exceptUserID {
			continue
		}
		for _, client := range userClients {
			h.push(client, data)
		}
	}
}

// push is best-effort: a full send buffer drops the frame for that
// connection instead of blocking the fan-out.
func (h *Hub) push(client *Client, data []byte) {
	if atomic.LoadInt32(&client.isClosing) == 1 {
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.Warn("client send buffer full", client.userID, client.clientID)
	}
}

// runTokenSweep periodically disconnects connections whose credential
// has expired mid-session, announcing the expiry first.
func (h *Hub) runTokenSweep() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.tokenScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweepExpiredTokens(time.Now())
		case <-h.stopChan:
			return
		}
	}
}

func (h *Hub) sweepExpiredTokens(now time.Time) {
	h.mu.RLock()
	var expired []*Client
	for _, userClients := range h.clients {
		for _, client := range userClients {
			if !client.tokenExp.IsZero() && now.After(client.tokenExp) {
				expired = append(expired, client)
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range expired {
		h.logger.Info("disconnecting expired credential", client.userID, client.clientID)
		client.Send(events.EventTokenExpired, nil)
		// Give the write pump a moment to flush the notice.
		go func(c *Client) {
			time.Sleep(250 * time.Millisecond)
			c.conn.Close()
		}(client)
	}
}

// Stop gracefully shuts down the Hub
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, userClients := range h.clients {
		for _, client := range userClients {
			h.removeClient(client)
		}
	}
	h.clients = make(map[uuid.UUID]map[string]*Client)
}
