package realtime

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vibelink/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Rate limits per minute
type RateLimits struct {
	MaxMessages     int
	MaxTypingEvents int
	MaxReadReceipts int
	MaxCallSignals  int
	MaxHeartbeats   int
}

var DefaultRateLimits = RateLimits{
	MaxMessages:     120,
	MaxTypingEvents: 60,
	MaxReadReceipts: 120,
	MaxCallSignals:  300,
	MaxHeartbeats:   60,
}

// ClientRateLimiter tracks rate limits per client
type ClientRateLimiter struct {
	messageTokens     int
	typingTokens      int
	readReceiptTokens int
	callTokens        int
	heartbeatTokens   int
	lastRefill        time.Time
	mu                sync.Mutex
}

func NewClientRateLimiter() *ClientRateLimiter {
	return &ClientRateLimiter{
		messageTokens:     DefaultRateLimits.MaxMessages,
		typingTokens:      DefaultRateLimits.MaxTypingEvents,
		readReceiptTokens: DefaultRateLimits.MaxReadReceipts,
		callTokens:        DefaultRateLimits.MaxCallSignals,
		heartbeatTokens:   DefaultRateLimits.MaxHeartbeats,
		lastRefill:        time.Now(),
	}
}

func (rl *ClientRateLimiter) Allow(eventType string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastRefill) >= time.Minute {
		rl.refillTokens()
		rl.lastRefill = now
	}

	switch eventType {
	case events.EventSendMessage, events.EventEditMessage, events.EventDeleteMessage,
		events.EventAddReaction, events.EventRemoveReaction,
		events.EventPinMessage, events.EventUnpinMessage:
		if rl.messageTokens > 0 {
			rl.messageTokens--
			return true
		}
	case events.EventTyping, events.EventStopTyping:
		if rl.typingTokens > 0 {
			rl.typingTokens--
			return true
		}
	case events.EventMarkRead:
		if rl.readReceiptTokens > 0 {
			rl.readReceiptTokens--
			return true
		}
	case events.EventCallRequest, events.EventCallAccept, events.EventCallDecline,
		events.EventCallEnd, events.EventCallTimeout, events.EventCallFailed,
		events.EventOffer, events.EventAnswer, events.EventICECandidate:
		if rl.callTokens > 0 {
			rl.callTokens--
			return true
		}
	case events.EventHeartbeat:
		if rl.heartbeatTokens > 0 {
			rl.heartbeatTokens--
			return true
		}
	default:
		// Low-volume events (room joins, presence toggles) are not
		// budgeted individually.
		return true
	}
	return false
}

func (rl *ClientRateLimiter) refillTokens() {
	rl.messageTokens = DefaultRateLimits.MaxMessages
	rl.typingTokens = DefaultRateLimits.MaxTypingEvents
	rl.readReceiptTokens = DefaultRateLimits.MaxReadReceipts
	rl.callTokens = DefaultRateLimits.MaxCallSignals
	rl.heartbeatTokens = DefaultRateLimits.MaxHeartbeats
}

// Client represents a single WebSocket connection
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	userID        uuid.UUID
	clientID      string
	tokenExp      time.Time
	conversations map[uuid.UUID]bool
	rateLimiter   *ClientRateLimiter
	closeOnce     sync.Once
	isClosing     int32
	connectedAt   time.Time
	lastActivity  time.Time
	logger        *EventLogger
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, tokenExp time.Time) *Client {
	now := time.Now()
	return &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		userID:        userID,
		clientID:      uuid.New().String(),
		tokenExp:      tokenExp,
		conversations: make(map[uuid.UUID]bool),
		rateLimiter:   NewClientRateLimiter(),
		connectedAt:   now,
		lastActivity:  now,
		logger:        hub.logger,
	}
}

// Send marshals an envelope onto the connection's outbound queue. A
// full queue drops the frame rather than blocking the caller.
func (c *Client) Send(eventType string, payload any) {
	if atomic.LoadInt32(&c.isClosing) == 1 {
		return
	}
	data := events.New(eventType, payload).Encode()
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client send buffer full", c.userID, c.clientID)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActivity = time.Now()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket unexpected close", c.userID, c.clientID, err)
			}
			break
		}

		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		c.lastActivity = time.Now()

		if err := c.handleMessage(message); err != nil {
			c.logger.Error("websocket handle message failed", c.userID, c.clientID, err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

			if time.Since(c.lastActivity) > pongWait*2 {
				c.logger.Info("client idle timeout", c.userID, c.clientID)
				return
			}
		}
	}
}
