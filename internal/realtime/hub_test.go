package realtime

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibelink/internal/events"
)

// newConnPair dials a real websocket against an in-process server so
// hub tests exercise the actual read and write pumps.
func newConnPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { clientConn.Close() })

	select {
	case conn := <-accepted:
		return conn, clientConn
	case <-time.After(time.Second):
		t.Fatal("websocket handshake did not complete")
		return nil, nil
	}
}

// drainEventTypes reads frames until the connection errors or the
// deadline passes. The write pump batches envelopes with newlines, so
// one frame may carry several events.
func drainEventTypes(conn *websocket.Conn, wait time.Duration) []string {
	deadline := time.Now().Add(wait)
	var types []string
	for {
		conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			return types
		}
		for _, line := range bytes.Split(data, []byte{'\n'}) {
			var env events.Envelope
			if json.Unmarshal(line, &env) == nil && env.Type != "" {
				types = append(types, env.Type)
			}
		}
	}
}

func TestTokenSweepExpiresOnlyStaleCredentials(t *testing.T) {
	hub := NewHub(nil, nil, 0)
	t.Cleanup(hub.Stop)

	expiredUser, validUser := uuid.New(), uuid.New()
	expiredSrv, expiredConn := newConnPair(t)
	validSrv, validConn := newConnPair(t)

	expired := NewClient(hub, expiredSrv, expiredUser, time.Now().Add(-time.Minute))
	valid := NewClient(hub, validSrv, validUser, time.Now().Add(time.Hour))
	hub.handleRegister(expired)
	hub.handleRegister(valid)

	hub.sweepExpiredTokens(time.Now())

	// The expired connection hears the expiry notice and is then closed
	// by the hub, which ends its read pump.
	expiredTypes := drainEventTypes(expiredConn, 2*time.Second)
	assert.Contains(t, expiredTypes, events.EventTokenExpired)

	select {
	case c := <-hub.unregister:
		assert.Equal(t, expired.clientID, c.clientID)
	case <-time.After(2 * time.Second):
		t.Fatal("expired connection was never closed")
	}

	// The valid credential rides out the sweep untouched.
	validTypes := drainEventTypes(validConn, 600*time.Millisecond)
	assert.NotContains(t, validTypes, events.EventTokenExpired)
	assert.True(t, hub.IsOnline(validUser))
}
