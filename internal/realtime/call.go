package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vibelink/internal/domain/conversation"
	"vibelink/internal/domain/message"
	"vibelink/internal/events"
)

// Call session states. Transitions are monotonic; a terminal session
// never leaves StatusEnded.
const (
	StatusCalling   = "calling"
	StatusRinging   = "ringing"
	StatusAccepted  = "accepted"
	StatusConnected = "connected"
	StatusEnded     = "ended"
)

var statusRank = map[string]int{
	StatusCalling:   0,
	StatusRinging:   1,
	StatusAccepted:  2,
	StatusConnected: 3,
	StatusEnded:     4,
}

// DirectConversationResolver resolves where a call's outcome message
// lands. Implemented by services.ConversationService.
type DirectConversationResolver interface {
	GetOrCreateDirect(ctx context.Context, userID1, userID2 uuid.UUID) (conversation.Conversation, error)
}

// CallOutcomeRecorder persists exactly one outcome message per call.
// Implemented by services.MessageService.
type CallOutcomeRecorder interface {
	RecordCallOutcome(ctx context.Context, authorID, otherID uuid.UUID, conversationID uuid.UUID, status string, isVideo bool, duration time.Duration) (message.Message, error)
}

// CallConfig carries the signaling timing knobs.
type CallConfig struct {
	RingTimeout     time.Duration
	FailedThreshold time.Duration
	SessionLinger   time.Duration
}

// CallSession is one call attempt between two users.
type CallSession struct {
	ID           string
	Caller       uuid.UUID
	Callee       uuid.UUID
	IsVideo      bool
	Status       string
	CreatedAt    time.Time
	StartTime    time.Time
	EndTime      time.Time
	ringCancel   chan struct{}
	outcomeDone  bool
	lingerRemove *time.Timer
}

type pairKey struct {
	low  uuid.UUID
	high uuid.UUID
}

func newPairKey(a, b uuid.UUID) pairKey {
	if a.String() < b.String() {
		return pairKey{low: a, high: b}
	}
	return pairKey{low: b, high: a}
}

// CallManager owns all call session state. One non-terminal session per
// unordered user pair; every session ends with exactly one persisted
// outcome message in the pair's direct conversation.
type CallManager struct {
	peers         PeerSender
	conversations DirectConversationResolver
	outcomes      CallOutcomeRecorder
	cfg           CallConfig
	logger        *EventLogger

	// pollInterval is how often an unreachable callee is re-probed
	// during ringing. Shortened in tests.
	pollInterval time.Duration

	mu       sync.Mutex
	sessions map[string]*CallSession
	pairs    map[pairKey]string
}

func NewCallManager(peers PeerSender, conversations DirectConversationResolver, outcomes CallOutcomeRecorder, cfg CallConfig) *CallManager {
	return &CallManager{
		peers:         peers,
		conversations: conversations,
		outcomes:      outcomes,
		cfg:           cfg,
		logger:        newEventLogger(),
		pollInterval:  time.Second,
		sessions:      make(map[string]*CallSession),
		pairs:         make(map[pairKey]string),
	}
}

// HandleCallRequest starts a new call attempt. The caller may supply
// the call id; every later signaling event carries it so rapid attempts
// between the same pair never get confused. A live session between the
// same two users rejects the attempt; the session is created before the
// reachability check so a concurrent second request cannot slip in.
func (m *CallManager) HandleCallRequest(ctx context.Context, callerID, calleeID uuid.UUID, isVideo bool, callID string) {
	if callerID == calleeID {
		m.peers.ToUser(callerID, events.EventCallError, map[string]any{
			"error": "cannot call yourself",
		})
		return
	}
	if callID == "" {
		callID = uuid.New().String()
	}

	key := newPairKey(callerID, calleeID)

	m.mu.Lock()
	if _, busy := m.pairs[key]; busy {
		m.mu.Unlock()
		m.peers.ToUser(callerID, events.EventCallError, map[string]any{
			"error":      "call already in progress",
			"to_user_id": calleeID,
			"call_id":    callID,
		})
		return
	}
	if _, taken := m.sessions[callID]; taken {
		m.mu.Unlock()
		m.peers.ToUser(callerID, events.EventCallError, map[string]any{
			"error":   "call id already in use",
			"call_id": callID,
		})
		return
	}

	session := &CallSession{
		ID:         callID,
		Caller:     callerID,
		Callee:     calleeID,
		IsVideo:    isVideo,
		Status:     StatusCalling,
		CreatedAt:  time.Now(),
		ringCancel: make(chan struct{}),
	}
	m.sessions[session.ID] = session
	m.pairs[key] = session.ID
	m.mu.Unlock()

	m.logger.Info("call requested", callerID, session.ID, zap.String("callee", calleeID.String()))

	requestPayload := map[string]any{
		"call_id":      session.ID,
		"from_user_id": callerID,
		"is_video":     isVideo,
	}

	if m.peers.IsOnline(calleeID) {
		m.transition(session.ID, StatusRinging)
		m.peers.ToUser(calleeID, events.EventCallRequest, requestPayload)
	} else {
		m.peers.ToUser(callerID, events.EventCallWaiting, map[string]any{
			"call_id":    session.ID,
			"to_user_id": calleeID,
		})
	}

	go m.ringLoop(session.ID, calleeID, requestPayload)
}

// ringLoop enforces the ring timeout and keeps probing an unreachable
// callee. It exits as soon as the session leaves the ringing phase.
func (m *CallManager) ringLoop(sessionID string, calleeID uuid.UUID, requestPayload map[string]any) {
	deadline := time.NewTimer(m.cfg.RingTimeout)
	defer deadline.Stop()

	poll := time.NewTicker(m.pollInterval)
	defer poll.Stop()

	session := m.getSession(sessionID)
	if session == nil {
		return
	}

	for {
		select {
		case <-session.ringCancel:
			return

		case <-poll.C:
			m.mu.Lock()
			status := session.Status
			m.mu.Unlock()
			if status != StatusCalling && status != StatusRinging {
				return
			}
			if status == StatusCalling && m.peers.IsOnline(calleeID) {
				m.transition(sessionID, StatusRinging)
				m.peers.ToUser(calleeID, events.EventCallRequest, requestPayload)
			}

		case <-deadline.C:
			m.mu.Lock()
			status := session.Status
			m.mu.Unlock()
			if status != StatusCalling && status != StatusRinging {
				return
			}

			m.logger.Info("call ring timeout", session.Caller, sessionID)
			m.peers.ToUser(session.Caller, events.EventCallTimeout, map[string]any{
				"call_id":    sessionID,
				"to_user_id": session.Callee,
			})
			m.peers.ToUser(session.Callee, events.EventCallTimeout, map[string]any{
				"call_id":      sessionID,
				"from_user_id": session.Caller,
			})
			m.finishSession(context.Background(), session, session.Caller, message.CallMissed, 0)
			return
		}
	}
}

// HandleAccept moves the call to accepted and tells the caller to start
// sending the offer.
func (m *CallManager) HandleAccept(ctx context.Context, calleeID, callerID uuid.UUID, callID string) {
	session := m.sessionFor(callID, calleeID, callerID)
	if session == nil || session.Callee != calleeID {
		m.peers.ToUser(calleeID, events.EventCallError, map[string]any{
			"error":   "no active call",
			"call_id": callID,
		})
		return
	}

	if !m.peers.IsOnline(session.Caller) {
		// Caller vanished between the ring and the accept.
		m.finishSession(ctx, session, calleeID, message.CallFailed, 0)
		m.peers.ToUser(calleeID, events.EventCallFailed, map[string]any{
			"call_id":      session.ID,
			"from_user_id": session.Caller,
		})
		return
	}

	if !m.transition(session.ID, StatusAccepted) {
		return
	}

	m.peers.ToUser(session.Caller, events.EventCallAccept, map[string]any{
		"call_id":      session.ID,
		"from_user_id": calleeID,
	})
}

// HandleDecline ends the call with a declined outcome authored by the
// callee.
func (m *CallManager) HandleDecline(ctx context.Context, calleeID, callerID uuid.UUID, callID string) {
	session := m.sessionFor(callID, calleeID, callerID)
	if session == nil || session.Callee != calleeID {
		return
	}

	m.peers.ToUser(session.Caller, events.EventCallDecline, map[string]any{
		"call_id":      session.ID,
		"from_user_id": calleeID,
	})
	m.finishSession(ctx, session, calleeID, message.CallDeclined, 0)
}

// HandleEnd hangs up an established or pending call. An end before the
// call connected counts as missed when the caller gives up, declined
// when the callee does.
func (m *CallManager) HandleEnd(ctx context.Context, userID, peerID uuid.UUID, callID string) {
	session := m.sessionFor(callID, userID, peerID)
	if session == nil {
		return
	}
	other := session.Caller
	if other == userID {
		other = session.Callee
	}

	m.peers.ToUser(other, events.EventCallEnd, map[string]any{
		"call_id":      session.ID,
		"from_user_id": userID,
	})

	if !session.StartTime.IsZero() {
		m.finishSession(ctx, session, userID, message.CallEnded, time.Since(session.StartTime))
		return
	}

	if userID == session.Caller {
		m.finishSession(ctx, session, session.Caller, message.CallMissed, 0)
	} else {
		m.finishSession(ctx, session, session.Callee, message.CallDeclined, 0)
	}
}

// HandleTimeout lets a client report its own ring timeout. Server-side
// enforcement already covers this; the handler just makes the outcome
// deterministic when the client clock fires first.
func (m *CallManager) HandleTimeout(ctx context.Context, userID, peerID uuid.UUID, callID string) {
	session := m.sessionFor(callID, userID, peerID)
	if session == nil || !session.StartTime.IsZero() {
		return
	}
	other := session.Caller
	if other == userID {
		other = session.Callee
	}

	m.peers.ToUser(other, events.EventCallTimeout, map[string]any{
		"call_id":      session.ID,
		"from_user_id": userID,
	})
	m.finishSession(ctx, session, session.Caller, message.CallMissed, 0)
}

// HandleFailed tears the call down after a client-reported media
// failure.
func (m *CallManager) HandleFailed(ctx context.Context, userID, peerID uuid.UUID, callID string) {
	session := m.sessionFor(callID, userID, peerID)
	if session == nil {
		return
	}
	other := session.Caller
	if other == userID {
		other = session.Callee
	}

	m.peers.ToUser(other, events.EventCallFailed, map[string]any{
		"call_id":      session.ID,
		"from_user_id": userID,
	})
	m.finishSession(ctx, session, userID, message.CallFailed, 0)
}

// Relay forwards an SDP or ICE frame to the peer untouched. The first
// relayed answer marks the call connected and starts the duration
// clock.
func (m *CallManager) Relay(ctx context.Context, fromID, toID uuid.UUID, eventType, callID string, payload json.RawMessage) {
	session := m.sessionFor(callID, fromID, toID)
	if session == nil {
		m.peers.ToUser(fromID, events.EventCallError, map[string]any{
			"error":   "no active call",
			"call_id": callID,
		})
		return
	}

	target := session.Caller
	if target == fromID {
		target = session.Callee
	}

	if !m.peers.IsOnline(target) {
		m.peers.ToUser(fromID, events.EventCallFailed, map[string]any{
			"call_id":      session.ID,
			"from_user_id": target,
		})
		m.finishSession(ctx, session, fromID, message.CallFailed, 0)
		return
	}

	var enriched map[string]any
	if err := json.Unmarshal(payload, &enriched); err != nil {
		enriched = map[string]any{}
	}
	enriched["call_id"] = session.ID
	enriched["from_user_id"] = fromID
	delete(enriched, "to_user_id")

	m.peers.ToUser(target, eventType, enriched)

	if eventType == events.EventAnswer {
		m.mu.Lock()
		if statusRank[session.Status] < statusRank[StatusConnected] && session.StartTime.IsZero() {
			session.StartTime = time.Now()
		}
		m.mu.Unlock()
		m.transition(session.ID, StatusConnected)
	}
}

// HandleDisconnect classifies an abrupt connection loss during a call.
// The pair guard only blocks duplicate attempts between the same two
// users, so one user can hold live sessions with several peers; every
// one of them is torn down here. A drop before a call connected is a
// failure; after connecting the call ends with its duration, and past
// the failed threshold the live event is annotated as a lost
// connection. The surviving party authors the outcome message.
func (m *CallManager) HandleDisconnect(ctx context.Context, userID uuid.UUID) {
	m.mu.Lock()
	var dropped []*CallSession
	for _, s := range m.sessions {
		if s.Status == StatusEnded {
			continue
		}
		if s.Caller == userID || s.Callee == userID {
			dropped = append(dropped, s)
		}
	}
	m.mu.Unlock()

	for _, session := range dropped {
		m.endDroppedSession(ctx, session, userID)
	}
}

func (m *CallManager) endDroppedSession(ctx context.Context, session *CallSession, userID uuid.UUID) {
	other := session.Caller
	if other == userID {
		other = session.Callee
	}

	if session.StartTime.IsZero() {
		// Never connected.
		m.peers.ToUser(other, events.EventCallFailed, map[string]any{
			"call_id":      session.ID,
			"from_user_id": userID,
		})
		m.finishSession(ctx, session, other, message.CallFailed, 0)
		return
	}

	duration := time.Since(session.StartTime)
	payload := map[string]any{
		"call_id":          session.ID,
		"from_user_id":     userID,
		"duration_seconds": int(duration.Seconds()),
	}
	if duration >= m.cfg.FailedThreshold {
		payload["reason"] = "connection lost"
	}
	m.peers.ToUser(other, events.EventCallDisconnected, payload)
	m.finishSession(ctx, session, other, message.CallEnded, duration)
}

// transition advances the session status, refusing any move backwards.
func (m *CallManager) transition(sessionID, next string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	if statusRank[next] <= statusRank[session.Status] {
		return false
	}
	session.Status = next
	if next == StatusEnded {
		session.EndTime = time.Now()
	}
	return true
}

// finishSession ends the session, frees the pair slot, and persists the
// single outcome message. A session already ended is a no-op, which is
// what makes concurrent hangup paths safe.
func (m *CallManager) finishSession(ctx context.Context, session *CallSession, authorID uuid.UUID, status string, duration time.Duration) {
	m.mu.Lock()
	if session.Status == StatusEnded {
		m.mu.Unlock()
		return
	}
	session.Status = StatusEnded
	session.EndTime = time.Now()

	recordOutcome := !session.outcomeDone
	session.outcomeDone = true

	// The pair frees immediately so a new call can start while the
	// ended session lingers for late signaling frames.
	delete(m.pairs, newPairKey(session.Caller, session.Callee))

	select {
	case <-session.ringCancel:
	default:
		close(session.ringCancel)
	}

	session.lingerRemove = time.AfterFunc(m.cfg.SessionLinger, func() {
		m.mu.Lock()
		delete(m.sessions, session.ID)
		m.mu.Unlock()
	})
	m.mu.Unlock()

	m.logger.Info("call ended", authorID, session.ID,
		zap.String("status", status),
		zap.Duration("duration", duration))

	if !recordOutcome {
		return
	}

	otherID := session.Caller
	if otherID == authorID {
		otherID = session.Callee
	}

	conv, err := m.conversations.GetOrCreateDirect(ctx, session.Caller, session.Callee)
	if err != nil {
		m.logger.Error("call outcome conversation lookup failed", authorID, session.ID, err)
		return
	}

	if _, err := m.outcomes.RecordCallOutcome(ctx, authorID, otherID, conv.ID, status, session.IsVideo, duration); err != nil {
		m.logger.Error("call outcome persist failed", authorID, session.ID, err)
	}
}

// sessionFor resolves a signaling event to its session. An explicit
// call id wins; events without one fall back to the unordered-pair
// lookup, which is unambiguous while only one session per pair can be
// live.
func (m *CallManager) sessionFor(callID string, a, b uuid.UUID) *CallSession {
	if callID == "" {
		return m.activeSession(a, b)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[callID]
	if !ok || session.Status == StatusEnded {
		return nil
	}
	if session.Caller != a && session.Callee != a {
		return nil
	}
	if b != uuid.Nil && session.Caller != b && session.Callee != b {
		return nil
	}
	return session
}

// activeSession returns the non-terminal session between two users.
func (m *CallManager) activeSession(a, b uuid.UUID) *CallSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.pairs[newPairKey(a, b)]
	if !ok {
		return nil
	}
	session, ok := m.sessions[id]
	if !ok || session.Status == StatusEnded {
		return nil
	}
	return session
}

func (m *CallManager) getSession(id string) *CallSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Stop cancels all pending timers. Sessions are abandoned without
// outcomes since the process is going down.
func (m *CallManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, session := range m.sessions {
		select {
		case <-session.ringCancel:
		default:
			close(session.ringCancel)
		}
		if session.lingerRemove != nil {
			session.lingerRemove.Stop()
		}
	}
	m.sessions = make(map[string]*CallSession)
	m.pairs = make(map[pairKey]string)
}
