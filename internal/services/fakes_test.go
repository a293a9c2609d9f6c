package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vibelink/internal/domain/conversation"
	"vibelink/internal/domain/message"
	"vibelink/internal/domain/notification"
	"vibelink/internal/domain/post"
	"vibelink/internal/domain/user"
	vibelink_errors "vibelink/pkg/errors"
)

// In-memory repository fakes backing the service tests.

type memUserRepo struct {
	mu       sync.Mutex
	users    map[uuid.UUID]user.User
	settings map[uuid.UUID]user.Settings
	blocks   map[[2]uuid.UUID]bool
	sessions map[uuid.UUID]user.Session
	peers    map[uuid.UUID][]user.Peer
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		users:    make(map[uuid.UUID]user.User),
		settings: make(map[uuid.UUID]user.Settings),
		blocks:   make(map[[2]uuid.UUID]bool),
		sessions: make(map[uuid.UUID]user.Session),
		peers:    make(map[uuid.UUID][]user.Peer),
	}
}

func (r *memUserRepo) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return vibelink_errors.ErrAlreadyExists
		}
	}
	r.users[u.ID] = *u
	r.settings[u.ID] = user.Settings{
		UserID:           u.ID,
		ShowOnlineStatus: true,
		NotifyMessages:   true,
		NotifyCalls:      true,
	}
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.User{}, vibelink_errors.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, vibelink_errors.ErrNotFound
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return user.User{}, vibelink_errors.ErrNotFound
}

func (r *memUserRepo) UpdateOnlineStatus(ctx context.Context, userID uuid.UUID, isOnline bool, lastSeen *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return vibelink_errors.ErrNotFound
	}
	u.IsOnline = isOnline
	if lastSeen != nil {
		u.LastSeen.Time = *lastSeen
		u.LastSeen.Valid = true
	} else {
		u.LastSeen.Valid = false
	}
	r.users[userID] = u
	return nil
}

func (r *memUserRepo) GetSettings(ctx context.Context, userID uuid.UUID) (user.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[userID]
	if !ok {
		return user.Settings{}, vibelink_errors.ErrNotFound
	}
	return s, nil
}

func (r *memUserRepo) UpdateSettings(ctx context.Context, s user.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[s.UserID] = s
	return nil
}

func (r *memUserRepo) Block(ctx context.Context, userID, blockedUserID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks[[2]uuid.UUID{userID, blockedUserID}] = true
	return nil
}

func (r *memUserRepo) Unblock(ctx context.Context, userID, blockedUserID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blocks, [2]uuid.UUID{userID, blockedUserID})
	return nil
}

func (r *memUserRepo) IsBlockedEither(ctx context.Context, userID1, userID2 uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blocks[[2]uuid.UUID{userID1, userID2}] || r.blocks[[2]uuid.UUID{userID2, userID1}], nil
}

func (r *memUserRepo) GetConversationPeers(ctx context.Context, userID uuid.UUID) ([]user.Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peers[userID], nil
}

func (r *memUserRepo) CreateSession(ctx context.Context, s *user.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r *memUserRepo) GetSessionByID(ctx context.Context, sessionID uuid.UUID) (user.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return user.Session{}, vibelink_errors.ErrNotFound
	}
	return s, nil
}

func (r *memUserRepo) RevokeSession(ctx context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return vibelink_errors.ErrNotFound
	}
	s.IsRevoked = true
	r.sessions[sessionID] = s
	return nil
}

type memConvRepo struct {
	mu           sync.Mutex
	convs        map[uuid.UUID]conversation.Conversation
	participants map[uuid.UUID][]conversation.Participant
	pins         []conversation.PinnedMessage
}

func newMemConvRepo() *memConvRepo {
	return &memConvRepo{
		convs:        make(map[uuid.UUID]conversation.Conversation),
		participants: make(map[uuid.UUID][]conversation.Participant),
	}
}

func (r *memConvRepo) Create(ctx context.Context, c *conversation.Conversation, participants []conversation.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[c.ID] = *c
	r.participants[c.ID] = participants
	return nil
}

func (r *memConvRepo) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return conversation.Conversation{}, vibelink_errors.ErrNotFound
	}
	return c, nil
}

func (r *memConvRepo) GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []conversation.Conversation
	for convID, parts := range r.participants {
		for _, p := range parts {
			if p.UserID == userID {
				out = append(out, r.convs[convID])
			}
		}
	}
	return out, int64(len(out)), nil
}

func (r *memConvRepo) GetUserConversationIDs(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for convID, parts := range r.participants {
		for _, p := range parts {
			if p.UserID == userID {
				out = append(out, convID)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memConvRepo) GetDirectConversation(ctx context.Context, userID1, userID2 uuid.UUID) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for convID, parts := range r.participants {
		c := r.convs[convID]
		if c.Type != conversation.TypeDirect || len(parts) != 2 {
			continue
		}
		found := 0
		for _, p := range parts {
			if p.UserID == userID1 || p.UserID == userID2 {
				found++
			}
		}
		if found == 2 {
			return c, nil
		}
	}
	return conversation.Conversation{}, vibelink_errors.ErrNotFound
}

func (r *memConvRepo) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants[conversationID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memConvRepo) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants[conversationID] {
		if p.UserID == userID {
			return p, nil
		}
	}
	return conversation.Participant{}, vibelink_errors.ErrNotFound
}

func (r *memConvRepo) GetParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for _, p := range r.participants[conversationID] {
		out = append(out, p.UserID)
	}
	return out, nil
}

func (r *memConvRepo) UpdateLastMessage(ctx context.Context, conversationID, messageID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[conversationID]
	if !ok {
		return vibelink_errors.ErrNotFound
	}
	c.LastMessageID = uuid.NullUUID{UUID: messageID, Valid: true}
	c.UpdatedAt = at
	r.convs[conversationID] = c
	return nil
}

func (r *memConvRepo) PinMessage(ctx context.Context, p *conversation.PinnedMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pin := range r.pins {
		if pin.ConversationID == p.ConversationID && pin.MessageID == p.MessageID {
			return vibelink_errors.ErrAlreadyExists
		}
	}
	r.pins = append(r.pins, *p)
	return nil
}

func (r *memConvRepo) UnpinMessage(ctx context.Context, conversationID, messageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, pin := range r.pins {
		if pin.ConversationID == conversationID && pin.MessageID == messageID {
			r.pins = append(r.pins[:i], r.pins[i+1:]...)
			return nil
		}
	}
	return vibelink_errors.ErrNotFound
}

func (r *memConvRepo) GetPinnedMessages(ctx context.Context, conversationID uuid.UUID) ([]conversation.PinnedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []conversation.PinnedMessage
	for _, pin := range r.pins {
		if pin.ConversationID == conversationID {
			out = append(out, pin)
		}
	}
	return out, nil
}

type memMessageRepo struct {
	mu        sync.Mutex
	msgs      map[uuid.UUID]message.Message
	reactions map[uuid.UUID]map[uuid.UUID]message.Reaction
	reads     map[uuid.UUID]map[uuid.UUID]time.Time
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{
		msgs:      make(map[uuid.UUID]message.Message),
		reactions: make(map[uuid.UUID]map[uuid.UUID]message.Reaction),
		reads:     make(map[uuid.UUID]map[uuid.UUID]time.Time),
	}
}

func (r *memMessageRepo) Create(ctx context.Context, m *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[m.ID] = *m
	return nil
}

func (r *memMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok {
		return message.Message{}, vibelink_errors.ErrNotFound
	}
	return m, nil
}

func (r *memMessageRepo) Update(ctx context.Context, m message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.msgs[m.ID]; !ok {
		return vibelink_errors.ErrNotFound
	}
	r.msgs[m.ID] = m
	return nil
}

func (r *memMessageRepo) HardDelete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.msgs[id]; !ok {
		return vibelink_errors.ErrNotFound
	}
	delete(r.msgs, id)
	delete(r.reactions, id)
	delete(r.reads, id)
	return nil
}

func (r *memMessageRepo) GetConversationMessages(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message.Message
	for _, m := range r.msgs {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memMessageRepo) MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID, readAt time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var marked []uuid.UUID
	for id, m := range r.msgs {
		if m.ConversationID != conversationID || m.SenderID == userID {
			continue
		}
		if r.reads[id] == nil {
			r.reads[id] = make(map[uuid.UUID]time.Time)
		}
		if _, done := r.reads[id][userID]; done {
			continue
		}
		r.reads[id][userID] = readAt
		marked = append(marked, id)
	}
	return marked, nil
}

func (r *memMessageRepo) GetReadReceipts(ctx context.Context, messageID uuid.UUID) ([]message.ReadReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message.ReadReceipt
	for userID, at := range r.reads[messageID] {
		out = append(out, message.ReadReceipt{MessageID: messageID, UserID: userID, ReadAt: at})
	}
	return out, nil
}

func (r *memMessageRepo) SetReaction(ctx context.Context, reaction *message.Reaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reactions[reaction.MessageID] == nil {
		r.reactions[reaction.MessageID] = make(map[uuid.UUID]message.Reaction)
	}
	r.reactions[reaction.MessageID][reaction.UserID] = *reaction
	return nil
}

func (r *memMessageRepo) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reactions[messageID], userID)
	return nil
}

func (r *memMessageRepo) GetReactions(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message.Reaction
	for _, reaction := range r.reactions[messageID] {
		out = append(out, reaction)
	}
	return out, nil
}

type memPostRepo struct {
	mu    sync.Mutex
	posts map[uuid.UUID]post.Post
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{posts: make(map[uuid.UUID]post.Post)}
}

func (r *memPostRepo) GetByID(ctx context.Context, id uuid.UUID) (post.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return post.Post{}, vibelink_errors.ErrNotFound
	}
	return p, nil
}

func (r *memPostRepo) IncrementShareCount(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return vibelink_errors.ErrNotFound
	}
	p.ShareCount++
	r.posts[id] = p
	return nil
}

type memNotifRepo struct {
	mu    sync.Mutex
	items []notification.Notification
}

func newMemNotifRepo() *memNotifRepo {
	return &memNotifRepo{}
}

func (r *memNotifRepo) Create(ctx context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, *n)
	return nil
}

func (r *memNotifRepo) GetForRecipient(ctx context.Context, recipientID uuid.UUID, page, limit int) ([]notification.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notification.Notification
	for _, n := range r.items {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memNotifRepo) MarkAllRead(ctx context.Context, recipientID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.items {
		if n.RecipientID == recipientID {
			r.items[i].IsRead = true
		}
	}
	return nil
}

func (r *memNotifRepo) stored(recipientID uuid.UUID) []notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notification.Notification
	for _, n := range r.items {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out
}

// recorderBroadcaster captures every fan-out for assertions.

type broadcastFrame struct {
	scope  string // "user", "conversation", "conversation_except"
	target uuid.UUID
	except uuid.UUID
	event  string
	data   any
}

type recorderBroadcaster struct {
	mu     sync.Mutex
	online map[uuid.UUID]bool
	frames []broadcastFrame
}

func newRecorderBroadcaster() *recorderBroadcaster {
	return &recorderBroadcaster{online: make(map[uuid.UUID]bool)}
}

func (b *recorderBroadcaster) ToUser(userID uuid.UUID, eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, broadcastFrame{scope: "user", target: userID, event: eventType, data: payload})
}

func (b *recorderBroadcaster) ToConversation(conversationID uuid.UUID, eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, broadcastFrame{scope: "conversation", target: conversationID, event: eventType, data: payload})
}

func (b *recorderBroadcaster) ToConversationExcept(conversationID, exceptUserID uuid.UUID, eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, broadcastFrame{scope: "conversation_except", target: conversationID, except: exceptUserID, event: eventType, data: payload})
}

func (b *recorderBroadcaster) IsOnline(userID uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online[userID]
}

func (b *recorderBroadcaster) byEvent(eventType string) []broadcastFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []broadcastFrame
	for _, f := range b.frames {
		if f.event == eventType {
			out = append(out, f)
		}
	}
	return out
}

// fakeNotifier records notification requests without a queue.

type notifyCall struct {
	recipientID uuid.UUID
	senderID    uuid.UUID
	kind        string
	message     string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (f *fakeNotifier) Notify(recipientID, senderID uuid.UUID, kind, message string, entityID uuid.UUID, entityType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{recipientID: recipientID, senderID: senderID, kind: kind, message: message})
	return nil
}

func (f *fakeNotifier) recorded() []notifyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notifyCall, len(f.calls))
	copy(out, f.calls)
	return out
}
