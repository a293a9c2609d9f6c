package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vibelink/internal/domain/conversation"
	"vibelink/internal/domain/message"
	"vibelink/internal/domain/notification"
	"vibelink/internal/domain/post"
	"vibelink/internal/domain/user"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByUsername(ctx context.Context, username string) (user.User, error)
	UpdateOnlineStatus(ctx context.Context, userID uuid.UUID, isOnline bool, lastSeen *time.Time) error

	GetSettings(ctx context.Context, userID uuid.UUID) (user.Settings, error)
	UpdateSettings(ctx context.Context, s user.Settings) error

	Block(ctx context.Context, userID, blockedUserID uuid.UUID) error
	Unblock(ctx context.Context, userID, blockedUserID uuid.UUID) error
	IsBlockedEither(ctx context.Context, userID1, userID2 uuid.UUID) (bool, error)

	// GetConversationPeers returns the distinct co-participants across
	// all of the user's conversations, joined with their settings.
	// Pairs with a block row in either direction are excluded.
	GetConversationPeers(ctx context.Context, userID uuid.UUID) ([]user.Peer, error)

	CreateSession(ctx context.Context, s *user.Session) error
	GetSessionByID(ctx context.Context, sessionID uuid.UUID) (user.Session, error)
	RevokeSession(ctx context.Context, sessionID uuid.UUID) error
}

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation, participants []conversation.Participant) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error)
	GetUserConversationIDs(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error)
	GetDirectConversation(ctx context.Context, userID1, userID2 uuid.UUID) (conversation.Conversation, error)

	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error)
	GetParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)

	UpdateLastMessage(ctx context.Context, conversationID, messageID uuid.UUID, at time.Time) error

	PinMessage(ctx context.Context, p *conversation.PinnedMessage) error
	UnpinMessage(ctx context.Context, conversationID, messageID uuid.UUID) error
	GetPinnedMessages(ctx context.Context, conversationID uuid.UUID) ([]conversation.PinnedMessage, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	Update(ctx context.Context, m message.Message) error
	HardDelete(ctx context.Context, id uuid.UUID) error
	GetConversationMessages(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]message.Message, error)

	// MarkConversationRead inserts a read receipt for every message in
	// the conversation the user has not sent and not already read.
	// Returns the ids of newly marked messages.
	MarkConversationRead(ctx context.Context, conversationID, userID uuid.UUID, readAt time.Time) ([]uuid.UUID, error)
	GetReadReceipts(ctx context.Context, messageID uuid.UUID) ([]message.ReadReceipt, error)

	// SetReaction replaces any existing reaction by the user on the
	// message, leaving exactly one row.
	SetReaction(ctx context.Context, r *message.Reaction) error
	RemoveReaction(ctx context.Context, messageID, userID uuid.UUID) error
	GetReactions(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error)
}

type PostRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (post.Post, error)
	IncrementShareCount(ctx context.Context, id uuid.UUID) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	GetForRecipient(ctx context.Context, recipientID uuid.UUID, page, limit int) ([]notification.Notification, int64, error)
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) error
}
