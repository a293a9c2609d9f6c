package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vibelink/internal/domain/conversation"
	"vibelink/internal/domain/message"
	"vibelink/internal/domain/notification"
	"vibelink/internal/events"
	"vibelink/internal/repository"
	vibelink_errors "vibelink/pkg/errors"
	"vibelink/pkg/logger"

	"github.com/google/uuid"
)

// ErrInvalidReplyTo is surfaced verbatim to the sender when a reply
// references a message outside the conversation.
var ErrInvalidReplyTo = errors.New("Invalid replyTo message ID")

// Notifier is the notification capability consumed by the delivery
// engine. Implemented by NotificationService.
type Notifier interface {
	Notify(recipientID, senderID uuid.UUID, kind, message string, entityID uuid.UUID, entityType string) error
}

type MessageService struct {
	messageRepo repository.MessageRepository
	convRepo    repository.ConversationRepository
	postRepo    repository.PostRepository
	broadcaster Broadcaster
	notifier    Notifier
	logger      *logger.Logger
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	convRepo repository.ConversationRepository,
	postRepo repository.PostRepository,
	notifier Notifier,
	l *logger.Logger,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		convRepo:    convRepo,
		postRepo:    postRepo,
		broadcaster: noopBroadcaster{},
		notifier:    notifier,
		logger:      l,
	}
}

func (s *MessageService) SetBroadcaster(b Broadcaster) {
	if b != nil {
		s.broadcaster = b
	}
}

type SendMessageInput struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        string
	Type           string
	FileURL        string
	FileName       string
	ReplyToID      uuid.NullUUID
	PostID         uuid.NullUUID
}

// SendMessage persists and fans out one message. Effects run in order
// and each is individually safe to repeat; a failed persist stops the
// chain so no broadcast ever references a message that was not stored.
func (s *MessageService) SendMessage(ctx context.Context, in SendMessageInput) (message.Message, error) {
	if _, err := s.convRepo.GetByID(ctx, in.ConversationID); err != nil {
		return message.Message{}, err
	}

	isParticipant, err := s.convRepo.IsParticipant(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return message.Message{}, err
	}
	if !isParticipant {
		return message.Message{}, vibelink_errors.ErrForbidden
	}

	if in.ReplyToID.Valid {
		parent, err := s.messageRepo.GetByID(ctx, in.ReplyToID.UUID)
		if err != nil || parent.ConversationID != in.ConversationID {
			return message.Message{}, ErrInvalidReplyTo
		}
	}

	msgType := in.Type
	if msgType == "" {
		msgType = message.TypeText
	}

	now := time.Now()
	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Type:           msgType,
		Content:        in.Content,
		ReplyToID:      in.ReplyToID,
		PostID:         in.PostID,
		CreatedAt:      now,
	}
	if in.FileURL != "" {
		msg.FileURL = sql.NullString{String: in.FileURL, Valid: true}
	}
	if in.FileName != "" {
		msg.FileName = sql.NullString{String: in.FileName, Valid: true}
	}

	if err := s.messageRepo.Create(ctx, &msg); err != nil {
		return message.Message{}, err
	}

	if err := s.convRepo.UpdateLastMessage(ctx, in.ConversationID, msg.ID, now); err != nil && s.logger != nil {
		s.logger.Errorf("failed to update conversation pointer for %s: %v", in.ConversationID, err)
	}

	if msgType == message.TypePost && in.PostID.Valid {
		if err := s.postRepo.IncrementShareCount(ctx, in.PostID.UUID); err != nil && s.logger != nil {
			s.logger.Errorf("failed to bump share count for post %s: %v", in.PostID.UUID, err)
		}
	}

	s.broadcaster.ToConversation(in.ConversationID, events.EventNewMessage, msg)
	s.fanOutUnreadAndNotify(ctx, msg)

	return msg, nil
}

func (s *MessageService) fanOutUnreadAndNotify(ctx context.Context, msg message.Message) {
	participants, err := s.convRepo.GetParticipantIDs(ctx, msg.ConversationID)
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("failed to load participants for %s: %v", msg.ConversationID, err)
		}
		return
	}

	preview := msg.Content
	if len(preview) > 80 {
		preview = preview[:80]
	}

	for _, userID := range participants {
		if userID == msg.SenderID {
			continue
		}
		s.broadcaster.ToUser(userID, events.EventUnreadCountUpdate, map[string]any{
			"conversation_id": msg.ConversationID,
			"increment":       1,
		})
		if s.notifier != nil {
			_ = s.notifier.Notify(userID, msg.SenderID, notification.KindMessage, preview, msg.ID, "message")
		}
	}
}

// MarkRead appends read receipts for everything the user has not yet
// read in the conversation. Repeating the call is a no-op.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) ([]uuid.UUID, error) {
	isParticipant, err := s.convRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		return nil, vibelink_errors.ErrForbidden
	}

	readAt := time.Now()
	marked, err := s.messageRepo.MarkConversationRead(ctx, conversationID, userID, readAt)
	if err != nil {
		return nil, err
	}

	if len(marked) > 0 {
		s.broadcaster.ToConversation(conversationID, events.EventMessagesRead, map[string]any{
			"conversation_id": conversationID,
			"user_id":         userID,
			"message_ids":     marked,
			"read_at":         readAt,
		})
	}
	return marked, nil
}

func (s *MessageService) EditMessage(ctx context.Context, messageID, editorID uuid.UUID, content string) (message.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if msg.SenderID != editorID {
		return message.Message{}, vibelink_errors.ErrForbidden
	}
	// Call outcome messages are system records, never editable.
	if msg.Type == message.TypeCall {
		return message.Message{}, vibelink_errors.ErrForbidden
	}

	now := time.Now()
	msg.Content = content
	msg.Edited = true
	msg.EditedAt = sql.NullTime{Time: now, Valid: true}
	if err := s.messageRepo.Update(ctx, msg); err != nil {
		return message.Message{}, err
	}

	s.broadcaster.ToConversation(msg.ConversationID, events.EventMessageEdited, msg)
	return msg, nil
}

// DeleteMessage removes the row outright and announces only the id.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID, actorID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != actorID {
		return vibelink_errors.ErrForbidden
	}

	if err := s.messageRepo.HardDelete(ctx, messageID); err != nil {
		return err
	}

	s.broadcaster.ToConversation(msg.ConversationID, events.EventMessageDeleted, map[string]any{
		"message_id": messageID,
	})
	return nil
}

// SetReaction leaves exactly one reaction slot per user on the message,
// replacing any previous one.
func (s *MessageService) SetReaction(ctx context.Context, messageID, userID uuid.UUID, emoji, name string) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}

	isParticipant, err := s.convRepo.IsParticipant(ctx, msg.ConversationID, userID)
	if err != nil {
		return err
	}
	if !isParticipant {
		return vibelink_errors.ErrForbidden
	}

	reaction := &message.Reaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.messageRepo.SetReaction(ctx, reaction); err != nil {
		return err
	}

	s.broadcaster.ToConversation(msg.ConversationID, events.EventReactionAdded, map[string]any{
		"message_id": messageID,
		"user_id":    userID,
		"emoji":      emoji,
		"name":       name,
	})
	return nil
}

func (s *MessageService) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}

	if err := s.messageRepo.RemoveReaction(ctx, messageID, userID); err != nil {
		return err
	}

	s.broadcaster.ToConversation(msg.ConversationID, events.EventReactionRemoved, map[string]any{
		"message_id": messageID,
		"user_id":    userID,
	})
	return nil
}

// PinMessage pins a message in its conversation. Group conversations
// restrict pinning to admins.
func (s *MessageService) PinMessage(ctx context.Context, conversationID, messageID, userID uuid.UUID) error {
	if err := s.authorizePin(ctx, conversationID, userID); err != nil {
		return err
	}

	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ConversationID != conversationID {
		return vibelink_errors.ErrInvalidInput
	}

	pin := &conversation.PinnedMessage{
		ConversationID: conversationID,
		MessageID:      messageID,
		PinnedBy:       userID,
		PinnedAt:       time.Now(),
	}
	if err := s.convRepo.PinMessage(ctx, pin); err != nil {
		return err
	}

	s.broadcaster.ToConversation(conversationID, events.EventMessagePinned, map[string]any{
		"conversation_id": conversationID,
		"message_id":      messageID,
		"pinned_by":       userID,
	})
	return nil
}

func (s *MessageService) UnpinMessage(ctx context.Context, conversationID, messageID, userID uuid.UUID) error {
	if err := s.authorizePin(ctx, conversationID, userID); err != nil {
		return err
	}

	if err := s.convRepo.UnpinMessage(ctx, conversationID, messageID); err != nil {
		return err
	}

	s.broadcaster.ToConversation(conversationID, events.EventMessageUnpinned, map[string]any{
		"conversation_id": conversationID,
		"message_id":      messageID,
	})
	return nil
}

func (s *MessageService) authorizePin(ctx context.Context, conversationID, userID uuid.UUID) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}

	participant, err := s.convRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, vibelink_errors.ErrNotFound) {
			return vibelink_errors.ErrForbidden
		}
		return err
	}

	if conv.Type == conversation.TypeGroup && participant.Role != conversation.RoleAdmin {
		return vibelink_errors.ErrForbidden
	}
	return nil
}

func (s *MessageService) GetConversationMessages(ctx context.Context, conversationID, userID uuid.UUID, page, limit int) ([]message.Message, error) {
	isParticipant, err := s.convRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		return nil, vibelink_errors.ErrForbidden
	}
	return s.messageRepo.GetConversationMessages(ctx, conversationID, page, limit)
}

// RecordCallOutcome persists the single outcome message of a call
// attempt into the direct conversation of the pair, and fans it out
// like a regular message so the failure is visible even if the live
// terminal event was missed.
func (s *MessageService) RecordCallOutcome(ctx context.Context, authorID, otherID uuid.UUID, conversationID uuid.UUID, status string, isVideo bool, duration time.Duration) (message.Message, error) {
	now := time.Now()
	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       authorID,
		Type:           message.TypeCall,
		Content:        FormatCallContent(status, isVideo, duration),
		CallStatus:     sql.NullString{String: status, Valid: true},
		CreatedAt:      now,
	}

	if err := s.messageRepo.Create(ctx, &msg); err != nil {
		return message.Message{}, err
	}

	if err := s.convRepo.UpdateLastMessage(ctx, conversationID, msg.ID, now); err != nil && s.logger != nil {
		s.logger.Errorf("failed to update conversation pointer for %s: %v", conversationID, err)
	}

	s.broadcaster.ToConversation(conversationID, events.EventNewMessage, msg)
	if s.notifier != nil {
		_ = s.notifier.Notify(otherID, authorID, notification.KindCall, msg.Content, msg.ID, "message")
	}
	return msg, nil
}

// FormatCallContent renders the human-readable outcome line for a
// call-type message.
func FormatCallContent(status string, isVideo bool, duration time.Duration) string {
	kind := "Voice"
	if isVideo {
		kind = "Video"
	}

	switch status {
	case message.CallMissed:
		return fmt.Sprintf("Missed %s call", lower(kind))
	case message.CallDeclined:
		return fmt.Sprintf("%s call declined", kind)
	case message.CallFailed:
		return fmt.Sprintf("%s call failed - connection lost", kind)
	default:
		if duration > 0 {
			return fmt.Sprintf("%s call ended (%s)", kind, FormatCallDuration(duration))
		}
		return fmt.Sprintf("%s call ended", kind)
	}
}

// FormatCallDuration renders mm:ss, growing to hh:mm:ss past an hour.
func FormatCallDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

func lower(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
