package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"vibelink/internal/domain/conversation"
	"vibelink/internal/redis"
	"vibelink/internal/repository"
	vibelink_errors "vibelink/pkg/errors"

	"github.com/google/uuid"
)

type ConversationService struct {
	convRepo      repository.ConversationRepository
	presenceStore *redis.PresenceStore
}

func NewConversationService(convRepo repository.ConversationRepository, presenceStore *redis.PresenceStore) *ConversationService {
	return &ConversationService{convRepo: convRepo, presenceStore: presenceStore}
}

func (s *ConversationService) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	return s.convRepo.GetByID(ctx, id)
}

func (s *ConversationService) GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	return s.convRepo.GetUserConversations(ctx, userID, page, limit)
}

// GetUserConversationIDs is the room bootstrap query: the conversations
// a freshly connected user auto-joins, bounded to the most recent ones.
func (s *ConversationService) GetUserConversationIDs(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error) {
	return s.convRepo.GetUserConversationIDs(ctx, userID, limit)
}

func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	return s.convRepo.IsParticipant(ctx, conversationID, userID)
}

func (s *ConversationService) GetParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	return s.convRepo.GetParticipantIDs(ctx, conversationID)
}

func (s *ConversationService) CreateDirect(ctx context.Context, creatorID, otherID uuid.UUID) (conversation.Conversation, error) {
	if creatorID == otherID {
		return conversation.Conversation{}, vibelink_errors.ErrInvalidInput
	}

	if existing, err := s.convRepo.GetDirectConversation(ctx, creatorID, otherID); err == nil {
		return existing, nil
	}

	now := time.Now()
	conv := &conversation.Conversation{
		ID:        uuid.New(),
		Type:      conversation.TypeDirect,
		CreatedBy: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	participants := []conversation.Participant{
		{UserID: creatorID, Role: conversation.RoleMember, JoinedAt: now},
		{UserID: otherID, Role: conversation.RoleMember, JoinedAt: now},
	}
	if err := s.convRepo.Create(ctx, conv, participants); err != nil {
		return conversation.Conversation{}, err
	}
	return *conv, nil
}

// CreateGroup creates a group conversation with the creator as admin.
func (s *ConversationService) CreateGroup(ctx context.Context, creatorID uuid.UUID, name string, memberIDs []uuid.UUID) (conversation.Conversation, error) {
	if len(memberIDs) == 0 {
		return conversation.Conversation{}, vibelink_errors.ErrInvalidInput
	}

	now := time.Now()
	conv := &conversation.Conversation{
		ID:        uuid.New(),
		Type:      conversation.TypeGroup,
		CreatedBy: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if name != "" {
		conv.Name = sql.NullString{String: name, Valid: true}
	}

	participants := []conversation.Participant{
		{UserID: creatorID, Role: conversation.RoleAdmin, JoinedAt: now},
	}
	for _, id := range memberIDs {
		if id == creatorID {
			continue
		}
		participants = append(participants, conversation.Participant{
			UserID: id, Role: conversation.RoleMember, JoinedAt: now,
		})
	}

	if err := s.convRepo.Create(ctx, conv, participants); err != nil {
		return conversation.Conversation{}, err
	}
	return *conv, nil
}

// GetOrCreateDirect resolves the direct conversation between two users,
// creating it if none exists. Call outcome messages land here.
func (s *ConversationService) GetOrCreateDirect(ctx context.Context, userID1, userID2 uuid.UUID) (conversation.Conversation, error) {
	conv, err := s.convRepo.GetDirectConversation(ctx, userID1, userID2)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, vibelink_errors.ErrNotFound) {
		return conversation.Conversation{}, err
	}
	return s.CreateDirect(ctx, userID1, userID2)
}

func (s *ConversationService) GetPinnedMessages(ctx context.Context, conversationID uuid.UUID) ([]conversation.PinnedMessage, error) {
	return s.convRepo.GetPinnedMessages(ctx, conversationID)
}

// StartTyping and StopTyping track the transient typing indicator in
// the external store; the live fan-out happens in the realtime layer.
func (s *ConversationService) StartTyping(ctx context.Context, conversationID, userID uuid.UUID) error {
	if s.presenceStore == nil {
		return nil
	}
	return s.presenceStore.TrackTyping(ctx, conversationID.String(), userID.String(), true)
}

func (s *ConversationService) StopTyping(ctx context.Context, conversationID, userID uuid.UUID) error {
	if s.presenceStore == nil {
		return nil
	}
	return s.presenceStore.TrackTyping(ctx, conversationID.String(), userID.String(), false)
}
