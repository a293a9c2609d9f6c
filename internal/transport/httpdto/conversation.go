package httpdto

// CreateConversationRequest is used for POST /conversations
type CreateConversationRequest struct {
	Type           string   `json:"type,omitempty"` // DIRECT (default) or GROUP
	Name           string   `json:"name,omitempty"`
	ParticipantIDs []string `json:"participant_ids" binding:"required"`
}

// ConversationDTO represents a conversation in API responses
type ConversationDTO struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Name          string `json:"name,omitempty"`
	CreatedBy     string `json:"created_by"`
	LastMessageID string `json:"last_message_id,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// ConversationsResponse is a paginated conversation list
type ConversationsResponse struct {
	Conversations []ConversationDTO `json:"conversations"`
	Total         int64             `json:"total"`
	Page          int               `json:"page"`
	Limit         int               `json:"limit"`
}

// PinnedMessageDTO represents one pinned message entry
type PinnedMessageDTO struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	PinnedBy       string `json:"pinned_by"`
	PinnedAt       string `json:"pinned_at"`
}
