package httpdto

// SendMessageRequest is used for POST /conversations/:id/messages
type SendMessageRequest struct {
	Content   string `json:"content"`
	Type      string `json:"type,omitempty"`
	FileURL   string `json:"file_url,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	ReplyToID string `json:"reply_to_id,omitempty"`
	PostID    string `json:"post_id,omitempty"`
}

// MessageDTO represents a message in API responses
type MessageDTO struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Type           string `json:"type"`
	Content        string `json:"content"`
	CallStatus     string `json:"call_status,omitempty"`
	FileURL        string `json:"file_url,omitempty"`
	FileName       string `json:"file_name,omitempty"`
	PostID         string `json:"post_id,omitempty"`
	ReplyToID      string `json:"reply_to_id,omitempty"`
	Edited         bool   `json:"edited,omitempty"`
	EditedAt       string `json:"edited_at,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// MessagesResponse is a paginated message list
type MessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
	Page     int          `json:"page"`
	Limit    int          `json:"limit"`
}
