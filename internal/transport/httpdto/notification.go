package httpdto

// NotificationDTO represents a notification in API responses
type NotificationDTO struct {
	ID         string `json:"id"`
	SenderID   string `json:"sender_id"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	EntityID   string `json:"entity_id,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	IsRead     bool   `json:"is_read"`
	CreatedAt  string `json:"created_at"`
}

// NotificationsResponse is a paginated notification list
type NotificationsResponse struct {
	Notifications []NotificationDTO `json:"notifications"`
	Total         int64             `json:"total"`
	Page          int               `json:"page"`
	Limit         int               `json:"limit"`
}
