package httpdto

// UpdateSettingsRequest is used for PUT /users/me/settings
type UpdateSettingsRequest struct {
	ShowOnlineStatus *bool `json:"show_online_status,omitempty"`
	NotifyMessages   *bool `json:"notify_messages,omitempty"`
	NotifyCalls      *bool `json:"notify_calls,omitempty"`
}

// SettingsDTO represents user settings in API responses
type SettingsDTO struct {
	ShowOnlineStatus bool `json:"show_online_status"`
	NotifyMessages   bool `json:"notify_messages"`
	NotifyCalls      bool `json:"notify_calls"`
}

// BlockRequest is used for POST /users/me/blocks
type BlockRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// PresenceDTO represents one user's visible status
type PresenceDTO struct {
	UserID   string `json:"user_id"`
	IsOnline bool   `json:"is_online"`
	LastSeen string `json:"last_seen,omitempty"`
}
