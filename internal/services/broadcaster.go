package services

import "github.com/google/uuid"

// Broadcaster is how services push live events out. The realtime hub
// implements it; tests substitute a recorder. All methods are
// best-effort fan-out: a slow or absent recipient never surfaces as an
// error on the calling path.
type Broadcaster interface {
	ToUser(userID uuid.UUID, eventType string, payload any)
	ToConversation(conversationID uuid.UUID, eventType string, payload any)
	ToConversationExcept(conversationID, exceptUserID uuid.UUID, eventType string, payload any)
	IsOnline(userID uuid.UUID) bool
}

// noopBroadcaster stands in before the hub is attached.
type noopBroadcaster struct{}

func (noopBroadcaster) ToUser(uuid.UUID, string, any)                          {}
func (noopBroadcaster) ToConversation(uuid.UUID, string, any)                  {}
func (noopBroadcaster) ToConversationExcept(uuid.UUID, uuid.UUID, string, any) {}
func (noopBroadcaster) IsOnline(uuid.UUID) bool                                { return false }
