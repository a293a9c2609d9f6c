package conversation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Conversation types
const (
	TypeDirect = "DIRECT"
	TypeGroup  = "GROUP"
)

// Participant roles
const (
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// Conversation represents the conversations table
type Conversation struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Type          string    `gorm:"type:varchar(16);not null;default:'DIRECT'"`
	Name          sql.NullString
	CreatedBy     uuid.UUID `gorm:"type:uuid;not null"`
	LastMessageID uuid.NullUUID
	CreatedAt     time.Time `gorm:"default:now()"`
	UpdatedAt     time.Time `gorm:"default:now()"`
}

// Participant represents conversation_participants
type Participant struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role           string    `gorm:"type:varchar(16);default:'MEMBER'"`
	JoinedAt       time.Time `gorm:"default:now()"`
}

// PinnedMessage represents pinned_messages; append-ordered, unpinned by id.
type PinnedMessage struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	PinnedBy       uuid.UUID `gorm:"type:uuid;not null"`
	PinnedAt       time.Time `gorm:"default:now()"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "conversation_participants"
}

func (PinnedMessage) TableName() string {
	return "pinned_messages"
}
