package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Message types
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeFile  = "file"
	TypeAudio = "audio"
	TypeVideo = "video"
	TypePost  = "post"
	TypeCall  = "call"
)

// Call outcome statuses carried by call-type messages
const (
	CallMissed   = "missed"
	CallEnded    = "ended"
	CallDeclined = "declined"
	CallFailed   = "failed"
)

// Message represents the messages table
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null"`
	Type           string    `gorm:"type:varchar(16);not null;default:'text'"`
	Content        string
	CallStatus     sql.NullString `gorm:"type:varchar(16)"`
	FileURL        sql.NullString
	FileName       sql.NullString
	PostID         uuid.NullUUID
	ReplyToID      uuid.NullUUID
	Edited         bool `gorm:"default:false"`
	EditedAt       sql.NullTime
	CreatedAt      time.Time `gorm:"default:now()"`
}

// Reaction represents message_reactions. At most one row per
// (message, user): re-reacting replaces the previous row.
type Reaction struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Emoji     string    `gorm:"not null"`
	Name      string
	CreatedAt time.Time `gorm:"default:now()"`
}

// ReadReceipt represents message_reads. Append-only, unique per
// (message, user), never contains the sender.
type ReadReceipt struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReadAt    time.Time `gorm:"default:now()"`
}

func (Message) TableName() string {
	return "messages"
}

func (Reaction) TableName() string {
	return "message_reactions"
}

func (ReadReceipt) TableName() string {
	return "message_reads"
}
