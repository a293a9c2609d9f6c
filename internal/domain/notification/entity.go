package notification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Notification kinds
const (
	KindMessage = "message"
	KindCall    = "call"
	KindFollow  = "follow"
)

// Notification represents the notifications table
type Notification struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	RecipientID uuid.UUID `gorm:"type:uuid;not null;index"`
	SenderID    uuid.UUID `gorm:"type:uuid;not null"`
	Kind        string    `gorm:"type:varchar(32);not null"`
	Message     string
	EntityID    uuid.NullUUID
	EntityType  sql.NullString
	IsRead      bool      `gorm:"default:false"`
	CreatedAt   time.Time `gorm:"default:now()"`
}

func (Notification) TableName() string {
	return "notifications"
}
