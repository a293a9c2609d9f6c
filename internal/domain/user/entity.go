package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User represents the users table
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	DisplayName  string
	AvatarURL    sql.NullString
	IsOnline     bool `gorm:"default:false"`
	LastSeen     sql.NullTime
	CreatedAt    time.Time `gorm:"default:now()"`
	UpdatedAt    time.Time `gorm:"default:now()"`
}

// Settings represents user_settings; presence visibility and
// notification preferences consulted by the realtime layer.
type Settings struct {
	UserID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ShowOnlineStatus bool      `gorm:"default:true"`
	NotifyMessages   bool      `gorm:"default:true"`
	NotifyCalls      bool      `gorm:"default:true"`
	UpdatedAt        time.Time `gorm:"default:now()"`
}

// Block represents user_blocks; a one-directional block row. Either
// direction existing suppresses presence and notifications.
type Block struct {
	UserID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	BlockedUserID uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt     time.Time `gorm:"default:now()"`
}

// Session represents user_sessions backing refresh tokens
type Session struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;index"`
	RefreshTokenHash string    `gorm:"not null"`
	ExpiresAt        time.Time `gorm:"not null"`
	IsRevoked        bool      `gorm:"default:false"`
	CreatedAt        time.Time `gorm:"default:now()"`
}

// Peer is a projection of a co-participant used when fanning out
// presence changes: who they are plus the fields that gate delivery.
type Peer struct {
	UserID           uuid.UUID
	ShowOnlineStatus bool
}

func (User) TableName() string {
	return "users"
}

func (Settings) TableName() string {
	return "user_settings"
}

func (Block) TableName() string {
	return "user_blocks"
}

func (Session) TableName() string {
	return "user_sessions"
}
