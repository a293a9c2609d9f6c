package post

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Post represents the posts table. Only the slice the realtime core
// touches: sharing a post into a conversation bumps its counter.
type Post struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	AuthorID   uuid.UUID `gorm:"type:uuid;not null"`
	Caption    sql.NullString
	MediaURL   sql.NullString
	ShareCount int       `gorm:"default:0"`
	CreatedAt  time.Time `gorm:"default:now()"`
}

func (Post) TableName() string {
	return "posts"
}
