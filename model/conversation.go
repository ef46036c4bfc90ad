package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultTitle is the placeholder title of a conversation that has not been named yet.
const DefaultTitle = "New Chat"

// Conversation is a chat thread owned by one user.
type Conversation struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_conversations_user_updated" json:"user_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	TitleSet  bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index:idx_conversations_user_updated" json:"updated_at"`

	Messages      []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
	LatestMessage *Message  `gorm:"-" json:"latest_message,omitempty"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	return nil
}
