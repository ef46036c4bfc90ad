package model

import "time"

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Message is one persisted exchange. Rows are never updated after insert.
type Message struct {
	ID             uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string      `gorm:"type:varchar(36);not null;index:idx_messages_conversation_created" json:"conversation_id"`
	Role           MessageRole `gorm:"type:varchar(16);not null" json:"role"`
	Content        string      `gorm:"type:text" json:"content"`
	Images         []string    `gorm:"type:longtext;serializer:json" json:"images,omitempty"`
	Model          string      `gorm:"type:varchar(128)" json:"model,omitempty"`
	CreatedAt      time.Time   `gorm:"index:idx_messages_conversation_created" json:"created_at"`
}
