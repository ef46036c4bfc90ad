package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by the caller.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("record already exists")
)

// Store is the gorm-backed persistence layer. Every conversation query is scoped by owner.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}
	return nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) FindUserByID(ctx context.Context, id uint) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) CreateConversation(ctx context.Context, c *Conversation) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// FindConversation resolves a conversation only when userID owns it.
func (s *Store) FindConversation(ctx context.Context, userID uint, id string) (*Conversation, error) {
	var c Conversation
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// FindConversationWithMessages is FindConversation with the messages loaded in replay order.
func (s *Store) FindConversationWithMessages(ctx context.Context, userID uint, id string) (*Conversation, error) {
	var c Conversation
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// ListConversations returns the user's conversations, most recently active first, each with
// its latest message attached.
func (s *Store) ListConversations(ctx context.Context, userID uint) ([]Conversation, error) {
	var convs []Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC, created_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if len(convs) == 0 {
		return convs, nil
	}

	ids := make([]string, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}
	var latest []Message
	err = s.db.WithContext(ctx).
		Where("id IN (?)", s.db.Model(&Message{}).
			Select("MAX(id)").
			Where("conversation_id IN ?", ids).
			Group("conversation_id")).
		Find(&latest).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load latest messages: %w", err)
	}

	byConv := make(map[string]*Message, len(latest))
	for i := range latest {
		byConv[latest[i].ConversationID] = &latest[i]
	}
	for i := range convs {
		convs[i].LatestMessage = byConv[convs[i].ID]
	}
	return convs, nil
}

// RenameConversation sets a user-chosen title. The title is then considered final.
func (s *Store) RenameConversation(ctx context.Context, userID uint, id, title string) (*Conversation, error) {
	res := s.db.WithContext(ctx).
		Model(&Conversation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"title": title, "title_set": true})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to rename conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.FindConversation(ctx, userID, id)
}

// UpdateConversationTitle stores a synthesized title.
func (s *Store) UpdateConversationTitle(ctx context.Context, id, title string) error {
	res := s.db.WithContext(ctx).
		Model(&Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"title": title, "title_set": true})
	if res.Error != nil {
		return fmt.Errorf("failed to update conversation title: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes an owned conversation and all of its messages.
func (s *Store) DeleteConversation(ctx context.Context, userID uint, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Conversation
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
			return translate(err)
		}
		if err := tx.Where("conversation_id = ?", c.ID).Delete(&Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		if err := tx.Delete(&c).Error; err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		return nil
	})
}

// ListMessages returns a conversation's messages in replay order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var msgs []Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// CreateMessage appends a message and bumps the parent's updated_at in one transaction.
func (s *Store) CreateMessage(ctx context.Context, m *Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		if err := tx.Create(m).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		err := tx.Model(&Conversation{}).
			Where("id = ?", m.ConversationID).
			UpdateColumn("updated_at", m.CreatedAt).Error
		if err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
		return nil
	})
}

// ListUntitledConversations finds conversations that never got a title although they hold an
// answer and have been idle since before idleBefore.
func (s *Store) ListUntitledConversations(ctx context.Context, idleBefore time.Time, limit int) ([]Conversation, error) {
	var convs []Conversation
	err := s.db.WithContext(ctx).
		Where("title_set = ? AND updated_at < ?", false, idleBefore).
		Where("EXISTS (?)", s.db.Model(&Message{}).
			Select("1").
			Where("messages.conversation_id = conversations.id AND messages.role = ?", MessageRoleAssistant)).
		Order("updated_at ASC").
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list untitled conversations: %w", err)
	}
	return convs, nil
}
