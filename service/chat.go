package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"relaychat/model"
)

const maxUserTitleRunes = 100

type chatStore interface {
	CreateConversation(ctx context.Context, c *model.Conversation) error
	FindConversation(ctx context.Context, userID uint, id string) (*model.Conversation, error)
	FindConversationWithMessages(ctx context.Context, userID uint, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID uint) ([]model.Conversation, error)
	RenameConversation(ctx context.Context, userID uint, id, title string) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, userID uint, id string) error
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
}

// ChatService owns conversation CRUD. Every call is scoped to the requesting user.
type ChatService struct {
	store chatStore
}

func NewChatService(store chatStore) *ChatService {
	return &ChatService{store: store}
}

func (s *ChatService) List(ctx context.Context, userID uint) ([]model.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "list chats", Err: err}
	}
	return convs, nil
}

// Create opens an empty conversation. A caller-supplied title is final and never replaced by
// a synthesized one.
func (s *ChatService) Create(ctx context.Context, userID uint, title string) (*model.Conversation, error) {
	conv := &model.Conversation{UserID: userID}
	if title = strings.TrimSpace(title); title != "" {
		if err := checkTitle(title); err != nil {
			return nil, err
		}
		conv.Title = title
		conv.TitleSet = true
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, &PersistenceError{Op: "create chat", Err: err}
	}
	return conv, nil
}

func (s *ChatService) Get(ctx context.Context, userID uint, id string) (*model.Conversation, error) {
	conv, err := s.store.FindConversationWithMessages(ctx, userID, id)
	if err != nil {
		return nil, notFoundOr(err, "load chat")
	}
	return conv, nil
}

func (s *ChatService) Rename(ctx context.Context, userID uint, id, title string) (*model.Conversation, error) {
	title = strings.TrimSpace(title)
	if err := checkTitle(title); err != nil {
		return nil, err
	}
	conv, err := s.store.RenameConversation(ctx, userID, id, title)
	if err != nil {
		return nil, notFoundOr(err, "rename chat")
	}
	return conv, nil
}

func (s *ChatService) Delete(ctx context.Context, userID uint, id string) error {
	if err := s.store.DeleteConversation(ctx, userID, id); err != nil {
		return notFoundOr(err, "delete chat")
	}
	return nil
}

func (s *ChatService) Messages(ctx context.Context, userID uint, id string) ([]model.Message, error) {
	conv, err := s.store.FindConversation(ctx, userID, id)
	if err != nil {
		return nil, notFoundOr(err, "load chat")
	}
	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "load messages", Err: err}
	}
	return msgs, nil
}

func checkTitle(title string) error {
	if title == "" {
		return &InvalidRequestError{Message: "Title is required"}
	}
	if utf8.RuneCountInString(title) > maxUserTitleRunes {
		return &InvalidRequestError{Message: "Title must be at most 100 characters"}
	}
	return nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, model.ErrNotFound) {
		return errConversationNotFound
	}
	return &PersistenceError{Op: op, Err: err}
}
