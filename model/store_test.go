package model

import (
	"context"
	"testing"
	"time"

	"relaychat/platform"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := platform.OpenDB(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), true)
	require.NoError(t, err)
	t.Cleanup(func() { platform.CloseDB(db) })
	require.NoError(t, InstallDB(db))
	return NewStore(db)
}

func seedUser(t *testing.T, s *Store, email string) *User {
	t.Helper()
	u := &User{Email: email, Password: "hash", Name: "Test"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestStore_Users(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "ana@example.com")
	assert.Equal(t, RoleUser, u.Role)

	got, err := s.FindUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.FindUserByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.CreateUser(ctx, &User{Email: "ana@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestStore_ConversationOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s, "owner@example.com")
	other := seedUser(t, s, "other@example.com")

	c := &Conversation{UserID: owner.ID}
	require.NoError(t, s.CreateConversation(ctx, c))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, DefaultTitle, c.Title)

	_, err := s.FindConversation(ctx, owner.ID, c.ID)
	assert.NoError(t, err)

	_, err = s.FindConversation(ctx, other.ID, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.RenameConversation(ctx, other.ID, c.ID, "stolen")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeleteConversation(ctx, other.ID, c.ID), ErrNotFound)
}

func TestStore_MessagesOrderAndTouch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "order@example.com")

	c := &Conversation{UserID: u.ID}
	require.NoError(t, s.CreateConversation(ctx, c))

	at := time.Now().Add(time.Minute).Truncate(time.Millisecond)
	msgs := []*Message{
		{ConversationID: c.ID, Role: MessageRoleUser, Content: "first", CreatedAt: at},
		{ConversationID: c.ID, Role: MessageRoleAssistant, Content: "second", CreatedAt: at},
		{ConversationID: c.ID, Role: MessageRoleUser, Content: "third", Images: []string{"https://example.com/a.png"}, CreatedAt: at.Add(time.Second)},
	}
	for _, m := range msgs {
		require.NoError(t, s.CreateMessage(ctx, m))
	}

	got, err := s.ListMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "second", got[1].Content)
	assert.Equal(t, []string{"https://example.com/a.png"}, got[2].Images)

	reloaded, err := s.FindConversation(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.UpdatedAt.Equal(at.Add(time.Second)), "updated_at %v", reloaded.UpdatedAt)

	withMsgs, err := s.FindConversationWithMessages(ctx, u.ID, c.ID)
	require.NoError(t, err)
	require.Len(t, withMsgs.Messages, 3)
	assert.Equal(t, "third", withMsgs.Messages[2].Content)
}

func TestStore_ListConversationsWithLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "list@example.com")

	older := &Conversation{UserID: u.ID}
	newer := &Conversation{UserID: u.ID}
	require.NoError(t, s.CreateConversation(ctx, older))
	require.NoError(t, s.CreateConversation(ctx, newer))

	base := time.Now().Add(time.Hour)
	require.NoError(t, s.CreateMessage(ctx, &Message{ConversationID: newer.ID, Role: MessageRoleUser, Content: "q", CreatedAt: base}))
	require.NoError(t, s.CreateMessage(ctx, &Message{ConversationID: newer.ID, Role: MessageRoleAssistant, Content: "a", CreatedAt: base.Add(time.Second)}))

	convs, err := s.ListConversations(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, newer.ID, convs[0].ID)
	require.NotNil(t, convs[0].LatestMessage)
	assert.Equal(t, "a", convs[0].LatestMessage.Content)
	assert.Nil(t, convs[1].LatestMessage)
}

func TestStore_TitleUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "title@example.com")

	c := &Conversation{UserID: u.ID}
	require.NoError(t, s.CreateConversation(ctx, c))

	require.NoError(t, s.UpdateConversationTitle(ctx, c.ID, "Recursion Basics"))
	got, err := s.FindConversation(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Recursion Basics", got.Title)
	assert.True(t, got.TitleSet)

	renamed, err := s.RenameConversation(ctx, u.ID, c.ID, "Mine")
	require.NoError(t, err)
	assert.Equal(t, "Mine", renamed.Title)

	assert.ErrorIs(t, s.UpdateConversationTitle(ctx, "missing", "x"), ErrNotFound)
}

func TestStore_DeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "delete@example.com")

	c := &Conversation{UserID: u.ID}
	require.NoError(t, s.CreateConversation(ctx, c))
	require.NoError(t, s.CreateMessage(ctx, &Message{ConversationID: c.ID, Role: MessageRoleUser, Content: "bye"}))

	require.NoError(t, s.DeleteConversation(ctx, u.ID, c.ID))

	_, err := s.FindConversation(ctx, u.ID, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	msgs, err := s.ListMessages(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStore_ListUntitledConversations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s, "untitled@example.com")
	past := time.Now().Add(-time.Hour)

	answered := &Conversation{UserID: u.ID}
	unanswered := &Conversation{UserID: u.ID}
	titled := &Conversation{UserID: u.ID}
	for _, c := range []*Conversation{answered, unanswered, titled} {
		require.NoError(t, s.CreateConversation(ctx, c))
	}

	require.NoError(t, s.CreateMessage(ctx, &Message{ConversationID: answered.ID, Role: MessageRoleUser, Content: "q", CreatedAt: past}))
	require.NoError(t, s.CreateMessage(ctx, &Message{ConversationID: answered.ID, Role: MessageRoleAssistant, Content: "a", CreatedAt: past}))
	require.NoError(t, s.CreateMessage(ctx, &Message{ConversationID: unanswered.ID, Role: MessageRoleUser, Content: "q", CreatedAt: past}))
	require.NoError(t, s.CreateMessage(ctx, &Message{ConversationID: titled.ID, Role: MessageRoleAssistant, Content: "a", CreatedAt: past}))
	require.NoError(t, s.UpdateConversationTitle(ctx, titled.ID, "Done"))

	convs, err := s.ListUntitledConversations(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, answered.ID, convs[0].ID)
}
