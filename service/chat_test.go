package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"relaychat/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatService_CRUD(t *testing.T) {
	store := newTestStore(t)
	svc := NewChatService(store)
	ctx := context.Background()
	owner, _ := seedConversation(t, store, "crud@example.com")
	stranger, _ := seedConversation(t, store, "stranger@example.com")

	created, err := svc.Create(ctx, owner.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTitle, created.Title)

	named, err := svc.Create(ctx, owner.ID, "  Trip Plans ")
	require.NoError(t, err)
	assert.Equal(t, "Trip Plans", named.Title)
	assert.True(t, named.TitleSet)

	list, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = svc.Get(ctx, stranger.ID, created.ID)
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))

	renamed, err := svc.Rename(ctx, owner.ID, created.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Title)

	_, err = svc.Rename(ctx, owner.ID, created.ID, "  ")
	var invalid *InvalidRequestError
	assert.True(t, errors.As(err, &invalid))

	_, err = svc.Rename(ctx, owner.ID, created.ID, strings.Repeat("x", 101))
	assert.True(t, errors.As(err, &invalid))

	assert.True(t, errors.As(svc.Delete(ctx, stranger.ID, created.ID), &nf))
	require.NoError(t, svc.Delete(ctx, owner.ID, created.ID))
	_, err = svc.Get(ctx, owner.ID, created.ID)
	assert.True(t, errors.As(err, &nf))
}

func TestChatService_Messages(t *testing.T) {
	store := newTestStore(t)
	svc := NewChatService(store)
	ctx := context.Background()
	owner, conv := seedConversation(t, store, "msgs@example.com")
	stranger, _ := seedConversation(t, store, "msgs-stranger@example.com")

	require.NoError(t, store.CreateMessage(ctx, &model.Message{ConversationID: conv.ID, Role: model.MessageRoleUser, Content: "q"}))
	require.NoError(t, store.CreateMessage(ctx, &model.Message{ConversationID: conv.ID, Role: model.MessageRoleAssistant, Content: "a"}))

	msgs, err := svc.Messages(ctx, owner.ID, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "q", msgs[0].Content)

	_, err = svc.Messages(ctx, stranger.ID, conv.ID)
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestChatService_Export(t *testing.T) {
	store := newTestStore(t)
	svc := NewChatService(store)
	ctx := context.Background()
	owner, conv := seedConversation(t, store, "export@example.com")
	require.NoError(t, store.UpdateConversationTitle(ctx, conv.ID, "Go <Channels>"))

	require.NoError(t, store.CreateMessage(ctx, &model.Message{
		ConversationID: conv.ID, Role: model.MessageRoleUser, Content: "How do channels work?",
		Images: []string{"data:image/png;base64,AAAA", "https://example.com/diagram.png"},
	}))
	require.NoError(t, store.CreateMessage(ctx, &model.Message{
		ConversationID: conv.ID, Role: model.MessageRoleAssistant, Model: "google/gemini-2.0-flash-exp:free",
		Content: "They are **typed pipes**.\n\n<script>alert(1)</script>",
	}))

	md, ctype, err := svc.Export(ctx, owner.ID, conv.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "text/markdown; charset=utf-8", ctype)
	text := string(md)
	assert.True(t, strings.HasPrefix(text, "# Go <Channels>\n"))
	assert.Contains(t, text, "## You\n\nHow do channels work?")
	assert.Contains(t, text, "_[attached image 1]_")
	assert.Contains(t, text, "![image 2](https://example.com/diagram.png)")
	assert.Contains(t, text, "## Assistant (google/gemini-2.0-flash-exp:free)")

	page, ctype, err := svc.Export(ctx, owner.ID, conv.ID, ExportHTML)
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", ctype)
	html := string(page)
	assert.Contains(t, html, "<title>Go &lt;Channels&gt;</title>")
	assert.Contains(t, html, "<strong>typed pipes</strong>")
	assert.NotContains(t, html, "<script>")

	_, _, err = svc.Export(ctx, owner.ID, conv.ID, "pdf")
	var invalid *InvalidRequestError
	assert.True(t, errors.As(err, &invalid))
}
