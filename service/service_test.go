package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"relaychat/model"
	"relaychat/platform"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func newTestStore(t *testing.T) *model.Store {
	t.Helper()
	db, err := platform.OpenDB(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), true)
	require.NoError(t, err)
	t.Cleanup(func() { platform.CloseDB(db) })
	require.NoError(t, model.InstallDB(db))
	return model.NewStore(db)
}

func seedConversation(t *testing.T, s *model.Store, email string) (*model.User, *model.Conversation) {
	t.Helper()
	ctx := context.Background()
	u := &model.User{Email: email, Password: "hash"}
	require.NoError(t, s.CreateUser(ctx, u))
	c := &model.Conversation{UserID: u.ID}
	require.NoError(t, s.CreateConversation(ctx, c))
	return u, c
}

func sseChunk(content string) string {
	return `data: {"choices":[{"index":0,"delta":{"content":"` + content + `"}}]}` + "\n\n"
}

// fakeCompletion serves canned SSE bodies and records what it was asked.
type fakeCompletion struct {
	mu       sync.Mutex
	body     func() io.Reader
	err      error
	calls    int
	model    string
	messages []platform.ChatMessage
}

func streamOf(fragments ...string) func() io.Reader {
	return func() io.Reader {
		var b strings.Builder
		for _, f := range fragments {
			b.WriteString(sseChunk(f))
		}
		b.WriteString("data: [DONE]\n\n")
		return strings.NewReader(b.String())
	}
}

func (f *fakeCompletion) StreamCompletion(_ context.Context, model string, messages []platform.ChatMessage) (*platform.FragmentStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.model = model
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return platform.NewFragmentStream(io.NopCloser(f.body())), nil
}

type fakeTitles struct {
	mu    sync.Mutex
	title string
	calls int
}

func (f *fakeTitles) SynthesizeTitle(_ context.Context, userMessage, _ string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.title != "" {
		return f.title
	}
	return "Title for " + userMessage
}

type event struct {
	kind    string
	payload string
	message *model.Message
	title   string
}

// recordingWriter captures the stream the relay produces.
type recordingWriter struct {
	opened  bool
	openErr error

	// failTokenAfter makes Token fail once this many tokens were accepted; zero disables.
	failTokenAfter int
	events         []event
}

func (w *recordingWriter) Open() error {
	if w.openErr != nil {
		return w.openErr
	}
	w.opened = true
	return nil
}

func (w *recordingWriter) Token(fragment string) error {
	if w.failTokenAfter > 0 && len(w.tokens()) >= w.failTokenAfter {
		return errors.New("client gone")
	}
	w.events = append(w.events, event{kind: "token", payload: fragment})
	return nil
}

func (w *recordingWriter) Done(m *model.Message, title string) error {
	w.events = append(w.events, event{kind: "done", message: m, title: title})
	return nil
}

func (w *recordingWriter) Fail(message string) error {
	w.events = append(w.events, event{kind: "error", payload: message})
	return nil
}

func (w *recordingWriter) tokens() []string {
	var out []string
	for _, e := range w.events {
		if e.kind == "token" {
			out = append(out, e.payload)
		}
	}
	return out
}

func (w *recordingWriter) terminals() []event {
	var out []event
	for _, e := range w.events {
		if e.kind != "token" {
			out = append(out, e)
		}
	}
	return out
}
