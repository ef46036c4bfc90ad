package service

import (
	"context"
	"errors"
	"strings"

	"relaychat/model"
	"relaychat/platform"
)

const (
	maxImages = 4

	imagePrompt        = "Describe this image."
	imageOmittedPrompt = "[image omitted]"

	msgGenerateFailed = "Failed to generate a response. Please try again."
	msgSaveFailed     = "Failed to save the response. Please try again."
)

// StreamWriter is the client side of a send. Open is called once before any fragment; after a
// successful Open exactly one of Done or Fail ends the stream. A Token error means the client
// is gone.
type StreamWriter interface {
	Open() error
	Token(fragment string) error
	Done(message *model.Message, title string) error
	Fail(message string) error
}

type relayStore interface {
	FindConversation(ctx context.Context, userID uint, id string) (*model.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	CreateMessage(ctx context.Context, m *model.Message) error
	UpdateConversationTitle(ctx context.Context, id, title string) error
}

type completionStreamer interface {
	StreamCompletion(ctx context.Context, model string, messages []platform.ChatMessage) (*platform.FragmentStream, error)
}

type titleSynthesizer interface {
	SynthesizeTitle(ctx context.Context, userMessage, assistantMessage string) string
}

type conversationLocker interface {
	Acquire(ctx context.Context, conversationID string) (func(), error)
}

// SendInput is one user turn.
type SendInput struct {
	RequestID      string
	UserID         uint
	ConversationID string
	Content        string
	Model          string
	Images         []string
}

// Relay runs a send: it persists the user turn, streams the completion back fragment by
// fragment, persists the answer and names the conversation after its first exchange.
type Relay struct {
	store   relayStore
	llm     completionStreamer
	titles  titleSynthesizer
	locks   conversationLocker
	catalog *model.Catalog
}

func NewRelay(store relayStore, llm completionStreamer, titles titleSynthesizer, locks conversationLocker, catalog *model.Catalog) *Relay {
	return &Relay{store: store, llm: llm, titles: titles, locks: locks, catalog: catalog}
}

// SendMessage returns an error only when nothing was written to w. Once the stream is open
// every outcome is reported through w and the return value is nil.
func (r *Relay) SendMessage(ctx context.Context, in SendInput, w StreamWriter) error {
	ctx = WithRequestID(ctx, in.RequestID)

	conv, err := r.store.FindConversation(ctx, in.UserID, in.ConversationID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return errConversationNotFound
		}
		return &PersistenceError{Op: "load conversation", Err: err}
	}

	desc, err := r.validate(&in)
	if err != nil {
		return err
	}

	release, err := r.locks.Acquire(ctx, conv.ID)
	if err != nil {
		if errors.Is(err, platform.ErrConversationBusy) {
			return &ConflictError{Message: "A response is already being generated for this chat"}
		}
		return err
	}
	defer release()

	history, err := r.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return &PersistenceError{Op: "load messages", Err: err}
	}
	isFirst := len(history) == 0

	userMsg := &model.Message{
		ConversationID: conv.ID,
		Role:           model.MessageRoleUser,
		Content:        in.Content,
		Images:         in.Images,
		Model:          desc.ID,
	}
	if err := r.store.CreateMessage(ctx, userMsg); err != nil {
		return &PersistenceError{Op: "save message", Err: err}
	}

	if err := w.Open(); err != nil {
		return err
	}
	r.relay(ctx, in.RequestID, conv, desc, history, userMsg, isFirst, w)
	return nil
}

func (r *Relay) relay(ctx context.Context, reqID string, conv *model.Conversation, desc model.ModelDescriptor,
	history []model.Message, userMsg *model.Message, isFirst bool, w StreamWriter) {
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("[%s] relay panic: %v", reqID, p)
			w.Fail(msgGenerateFailed)
		}
	}()

	stream, err := r.llm.StreamCompletion(ctx, desc.ID, buildPrompt(history, userMsg, desc.Vision))
	if err != nil {
		logger.Warnf("[%s] completion request failed: %s", reqID, err)
		w.Fail(msgGenerateFailed)
		return
	}
	defer stream.Close()

	var answer strings.Builder
	fragments := 0
	for stream.Next() {
		fragment := stream.Current()
		answer.WriteString(fragment)
		fragments++
		if err := w.Token(fragment); err != nil {
			logger.Infof("[%s] client went away after %d fragments, discarding answer", reqID, fragments)
			return
		}
	}
	if err := stream.Err(); err != nil {
		logger.Warnf("[%s] completion stream failed after %d fragments: %s", reqID, fragments, err)
		w.Fail(msgGenerateFailed)
		return
	}

	assistantMsg := &model.Message{
		ConversationID: conv.ID,
		Role:           model.MessageRoleAssistant,
		Content:        answer.String(),
		Model:          desc.ID,
	}
	if err := r.store.CreateMessage(ctx, assistantMsg); err != nil {
		logger.Warnf("[%s] failed to save answer: %s", reqID, err)
		w.Fail(msgSaveFailed)
		return
	}

	var title string
	if isFirst {
		title = r.titles.SynthesizeTitle(ctx, userMsg.Content, assistantMsg.Content)
		if err := r.store.UpdateConversationTitle(ctx, conv.ID, title); err != nil {
			logger.Warnf("[%s] failed to save title for chat %s: %s", reqID, conv.ID, err)
			title = ""
		}
	}

	if err := w.Done(assistantMsg, title); err != nil {
		logger.Infof("[%s] client went away before the done event: %s", reqID, err)
	}
}

func (r *Relay) validate(in *SendInput) (model.ModelDescriptor, error) {
	if in.Model == "" {
		in.Model = r.catalog.Default
	}
	desc, ok := r.catalog.Find(in.Model)
	if !ok {
		return desc, &InvalidRequestError{Message: "Unknown model: " + in.Model}
	}

	if len(in.Images) > maxImages {
		return desc, &InvalidRequestError{Message: "Too many images, at most 4 per message"}
	}
	for _, img := range in.Images {
		if !validImageRef(img) {
			return desc, &InvalidRequestError{Message: "Images must be data:image URIs or http(s) URLs"}
		}
	}
	if len(in.Images) > 0 && !desc.Vision {
		return desc, &InvalidRequestError{Message: "The selected model does not support images"}
	}
	if strings.TrimSpace(in.Content) == "" && len(in.Images) == 0 {
		return desc, &InvalidRequestError{Message: "Message content is required"}
	}
	return desc, nil
}

func validImageRef(s string) bool {
	return strings.HasPrefix(s, "data:image/") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "http://")
}

// buildPrompt replays the history in order followed by the current turn. Image parts are only
// sent to vision models.
func buildPrompt(history []model.Message, current *model.Message, vision bool) []platform.ChatMessage {
	msgs := make([]platform.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, toChatMessage(m, vision))
	}
	return append(msgs, toChatMessage(*current, vision))
}

func toChatMessage(m model.Message, vision bool) platform.ChatMessage {
	text := m.Content
	if len(m.Images) == 0 {
		return platform.ChatMessage{Role: string(m.Role), Content: platform.TextContent(text)}
	}

	if !vision {
		if strings.TrimSpace(text) == "" {
			text = imageOmittedPrompt
		}
		return platform.ChatMessage{Role: string(m.Role), Content: platform.TextContent(text)}
	}

	if strings.TrimSpace(text) == "" {
		text = imagePrompt
	}
	parts := []platform.ContentPart{platform.TextPart(text)}
	for _, img := range m.Images {
		parts = append(parts, platform.ImagePart(img))
	}
	return platform.ChatMessage{Role: string(m.Role), Content: platform.MultipartContent(parts...)}
}
