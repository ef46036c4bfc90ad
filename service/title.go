package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"relaychat/model"

	"github.com/openai/openai-go"
)

const (
	maxTitleRunes    = 50
	minTitleRunes    = 3
	fallbackRunes    = 40
	promptInputRunes = 200
	minSubjectRunes  = 10
)

var greetings = []string{
	"hola", "hey", "buenas", "buenos días", "buenas tardes", "buenas noches",
	"hi", "hello", "que tal", "qué tal", "como estas", "cómo estás", "saludos",
	"good morning", "good afternoon", "good evening",
}

const titlePrompt = `Based on this user message: "%s"

Write a short, descriptive title for this chat. The title must:
- Have at most 4 words
- Capture the main topic
- Skip unnecessary articles (the, a, an)
- Be clear and direct

Good examples:
"How do I make a pizza?" -> "Pizza Recipe"
"I have an error in Java with arrays" -> "Java Array Error"
"Explain what React is" -> "Learning React"
"When was Rome founded?" -> "Roman History"

Reply ONLY with the title, without quotes, periods or extra explanation.`

// TitleSynthesizer names a conversation after its first exchange. It never fails: any problem
// degrades to the placeholder or to a truncation of the user's message.
type TitleSynthesizer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewTitleSynthesizer(client *openai.Client, model string) *TitleSynthesizer {
	return &TitleSynthesizer{client: client, model: model, timeout: 15 * time.Second}
}

// SynthesizeTitle returns a title of at most 50 characters for the conversation opened by
// userMessage. assistantMessage is accepted for future prompt tuning and is not sent.
func (s *TitleSynthesizer) SynthesizeTitle(ctx context.Context, userMessage, assistantMessage string) string {
	normalized := strings.ToLower(strings.TrimSpace(userMessage))
	if isGreeting(normalized) || utf8.RuneCountInString(userMessage) < minSubjectRunes {
		return model.DefaultTitle
	}

	raw, err := s.complete(ctx, fmt.Sprintf(titlePrompt, truncateRunes(userMessage, promptInputRunes)))
	if err != nil {
		logger.Warnf("[%s] title synthesis failed: %s", requestID(ctx), err)
		return fallbackTitle(userMessage)
	}

	title := cleanTitle(raw)
	if utf8.RuneCountInString(title) < minTitleRunes {
		return fallbackTitle(userMessage)
	}
	return title
}

func (s *TitleSynthesizer) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var content any = prompt
	params := openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.ChatCompletionMessageParam{
				Role:    openai.F(openai.ChatCompletionMessageParamRoleUser),
				Content: openai.F(content),
			},
		}),
		Model:       openai.F(openai.ChatModel(s.model)),
		MaxTokens:   openai.F(int64(30)),
		Temperature: openai.F(0.5),
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("title completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func isGreeting(normalized string) bool {
	for _, g := range greetings {
		if strings.HasPrefix(normalized, g) {
			return true
		}
	}
	return false
}

func cleanTitle(raw string) string {
	title := strings.Map(func(r rune) rune {
		switch r {
		case '\'', '"', '`', '.':
			return -1
		case '\n', '\r':
			return ' '
		}
		return r
	}, raw)
	title = strings.TrimSpace(title)

	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = truncateRunes(title, maxTitleRunes-3) + "..."
	}
	return title
}

func fallbackTitle(userMessage string) string {
	if utf8.RuneCountInString(userMessage) > fallbackRunes {
		return truncateRunes(userMessage, fallbackRunes) + "..."
	}
	return userMessage
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
