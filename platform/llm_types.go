package platform

import (
	"encoding/json"
	"strings"
)

// ChatMessage is one turn of a completion request.
type ChatMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// ContentPart is one element of a multipart turn: either text or an image reference.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// MessageContent is either plain text or a list of parts. The zero value is empty text.
type MessageContent struct {
	text  string
	parts []ContentPart
}

func TextContent(s string) MessageContent {
	return MessageContent{text: s}
}

func MultipartContent(parts ...ContentPart) MessageContent {
	return MessageContent{parts: parts}
}

func TextPart(s string) ContentPart {
	return ContentPart{Type: "text", Text: s}
}

func ImagePart(url string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url}}
}

func (c MessageContent) IsMultipart() bool {
	return c.parts != nil
}

func (c MessageContent) Parts() []ContentPart {
	return c.parts
}

// Text returns the textual content; for multipart content the text parts joined by newlines.
func (c MessageContent) Text() string {
	if c.parts == nil {
		return c.text
	}
	var texts []string
	for _, p := range c.parts {
		if p.Type == "text" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.parts != nil {
		return json.Marshal(c.parts)
	}
	return json.Marshal(c.text)
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = TextContent(s)
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	*c = MultipartContent(parts...)
	return nil
}
