package service

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	"relaychat/model"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

const (
	ExportMarkdown = "markdown"
	ExportHTML     = "html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// Export renders an owned conversation as a Markdown or HTML document and returns the body
// with its content type.
func (s *ChatService) Export(ctx context.Context, userID uint, id, format string) ([]byte, string, error) {
	if format == "" {
		format = ExportMarkdown
	}
	if format != ExportMarkdown && format != ExportHTML {
		return nil, "", &InvalidRequestError{Message: "Unsupported export format: " + format}
	}

	conv, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}

	md := transcriptMarkdown(conv)
	if format == ExportMarkdown {
		return md, "text/markdown; charset=utf-8", nil
	}

	var body bytes.Buffer
	if err := markdown.Convert(md, &body); err != nil {
		return nil, "", fmt.Errorf("failed to render transcript: %w", err)
	}
	var doc bytes.Buffer
	fmt.Fprintf(&doc, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n",
		html.EscapeString(conv.Title))
	doc.Write(body.Bytes())
	doc.WriteString("</body>\n</html>\n")
	return doc.Bytes(), "text/html; charset=utf-8", nil
}

func transcriptMarkdown(conv *model.Conversation) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", conv.Title)
	fmt.Fprintf(&b, "_Started %s_\n", conv.CreatedAt.Format("2006-01-02 15:04"))

	for _, m := range conv.Messages {
		speaker := "You"
		switch m.Role {
		case model.MessageRoleAssistant:
			speaker = "Assistant"
			if m.Model != "" {
				speaker += " (" + m.Model + ")"
			}
		case model.MessageRoleSystem:
			speaker = "System"
		}
		fmt.Fprintf(&b, "\n## %s\n\n", speaker)

		if content := strings.TrimSpace(m.Content); content != "" {
			b.WriteString(content)
			b.WriteString("\n")
		}
		for i, img := range m.Images {
			if strings.HasPrefix(img, "data:") {
				fmt.Fprintf(&b, "\n_[attached image %d]_\n", i+1)
				continue
			}
			fmt.Fprintf(&b, "\n![image %d](%s)\n", i+1, img)
		}
	}
	return b.Bytes()
}
