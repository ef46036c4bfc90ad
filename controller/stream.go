package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"relaychat/model"

	"github.com/gin-gonic/gin"
)

var errStreamClosed = errors.New("stream already closed")

// sseWriter writes relay events as `data: {json}` server-sent events, flushing after each one.
type sseWriter struct {
	c      *gin.Context
	closed bool
}

func newSSEWriter(c *gin.Context) *sseWriter {
	return &sseWriter{c: c}
}

func (s *sseWriter) Open() error {
	w := s.c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()
	return nil
}

func (s *sseWriter) Token(fragment string) error {
	return s.send(gin.H{"token": fragment})
}

func (s *sseWriter) Done(message *model.Message, title string) error {
	event := gin.H{"done": true, "message": message}
	if title != "" {
		event["title"] = title
	}
	defer s.close()
	return s.send(event)
}

func (s *sseWriter) Fail(message string) error {
	defer s.close()
	return s.send(gin.H{"error": message})
}

func (s *sseWriter) close() {
	s.closed = true
}

func (s *sseWriter) send(event gin.H) error {
	if s.closed {
		return errStreamClosed
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.c.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	s.c.Writer.Flush()
	// writes to a dropped connection are buffered, the request context is what notices
	return s.c.Request.Context().Err()
}
