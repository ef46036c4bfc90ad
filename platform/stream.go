package platform

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// FragmentStream decodes an OpenAI-style server-sent event body into text fragments.
// It is forward-only and not safe for concurrent use.
//
//	for stream.Next() {
//		fmt.Print(stream.Current())
//	}
//	if err := stream.Err(); err != nil { ... }
type FragmentStream struct {
	body   io.ReadCloser
	reader *bufio.Reader

	cur     string
	err     error
	done    bool
	skipped int
}

func NewFragmentStream(body io.ReadCloser) *FragmentStream {
	return &FragmentStream{
		body:   body,
		reader: bufio.NewReaderSize(body, 16*1024),
	}
}

// Next advances to the next non-empty fragment. It returns false once the stream ended, either
// at the [DONE] marker, at the end of the body or on an error reported by Err.
func (s *FragmentStream) Next() bool {
	if s.done {
		return false
	}
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			// an unterminated line at EOF is never a complete event
			s.done = true
			if !errors.Is(err, io.EOF) {
				s.err = err
			}
			return false
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			s.done = true
			return false
		}

		if !gjson.Valid(payload) {
			s.skipped++
			Logger.Warnf("skipping malformed completion payload: %.200s", payload)
			continue
		}

		result := gjson.Parse(payload)
		if apiErr := result.Get("error"); apiErr.Exists() && apiErr.Type != gjson.Null {
			s.done = true
			s.err = &UpstreamError{
				StatusCode: int(apiErr.Get("code").Int()),
				Body:       apiErr.Raw,
			}
			return false
		}

		content := result.Get("choices.0.delta.content").String()
		if content == "" {
			continue
		}
		s.cur = content
		return true
	}
}

// Current returns the fragment read by the last successful Next.
func (s *FragmentStream) Current() string {
	return s.cur
}

func (s *FragmentStream) Err() error {
	return s.err
}

// Skipped reports how many payloads were dropped as malformed.
func (s *FragmentStream) Skipped() int {
	return s.skipped
}

func (s *FragmentStream) Close() error {
	s.done = true
	return s.body.Close()
}

// ErrUpstream is wrapped by every UpstreamError.
var ErrUpstream = errors.New("upstream request failed")

// UpstreamError carries the provider's status and raw body. The body is for logs only.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %d - %s", ErrUpstream, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}
