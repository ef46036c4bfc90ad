package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const maxErrorBody = 4 * 1024

// CompletionClient opens streaming chat completions against an OpenAI-compatible endpoint.
type CompletionClient struct {
	cfg  LLMConfig
	http *http.Client
}

func NewCompletionClient(cfg LLMConfig) *CompletionClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.HeaderTimeout,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
	}
	return &CompletionClient{
		cfg:  cfg,
		http: &http.Client{Transport: transport},
	}
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// StreamCompletion sends the conversation and returns the decoded fragment stream. The caller
// owns the stream and must Close it. Cancelling ctx aborts the body read.
func (c *CompletionClient) StreamCompletion(ctx context.Context, model string, messages []ChatMessage) (*FragmentStream, error) {
	if c.cfg.APIKey == "" {
		return nil, &ConfigurationError{Missing: []string{"LLM_API_KEY"}}
	}

	payload, err := json.Marshal(completionRequest{
		Model:       model,
		Messages:    messages,
		Stream:      true,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.AppURL != "" {
		req.Header.Set("HTTP-Referer", c.cfg.AppURL)
	}
	if c.cfg.AppTitle != "" {
		req.Header.Set("X-Title", c.cfg.AppTitle)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send completion request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return NewFragmentStream(resp.Body), nil
}

// NewTitleClient returns the openai client used for short non-streaming calls.
func NewTitleClient(cfg LLMConfig) *openai.Client {
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL + "/"),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.AppURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.AppURL))
	}
	if cfg.AppTitle != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.AppTitle))
	}
	return openai.NewClient(opts...)
}
