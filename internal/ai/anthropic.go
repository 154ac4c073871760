package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type AnthropicProvider struct {
	BaseURL   string
	APIKey    string
	Model     string
	Version   string
	MaxTokens int
	Client    *http.Client
}

type anthropicMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicChatReq struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	Messages  []anthropicMsg `json:"messages"`
	Stream    bool           `json:"stream"`
	System    string         `json:"system,omitempty"`
}

func NewAnthropicProvider(baseURL, apiKey, model, version string, maxTokens int) *AnthropicProvider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if version == "" {
		version = "2023-06-01"
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicProvider{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		Model:     model,
		Version:   version,
		MaxTokens: maxTokens,
		// streaming responses can outlive any sane global timeout; ctx
		// controls cancellation instead
		Client: &http.Client{Timeout: 0 * time.Second},
	}
}

// StreamMessages opens one streaming generation call and returns the raw
// event-stream body. A non-2xx answer or a missing body is reported as
// *UpstreamError; the caller decides how to degrade.
func (p *AnthropicProvider) StreamMessages(ctx context.Context, messages []Message, system string) (io.ReadCloser, error) {
	if p.Client == nil {
		return nil, errors.New("anthropic: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return nil, errors.New("anthropic: model is required")
	}

	reqBody := anthropicChatReq{
		Model:     model,
		MaxTokens: p.MaxTokens,
		Stream:    true,
		System:    system,
		Messages: func() []anthropicMsg {
			out := make([]anthropicMsg, 0, len(messages))
			for _, m := range messages {
				out = append(out, anthropicMsg{Role: m.Role, Content: m.Content})
			}
			return out
		}(),
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/messages", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.APIKey)
	req.Header.Set("anthropic-version", p.Version)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		_ = resp.Body.Close()
		return nil, &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if resp.Body == nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: "empty response body"}
	}
	return resp.Body, nil
}
