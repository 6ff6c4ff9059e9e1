// Package upstream implements HTTP adapters for advisor providers. The
// OpenAI chat completion wire format is the reference shape; any
// OpenAI-compatible endpoint works through the same adapter.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/specificity-ai/specmux/pkg/errors"
	"github.com/specificity-ai/specmux/pkg/provider"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	defaultTimeout = 30 * time.Second
)

// Config contains the connection settings for one upstream endpoint.
type Config struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAI is a provider backed by an OpenAI-compatible chat endpoint.
type OpenAI struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAI creates an adapter for an OpenAI-compatible endpoint.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("upstream name is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("upstream %s: model is required", cfg.Name)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &OpenAI{
		name:    cfg.Name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the provider identifier.
func (p *OpenAI) Name() string { return p.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends the consult as a chat completion and returns the first
// choice's content.
func (p *OpenAI) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	messages := make([]chatMessage, 0, 2)
	if req.Advisor != "" {
		messages = append(messages, chatMessage{
			Role:    "system",
			Content: "You are the " + req.Advisor + " advisor. Answer from that perspective.",
		})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewServiceUnavailableError(p.name, err.Error())
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, p.mapError(httpResp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, errors.NewInternalError(p.name, "response contains no choices")
	}

	return &provider.Response{
		Provider: p.name,
		Content:  chatResp.Choices[0].Message.Content,
		Tokens:   chatResp.Usage.TotalTokens,
	}, nil
}

// mapError converts an upstream error status into a typed provider error.
func (p *OpenAI) mapError(status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.NewAuthenticationError(p.name, message)
	case status == http.StatusTooManyRequests:
		return errors.NewRateLimitError(p.name, message)
	case status == http.StatusRequestTimeout:
		return errors.NewTimeoutError(p.name, message)
	case status >= 400 && status < 500:
		return errors.NewInvalidRequestError(p.name, message)
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway:
		return errors.NewServiceUnavailableError(p.name, message)
	default:
		return errors.NewInternalError(p.name, message)
	}
}
