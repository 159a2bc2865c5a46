// Package gpt provides the OpenAI-compatible chat client and the Agent that
// turns a character, a session history, and new input into a spoken reply.
package gpt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hammamikhairi/ottovoice/internal/domain"
	"github.com/hammamikhairi/ottovoice/internal/logger"
)

// Role constants.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Message is a single chat-completion message.
type Message struct {
	Role    string
	Content string
}

// TextMessage is a convenience constructor for a plain-text message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: text}
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel overrides the default model name.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(c *Client) { c.temperature = t }
}

// WithMaxTokens caps the reply length. Zero omits the cap from the request.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) { c.maxTokens = n }
}

// WithHTTPTimeout sets the HTTP client timeout.
func WithHTTPTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpTimeout = d }
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	api         *openai.Client
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpTimeout time.Duration
	log         *logger.Logger
}

// NewClient creates a client for an OpenAI-compatible endpoint.
//   - baseURL: API root, e.g. "https://api.openai.com/v1" or a local server
//   - apiKey:  bearer credential
func NewClient(baseURL, apiKey string, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     baseURL,
		model:       openai.GPT4o,
		temperature: 0.7,
		httpTimeout: 90 * time.Second,
		log:         log,
	}
	for _, o := range opts {
		o(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: c.httpTimeout}
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

// API exposes the underlying go-openai client for adapters that call other
// endpoints, such as transcription.
func (c *Client) API() *openai.Client {
	return c.api
}

// Chat sends a chat-completion request and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(c.temperature),
		MaxTokens:   c.maxTokens,
	}
	if req.Temperature == 0 {
		// A zero value is omitted from the request body; send the smallest
		// non-zero float so the server does not fall back to its default.
		req.Temperature = math.SmallestNonzeroFloat32
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	c.log.Debug("gpt: POST %s/chat/completions (model=%s, messages=%d)", c.baseURL, c.model, len(messages))

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("gpt: API %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("gpt: request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("gpt: empty response (no choices)")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("gpt: %w", domain.ErrEmptyReply)
	}
	c.log.Debug("gpt: reply (%d chars, %d tokens): %s", len(reply), resp.Usage.TotalTokens, truncate(reply, 120))
	return reply, nil
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
