// Package llm provides a chat client over the Anthropic API used for all
// model calls in the analysis pipeline.
package llm

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 2048
)

// jsonOnlySuffix is appended to the system prompt when JSONOnly is set.
const jsonOnlySuffix = "Your only output must be a single, valid JSON value that strictly adheres to the requested format. Do not include any other text, markdown fences, or apologies."

// Client performs chat completions against the language-model provider.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Message is a single role-tagged message in the conversation.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// ChatRequest describes one model call.
type ChatRequest struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int64
	Temperature *float64

	// JSONOnly requests structured-JSON response mode: the system prompt
	// is tightened and the assistant turn is prefilled with "{" so the
	// model emits a bare JSON object. The brace is restored on the
	// returned text.
	JSONOnly bool
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Text  string
	Usage Usage
}

// Usage reports token consumption.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Option configures the client.
type Option func(*sdkClient)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *sdkClient) {
		c.model = model
	}
}

// WithMaxTokens overrides the default per-call output token cap.
func WithMaxTokens(n int64) Option {
	return func(c *sdkClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithBaseURL overrides the API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *sdkClient) {
		c.baseURL = url
	}
}

// WithLimiter paces outbound calls with a rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *sdkClient) {
		c.limiter = l
	}
}

type sdkClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
	baseURL   string
	limiter   *rate.Limiter
}

// NewClient creates an Anthropic-backed chat client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &sdkClient{model: defaultModel, maxTokens: defaultMaxTokens}
	for _, o := range opts {
		o(c)
	}

	sdkOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if c.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(c.baseURL))
	}
	c.client = sdk.NewClient(sdkOpts...)
	return c
}

func (c *sdkClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "llm: rate limit wait")
		}
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	system := req.System
	messages := req.Messages
	if req.JSONOnly {
		if system != "" {
			system += "\n\n"
		}
		system += jsonOnlySuffix
		messages = append(append([]Message(nil), messages...), Message{Role: "assistant", Content: "{"})
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: maxTokens,
		Messages:  toSDKMessages(messages),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "llm: create message")
	}

	text := collectText(msg)
	if req.JSONOnly && !strings.HasPrefix(strings.TrimSpace(text), "{") {
		text = "{" + text
	}

	return &ChatResponse{
		Text: text,
		Usage: Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			out[i] = sdk.NewAssistantMessage(block)
		default:
			out[i] = sdk.NewUserMessage(block)
		}
	}
	return out
}

func collectText(msg *sdk.Message) string {
	var parts []string
	for _, b := range msg.Content {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
