// Package llm wraps the text-completion service behind a small Completer
// interface so classification and drafting stay testable without network
// access. The concrete client targets the OpenAI chat-completions API.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion is returned when the service answers with no choices
// or an empty message body.
var ErrEmptyCompletion = errors.New("empty completion")

// Completer is the single seam between the assistant and the completion
// service. system carries the role/instructions block, user the content to
// act on; maxTokens bounds the reply.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// OpenAIClient implements Completer against the OpenAI API.
//
// Fields:
//   - api: underlying SDK client.
//   - model: chat model name (e.g. gpt-4o).
//   - timeout: per-call deadline applied on top of the caller's context.
type OpenAIClient struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClient constructs a client for the given API key and model.
// A non-positive timeout falls back to 60s.
func NewOpenAIClient(apiKey, model string, timeout time.Duration) *OpenAIClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		api:     openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
	}
}

// Complete performs one chat completion and returns the trimmed text of the
// first choice.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}

// stripFences removes a surrounding markdown code fence (``` or ```json)
// from a model reply. Models occasionally wrap JSON despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 && !strings.Contains(s[:idx], "{") {
		// Drop a language tag like "json" on the fence line.
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// stripQuotes removes one layer of wrapping double quotes from generated
// draft text.
func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
