// Package summarizer implements the summarization collaborator on the
// OpenAI chat completion API.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You condense surveillance watch-log events into one short, " +
	"plain-language summary. Mention what was observed and roughly how often. " +
	"Reply with the summary text only."

// OpenAI summarizes watch-log events with a chat completion call.
type OpenAI struct {
	client *openai.Client
	model  string
}

// New creates a summarizer. baseURL may be empty for the public API;
// model may be empty for the default.
func New(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

// Summarize condenses the ordered event descriptions into one summary
// line.
func (o *OpenAI) Summarize(ctx context.Context, events []string) (string, error) {
	if len(events) == 0 {
		return "", fmt.Errorf("no events to summarize")
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: strings.Join(events, "\n")},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarize: empty response")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("summarize: blank summary")
	}
	return text, nil
}
