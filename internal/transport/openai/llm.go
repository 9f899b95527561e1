package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/opsgrep/lograg/internal/domain"
)

// LLM answers prompts via the chat completions API.
type LLM struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

var _ domain.LanguageModel = (*LLM)(nil)

// NewLLM creates a chat completion client.
func NewLLM(cfg *Config) *LLM {
	return &LLM{
		client: newClient(cfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// Complete sends a system+user prompt pair and returns the assistant text.
func (l *LLM) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response: %w", domain.ErrProvider)
	}
	return resp.Choices[0].Message.Content, nil
}
