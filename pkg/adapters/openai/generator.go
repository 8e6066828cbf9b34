// Package openai implements ports.Generator against any OpenAI-compatible
// chat completions endpoint (OpenAI, Workers AI, Ollama, vLLM).
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/arena/pkg/domain"
	backend "github.com/sashabaranov/go-openai"
)

// ErrNoChoices is returned when the backend answers without any completion.
var ErrNoChoices = errors.New("completion returned no choices")

// Config selects the endpoint and model.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// MaxTokens limits the length of each contribution. Zero leaves it to the backend.
	MaxTokens int
}

// Generator calls the chat completions API.
type Generator struct {
	client *backend.Client
	cfg    Config
}

// New creates a generator for cfg.
func New(cfg Config) (*Generator, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("openai: model is required")
	}
	clientCfg := backend.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Generator{
		client: backend.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

// Generate returns the content of the first choice.
func (g *Generator) Generate(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	req := backend.ChatCompletionRequest{
		Model:     g.cfg.Model,
		Messages:  make([]backend.ChatCompletionMessage, 0, len(messages)),
		MaxTokens: g.cfg.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, backend.ChatCompletionMessage{
			Role:    role(m.Role),
			Content: m.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", g.cfg.Model, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func role(r string) string {
	switch r {
	case domain.RoleSystem:
		return backend.ChatMessageRoleSystem
	default:
		return backend.ChatMessageRoleUser
	}
}
