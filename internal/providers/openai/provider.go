package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/chatcrm/crm-backend/internal/providers"
	"github.com/sashabaranov/go-openai"
)

// Name is the provider identity
const Name = "openai"

// Provider implements providers.Provider with the OpenAI chat completions API
type Provider struct {
	model  string
	client *openai.Client
}

// Config holds what the provider needs to connect
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewProvider creates a new OpenAI provider
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("OpenAI model is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &Provider{
		model:  cfg.Model,
		client: openai.NewClientWithConfig(clientCfg),
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return Name
}

// Model returns the requested model
func (p *Provider) Model() string {
	return p.model
}

// Complete performs a non-streaming completion
func (p *Provider) Complete(ctx context.Context, req providers.CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}

	return decodeText(resp)
}

// decodeText extracts the answer text from a chat completion
func decodeText(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", providers.ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", providers.ErrEmptyResponse
	}
	return text, nil
}
