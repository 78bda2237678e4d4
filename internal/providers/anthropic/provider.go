package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/chatcrm/crm-backend/internal/providers"
)

// Name is the provider identity
const Name = "anthropic"

const defaultMaxTokens = 1024

// Provider implements providers.Provider with the Anthropic messages API
type Provider struct {
	model  string
	client anthropic.Client
}

// Config holds what the provider needs to connect
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewProvider creates a new Anthropic provider
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("Anthropic model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// The caller's deadline bounds the call; SDK retries would outlive it
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		model:  cfg.Model,
		client: anthropic.NewClient(opts...),
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
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(float64(req.Temperature)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	return decodeText(msg)
}

// decodeText concatenates the text blocks of a message
func decodeText(msg *anthropic.Message) (string, error) {
	if msg == nil {
		return "", providers.ErrEmptyResponse
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", providers.ErrEmptyResponse
	}
	return text, nil
}
