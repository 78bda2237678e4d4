package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultChatworkTimeout = 8 * time.Second
	DefaultSummaryTimeout  = 20 * time.Second
	DefaultMaxOutputTokens = 600
	DefaultMaxPromptChars  = 12000
	DefaultLookbackDays    = 30
	DefaultMaxMessages     = 120
	DefaultBulletCount     = 5
)

// ProviderKind identifies an AI provider family
type ProviderKind string

const (
	ProviderNone      ProviderKind = ""
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
)

var (
	openAIModelPattern    = regexp.MustCompile(`^(gpt-|chatgpt-|o[0-9])`)
	anthropicModelPattern = regexp.MustCompile(`^claude-`)

	defaultModels = map[ProviderKind]string{
		ProviderOpenAI:    "gpt-4o-mini",
		ProviderAnthropic: "claude-3-5-haiku-latest",
	}
)

// SummaryConfig configures the summarization orchestrator
type SummaryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	MaxPromptChars  int           `mapstructure:"max_prompt_chars"`
	LookbackDays    int           `mapstructure:"lookback_days"`
	MaxMessages     int           `mapstructure:"max_messages"`
	BulletCount     int           `mapstructure:"bullet_count"`
	Timezone        string        `mapstructure:"timezone"`
}

// ProviderKind normalizes the configured provider name. Unknown names map
// to ProviderNone.
func (c SummaryConfig) ProviderKind() ProviderKind {
	switch ProviderKind(strings.ToLower(strings.TrimSpace(c.Provider))) {
	case ProviderOpenAI:
		return ProviderOpenAI
	case ProviderAnthropic:
		return ProviderAnthropic
	default:
		return ProviderNone
	}
}

// ProviderEnabled reports whether an AI provider should be called at all
func (c SummaryConfig) ProviderEnabled() bool {
	return c.Enabled && c.ProviderKind() != ProviderNone && strings.TrimSpace(c.APIKey) != ""
}

// ResolveModel returns the model to request. An override is honored only
// when it belongs to the selected provider family.
func (c SummaryConfig) ResolveModel() string {
	return ResolveModel(c.ProviderKind(), c.Model)
}

// ResolveModel picks the model for kind, rejecting overrides from another family
func ResolveModel(kind ProviderKind, override string) string {
	override = strings.TrimSpace(override)
	if override != "" && ModelMatchesProvider(kind, override) {
		return override
	}
	return defaultModels[kind]
}

// ModelMatchesProvider reports whether model is named like kind's models
func ModelMatchesProvider(kind ProviderKind, model string) bool {
	model = strings.ToLower(model)
	switch kind {
	case ProviderOpenAI:
		return openAIModelPattern.MatchString(model)
	case ProviderAnthropic:
		return anthropicModelPattern.MatchString(model)
	}
	return false
}

// Validate checks the summary settings. Problems that only disable the
// provider (missing key, unknown provider) are not errors.
func (c SummaryConfig) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("summary.timeout must be positive, got %s", c.Timeout))
	}
	if c.MaxPromptChars <= 0 {
		errs = append(errs, fmt.Errorf("summary.max_prompt_chars must be positive, got %d", c.MaxPromptChars))
	}
	if c.MaxOutputTokens <= 0 {
		errs = append(errs, fmt.Errorf("summary.max_output_tokens must be positive, got %d", c.MaxOutputTokens))
	}
	if c.MaxMessages < 0 {
		errs = append(errs, fmt.Errorf("summary.max_messages must not be negative, got %d", c.MaxMessages))
	}
	if c.BulletCount < 0 {
		errs = append(errs, fmt.Errorf("summary.bullet_count must not be negative, got %d", c.BulletCount))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location resolves the timezone used to format summary timestamps
func (c SummaryConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("summary.timezone: %w", err)
	}
	return loc, nil
}

// DefaultSummaryConfig returns the settings used when nothing is configured
func DefaultSummaryConfig() SummaryConfig {
	return SummaryConfig{
		Enabled:         true,
		Timeout:         DefaultSummaryTimeout,
		MaxOutputTokens: DefaultMaxOutputTokens,
		MaxPromptChars:  DefaultMaxPromptChars,
		LookbackDays:    DefaultLookbackDays,
		MaxMessages:     DefaultMaxMessages,
		BulletCount:     DefaultBulletCount,
		Timezone:        "UTC",
	}
}
