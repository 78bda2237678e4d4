// Package summary selects message windows and turns them into company
// activity summaries, through an AI provider when one is configured and a
// deterministic heuristic otherwise.
package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatcrm/crm-backend/internal/apperr"
	"github.com/chatcrm/crm-backend/internal/config"
	"github.com/chatcrm/crm-backend/internal/metrics"
	"github.com/chatcrm/crm-backend/internal/models"
	"github.com/chatcrm/crm-backend/internal/providers"
	"github.com/sirupsen/logrus"
)

const (
	breakerThreshold = 3
	breakerCooldown  = time.Minute
	temperature      = 0.2
)

// Options narrows the window of a single request. Zero values fall back to
// the service configuration.
type Options struct {
	LookbackDays int `json:"lookback_days"`
	MaxMessages  int `json:"max_messages"`
}

// Request is the input of Summarize
type Request struct {
	CompanyName string
	Messages    []Message
	Options     Options
}

// Result is a produced summary
type Result struct {
	Content  string `json:"content"`
	Stats    Stats  `json:"stats"`
	Source   string `json:"source"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Service orchestrates window selection, the provider call and the
// heuristic fallback
type Service struct {
	cfg       config.SummaryConfig
	provider  providers.Provider
	breaker   *providers.Breaker
	heuristic *Heuristic
	location  *time.Location
	logger    logrus.FieldLogger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// ServiceOption customizes a Service
type ServiceOption func(*Service)

// WithClock replaces the wall clock used for the lookback cutoff
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithBreaker replaces the provider circuit breaker
func WithBreaker(b *providers.Breaker) ServiceOption {
	return func(s *Service) {
		s.breaker = b
	}
}

// NewService creates a summary service. A nil provider keeps every summary
// heuristic.
func NewService(cfg config.SummaryConfig, provider providers.Provider, logger logrus.FieldLogger, m *metrics.Metrics, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cfg = withDefaults(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.WithError(err).WithField("timezone", cfg.Timezone).Warn("unknown summary timezone, using UTC")
		loc = time.UTC
	}

	s := &Service{
		cfg:       cfg,
		provider:  provider,
		breaker:   providers.NewBreaker(breakerThreshold, breakerCooldown),
		heuristic: NewHeuristic(HeuristicOptions{Location: loc}),
		location:  loc,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func withDefaults(cfg config.SummaryConfig) config.SummaryConfig {
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultSummaryTimeout
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = config.DefaultMaxOutputTokens
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = config.DefaultMaxPromptChars
	}
	if cfg.LookbackDays == 0 {
		cfg.LookbackDays = config.DefaultLookbackDays
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = config.DefaultMaxMessages
	}
	if cfg.BulletCount <= 0 {
		cfg.BulletCount = config.DefaultBulletCount
	}
	return cfg
}

// WindowOptions resolves per-request options against the configuration
func (s *Service) WindowOptions(opts Options) WindowOptions {
	w := WindowOptions{LookbackDays: s.cfg.LookbackDays, MaxCount: s.cfg.MaxMessages}
	if opts.LookbackDays != 0 {
		w.LookbackDays = opts.LookbackDays
	}
	if opts.MaxMessages > 0 {
		w.MaxCount = opts.MaxMessages
	}
	return w
}

// Cutoff returns the oldest instant a request with opts would keep
func (s *Service) Cutoff(opts Options) time.Time {
	return s.WindowOptions(opts).Cutoff(s.now())
}

// ProviderEnabled reports whether summaries may come from the provider
func (s *Service) ProviderEnabled() bool {
	return s.provider != nil
}

// Summarize produces a summary of the request's messages. It never fails:
// provider problems of any kind degrade to the heuristic summary tagged
// as fallback.
func (s *Service) Summarize(ctx context.Context, req Request) Result {
	window := SelectWindow(req.Messages, s.WindowOptions(req.Options), s.now())
	digest := s.heuristic.Summarize(window)

	if len(window) == 0 || s.provider == nil {
		s.metrics.ObserveSummary(models.SourceHeuristic)
		return Result{Content: digest.Content, Stats: digest.Stats, Source: models.SourceHeuristic}
	}

	text, err := s.complete(ctx, req.CompanyName, window, digest.Stats)
	if err != nil {
		s.logger.WithError(apperr.Provider(s.provider.Name(), err)).WithFields(logrus.Fields{
			"company":  req.CompanyName,
			"provider": s.provider.Name(),
			"model":    s.provider.Model(),
			"messages": len(window),
		}).Warn("AI summary failed, using heuristic fallback")

		s.metrics.ObserveSummary(models.SourceFallback)
		return Result{Content: digest.Content, Stats: digest.Stats, Source: models.SourceFallback}
	}

	s.metrics.ObserveSummary(models.SourceLLM)
	return Result{
		Content:  text,
		Stats:    digest.Stats,
		Source:   models.SourceLLM,
		Provider: s.provider.Name(),
		Model:    s.provider.Model(),
	}
}

// complete runs one guarded provider call and returns normalized bullets
func (s *Service) complete(ctx context.Context, company string, window []Message, stats Stats) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !s.breaker.Allow() {
		return "", providers.ErrBreakerOpen
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
		// Cancellation belongs to the caller, not the provider
		if ctx.Err() != nil {
			s.breaker.Release()
			return
		}
		s.breaker.Record(err)
	}()

	prompt := buildPrompt(promptInput{
		CompanyName: company,
		Window:      window,
		Stats:       stats,
		MaxChars:    s.cfg.MaxPromptChars,
		Bullets:     s.cfg.BulletCount,
		Location:    s.location,
	})

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	out, err := s.provider.Complete(callCtx, providers.CompletionRequest{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   s.cfg.MaxOutputTokens,
		Temperature: temperature,
	})
	s.metrics.ObserveProviderCall(s.provider.Name(), time.Since(start), err)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("provider timed out after %s: %w", s.cfg.Timeout, err)
		}
		return "", err
	}

	text = NormalizeBullets(out)
	if text == "" {
		return "", providers.ErrEmptyResponse
	}
	return text, nil
}
