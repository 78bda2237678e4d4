package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chatcrm/crm-backend/internal/apperr"
	"github.com/chatcrm/crm-backend/internal/models"
	"github.com/chatcrm/crm-backend/internal/repository"
	"github.com/chatcrm/crm-backend/internal/summary"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultHistoryLimit = 20

// Summarizer produces a summary for a set of messages
type Summarizer interface {
	Summarize(ctx context.Context, req summary.Request) summary.Result
	Cutoff(opts summary.Options) time.Time
}

// CompanySummary is a persisted summary plus how it was produced
type CompanySummary struct {
	models.Summary
	Stats    summary.Stats `json:"stats"`
	Provider string        `json:"provider,omitempty"`
	Model    string        `json:"model,omitempty"`
}

// BatchReport summarizes a GenerateAll run
type BatchReport struct {
	Generated int               `json:"generated"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// SummaryGenerator builds and stores company summaries
type SummaryGenerator struct {
	companies   repository.CompanyRepository
	rooms       repository.RoomRepository
	messages    repository.MessageRepository
	summaries   repository.SummaryRepository
	summarizer  Summarizer
	logger      logrus.FieldLogger
	concurrency int
}

// Stores groups the repositories the generator reads and writes
type Stores struct {
	Companies repository.CompanyRepository
	Rooms     repository.RoomRepository
	Messages  repository.MessageRepository
	Summaries repository.SummaryRepository
}

// NewSummaryGenerator creates a new SummaryGenerator. concurrency bounds
// GenerateAll; values below one mean one.
func NewSummaryGenerator(stores Stores, summarizer Summarizer, logger logrus.FieldLogger, concurrency int) *SummaryGenerator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &SummaryGenerator{
		companies:   stores.Companies,
		rooms:       stores.Rooms,
		messages:    stores.Messages,
		summaries:   stores.Summaries,
		summarizer:  summarizer,
		logger:      logger,
		concurrency: concurrency,
	}
}

// GenerateForCompany summarizes the recent messages of every room linked to
// the company and appends the result to its history
func (g *SummaryGenerator) GenerateForCompany(ctx context.Context, companyID string, opts summary.Options) (*CompanySummary, error) {
	company, err := g.company(ctx, companyID)
	if err != nil {
		return nil, err
	}

	rooms, err := g.rooms.ListByCompany(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list company rooms: %w", err)
	}

	var msgs []summary.Message
	if len(rooms) > 0 {
		ids := make([]string, 0, len(rooms))
		for _, r := range rooms {
			ids = append(ids, r.ID)
		}
		rows, err := g.messages.ListForRooms(ctx, ids, g.summarizer.Cutoff(opts))
		if err != nil {
			return nil, fmt.Errorf("failed to load messages: %w", err)
		}
		msgs = summary.FromRoomMessages(rows)
	}

	result := g.summarizer.Summarize(ctx, summary.Request{
		CompanyName: company.Name,
		Messages:    msgs,
		Options:     opts,
	})

	record := models.Summary{
		CompanyID:   company.ID,
		PeriodType:  models.PeriodRecent,
		Content:     result.Content,
		Source:      result.Source,
		GeneratedAt: time.Now().UTC(),
	}
	if err := g.summaries.Create(ctx, &record); err != nil {
		return nil, fmt.Errorf("failed to save summary: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"company_id": company.ID,
		"source":     result.Source,
		"messages":   result.Stats.MessageCount,
	}).Info("generated company summary")

	return &CompanySummary{
		Summary:  record,
		Stats:    result.Stats,
		Provider: result.Provider,
		Model:    result.Model,
	}, nil
}

// Latest returns the newest stored summary of a company
func (g *SummaryGenerator) Latest(ctx context.Context, companyID string) (*models.Summary, error) {
	s, err := g.summaries.Latest(ctx, companyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("summary for company", companyID)
		}
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}
	return s, nil
}

// History returns up to limit summaries of a company, newest first
func (g *SummaryGenerator) History(ctx context.Context, companyID string, limit int) ([]*models.Summary, error) {
	if _, err := g.company(ctx, companyID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	list, err := g.summaries.ListByCompany(ctx, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	if list == nil {
		list = []*models.Summary{}
	}
	return list, nil
}

// GenerateAll summarizes every company with linked rooms. Companies run
// concurrently up to the configured limit; one failure does not stop the
// others.
func (g *SummaryGenerator) GenerateAll(ctx context.Context, opts summary.Options) (*BatchReport, error) {
	companies, err := g.companies.ListWithRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	var (
		mu     sync.Mutex
		report = &BatchReport{}
		group  errgroup.Group
	)
	group.SetLimit(g.concurrency)

	for _, c := range companies {
		c := c
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			_, err := g.GenerateForCompany(ctx, c.ID, opts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				g.logger.WithError(err).WithField("company_id", c.ID).Warn("company summary failed")
				if report.Failures == nil {
					report.Failures = make(map[string]string)
				}
				report.Failures[c.ID] = err.Error()
				return nil
			}
			report.Generated++
			return nil
		})
	}
	_ = group.Wait()

	return report, ctx.Err()
}

func (g *SummaryGenerator) company(ctx context.Context, id string) (*models.Company, error) {
	company, err := g.companies.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("company", id)
		}
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	return company, nil
}
