// Package app wires configuration, storage and services into the
// components shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/chatcrm/crm-backend/internal/chatwork"
	"github.com/chatcrm/crm-backend/internal/config"
	"github.com/chatcrm/crm-backend/internal/database"
	"github.com/chatcrm/crm-backend/internal/importer"
	"github.com/chatcrm/crm-backend/internal/ingest"
	"github.com/chatcrm/crm-backend/internal/metrics"
	"github.com/chatcrm/crm-backend/internal/providers/factory"
	"github.com/chatcrm/crm-backend/internal/repository"
	"github.com/chatcrm/crm-backend/internal/repository/postgres"
	"github.com/chatcrm/crm-backend/internal/summary"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// Stores are the repositories the pipeline runs on
type Stores struct {
	Companies repository.CompanyRepository
	Rooms     repository.RoomRepository
	Messages  repository.MessageRepository
	Imports   repository.ImportStore
	Summaries repository.SummaryRepository
}

// Components is the assembled pipeline
type Components struct {
	Chatwork  *chatwork.Client
	Importer  *importer.Importer
	Syncer    *ingest.Syncer
	Summary   *summary.Service
	Generator *ingest.SummaryGenerator
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
}

// PostgresStores builds the PostgreSQL repositories on db
func PostgresStores(db *database.DB) Stores {
	messages := postgres.NewMessageRepository(db.DB)
	return Stores{
		Companies: postgres.NewCompanyRepository(db.DB),
		Rooms:     postgres.NewRoomRepository(db.DB),
		Messages:  messages,
		Imports:   messages,
		Summaries: postgres.NewSummaryRepository(db.DB),
	}
}

// Build assembles the pipeline on top of stores
func Build(cfg *config.Config, stores Stores, logger logrus.FieldLogger) (*Components, error) {
	if err := cfg.Summary.Validate(); err != nil {
		return nil, fmt.Errorf("invalid summary configuration: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	provider, err := factory.New(cfg.Summary)
	if err != nil {
		return nil, fmt.Errorf("failed to create summary provider: %w", err)
	}
	if provider == nil {
		logger.Info("AI summaries disabled, using heuristic summaries")
	} else {
		if override := strings.TrimSpace(cfg.Summary.Model); override != "" && override != provider.Model() {
			logger.WithField("model", override).Warn("Summary model does not match the provider, using the provider default")
		}
		logger.WithFields(logrus.Fields{
			"provider": provider.Name(),
			"model":    provider.Model(),
		}).Info("AI summaries enabled")
	}

	client := chatwork.NewClient(cfg.Chatwork)
	imp := importer.New(stores.Imports, logger, m)
	syncer := ingest.NewSyncer(client, stores.Rooms, imp, ingest.NewLimiter(cfg.Chatwork.RateLimit), logger, m)
	svc := summary.NewService(cfg.Summary, provider, logger, m)
	gen := ingest.NewSummaryGenerator(ingest.Stores{
		Companies: stores.Companies,
		Rooms:     stores.Rooms,
		Messages:  stores.Messages,
		Summaries: stores.Summaries,
	}, svc, logger, cfg.Scheduler.Concurrency)

	return &Components{
		Chatwork:  client,
		Importer:  imp,
		Syncer:    syncer,
		Summary:   svc,
		Generator: gen,
		Metrics:   m,
		Registry:  registry,
	}, nil
}

// Open connects to PostgreSQL and builds the pipeline on it
func Open(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*database.DB, *Components, error) {
	db, err := database.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	components, err := Build(cfg, PostgresStores(db), logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, components, nil
}
