package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatcrm/crm-backend/internal/api"
	"github.com/chatcrm/crm-backend/internal/app"
	"github.com/chatcrm/crm-backend/internal/auth"
	"github.com/chatcrm/crm-backend/internal/config"
	"github.com/chatcrm/crm-backend/internal/database"
	"github.com/chatcrm/crm-backend/internal/logging"
	"github.com/chatcrm/crm-backend/internal/scheduler"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := logging.New(cfg.Log)

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		log.WithError(err).Fatal("Set CRM_AUTH_JWT_SECRET to start the API")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run migrations
	if err := database.RunMigrations(cfg.Database); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	db, components, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize pipeline")
	}
	defer db.Close()

	// Scheduled sync and summaries
	sched := scheduler.New(cfg.Scheduler, components.Syncer, components.Generator, log)
	if err := sched.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start scheduler")
	}

	server := api.NewApp(cfg.Server, log)
	api.SetupRoutes(server, api.Dependencies{
		Rooms:     components.Syncer,
		Remote:    components.Chatwork,
		Importer:  components.Importer,
		Summaries: components.Generator,
		Tokens:    tokens,
		Gatherer:  components.Registry,
		RateLimit: cfg.Server.RateLimit,
	})

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Warn("Server shutdown failed")
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.WithField("addr", addr).Info("CRM backend starting")
	if err := server.Listen(addr); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}

	if cfg.Scheduler.Enabled {
		<-sched.Done()
	}
}
