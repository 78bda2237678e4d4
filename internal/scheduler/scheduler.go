// Package scheduler runs room sync and company summaries on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/chatcrm/crm-backend/internal/config"
	"github.com/chatcrm/crm-backend/internal/ingest"
	"github.com/chatcrm/crm-backend/internal/summary"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	JobSync      = "sync"
	JobSummaries = "summaries"
)

// RoomSyncer syncs every linked room
type RoomSyncer interface {
	SyncAll(ctx context.Context, force bool) (*ingest.SyncReport, error)
}

// CompanySummarizer summarizes every company with linked rooms
type CompanySummarizer interface {
	GenerateAll(ctx context.Context, opts summary.Options) (*ingest.BatchReport, error)
}

// Scheduler owns the cron instance. Overlapping ticks of the same job are
// skipped rather than queued.
type Scheduler struct {
	cfg        config.SchedulerConfig
	syncer     RoomSyncer
	summarizer CompanySummarizer
	logger     logrus.FieldLogger
	cron       *cron.Cron

	mu       sync.Mutex
	ctx      context.Context
	entries  map[string]cron.EntryID
	stopOnce sync.Once
	stopped  chan struct{}
}

// New creates a new Scheduler
func New(cfg config.SchedulerConfig, syncer RoomSyncer, summarizer CompanySummarizer, logger logrus.FieldLogger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cronLogger := cron.PrintfLogger(logger)
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	return &Scheduler{
		cfg:        cfg,
		syncer:     syncer,
		summarizer: summarizer,
		logger:     logger,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
		stopped: make(chan struct{}),
	}
}

// Start registers the jobs and starts the cron loop. Jobs run with ctx and
// the scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("scheduler disabled by config")
		return nil
	}

	s.mu.Lock()
	s.ctx = ctx
	jobs := []struct {
		name string
		spec string
	}{
		{JobSync, s.cfg.SyncSpec},
		{JobSummaries, s.cfg.SummarySpec},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		name := job.name
		id, err := s.cron.AddFunc(job.spec, func() { s.Run(name) })
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("invalid cron expression for %s job: %w", name, err)
		}
		s.entries[name] = id
		s.logger.WithFields(logrus.Fields{"job": name, "schedule": job.spec}).Info("registered scheduled job")
	}
	s.mu.Unlock()

	s.cron.Start()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for running jobs and stops the cron loop. Safe to call more
// than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		close(s.stopped)
		s.logger.Info("scheduler stopped")
	})
}

// Done is closed once the scheduler has stopped
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

// Jobs returns the registered job names
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for _, name := range []string{JobSync, JobSummaries} {
		if _, ok := s.entries[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Run executes one job synchronously
func (s *Scheduler) Run(name string) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	log := s.logger.WithField("job", name)
	switch name {
	case JobSync:
		report, err := s.syncer.SyncAll(ctx, false)
		if err != nil {
			log.WithError(err).Error("scheduled sync failed")
			return
		}
		log.WithFields(logrus.Fields{
			"rooms":    len(report.Rooms),
			"failures": len(report.Failures),
		}).Info("scheduled sync finished")
	case JobSummaries:
		report, err := s.summarizer.GenerateAll(ctx, summary.Options{})
		if err != nil {
			log.WithError(err).Error("scheduled summaries failed")
			return
		}
		log.WithFields(logrus.Fields{
			"generated": report.Generated,
			"failures":  len(report.Failures),
		}).Info("scheduled summaries finished")
	default:
		log.Warn("unknown scheduled job")
	}
}
