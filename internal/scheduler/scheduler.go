// Package scheduler triggers ingestion runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cyderes/jobs-ingestion-service/internal/config"
	"github.com/cyderes/jobs-ingestion-service/internal/ingestion"
	"github.com/cyderes/jobs-ingestion-service/internal/models"
)

// Runner executes one ingestion run.
type Runner interface {
	Run(ctx context.Context, req ingestion.Request) (*models.RunSummary, error)
}

// Scheduler wraps robfig/cron and fires the configured request. A run that is
// still in progress when the next tick arrives causes that tick to be skipped.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	spec    string
	request ingestion.Request
	logger  zerolog.Logger
}

// New creates a Scheduler for cfg.Cron (e.g. "@every 6h" or "0 */6 * * *").
func New(runner Runner, cfg config.ScheduleConfig) *Scheduler {
	logger := log.With().Str("component", "scheduler").Logger()
	cronLogger := cron.PrintfLogger(&logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner: runner,
		spec:   cfg.Cron,
		request: ingestion.Request{
			Query:   cfg.Query,
			Country: cfg.Country,
			Pages:   cfg.Pages,
			Enrich:  cfg.Enrich,
		},
		logger: logger,
	}
}

// Start registers the job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info().Str("spec", s.spec).Msg("cron started")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("cron stopped")
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary, err := s.runner.Run(ctx, s.request)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled ingestion failed")
		return
	}
	s.logger.Info().Str("run_id", summary.RunID).Int("rows", summary.Rows).Msg("scheduled ingestion finished")
}
