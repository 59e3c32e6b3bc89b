// Package ingestion runs the fetch, enrich, normalize, stage and load pipeline.
package ingestion

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cyderes/jobs-ingestion-service/internal/config"
	"github.com/cyderes/jobs-ingestion-service/internal/enrich"
	"github.com/cyderes/jobs-ingestion-service/internal/jobsapi"
	"github.com/cyderes/jobs-ingestion-service/internal/metrics"
	"github.com/cyderes/jobs-ingestion-service/internal/models"
	"github.com/cyderes/jobs-ingestion-service/internal/normalize"
	"github.com/cyderes/jobs-ingestion-service/internal/storage"
	"github.com/cyderes/jobs-ingestion-service/internal/warehouse"
)

// Fetcher runs a paginated job search.
type Fetcher interface {
	Ready() error
	Search(ctx context.Context, req jobsapi.SearchRequest) (*jobsapi.SearchResult, error)
}

// Enricher looks up details for a set of job ids.
type Enricher interface {
	Enrich(ctx context.Context, ids []string, country string) map[string]models.RawJobRecord
}

// Stager durably writes a batch of rows and returns its address.
type Stager interface {
	Ready() error
	Stage(ctx context.Context, rows []models.CanonicalJobRow) (string, error)
}

// Request selects what one run ingests. Zero values take the configured
// defaults.
type Request struct {
	Query   string
	Country string
	Pages   int
	Enrich  bool
}

// Service handles data ingestion runs
type Service struct {
	config   config.IngestionConfig
	fetcher  Fetcher
	enricher Enricher
	stager   Stager
	loader   warehouse.Loader
	storage  storage.Storage

	now   func() time.Time
	newID func() string
}

// NewService creates a new ingestion service
func NewService(cfg config.IngestionConfig, fetcher Fetcher, enricher Enricher, stager Stager, loader warehouse.Loader, store storage.Storage) *Service {
	return &Service{
		config:   cfg,
		fetcher:  fetcher,
		enricher: enricher,
		stager:   stager,
		loader:   loader,
		storage:  store,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Normalize fills in defaults and clamps the page count to [1, MaxPages].
func (s *Service) Normalize(req Request) Request {
	req.Query = strings.TrimSpace(req.Query)
	req.Country = strings.TrimSpace(req.Country)
	if req.Query == "" {
		req.Query = s.config.DefaultQuery
	}
	if req.Country == "" {
		req.Country = s.config.DefaultCountry
	}
	if req.Pages < 1 {
		req.Pages = s.config.DefaultPages
	}
	if req.Pages < 1 {
		req.Pages = 1
	}
	if s.config.MaxPages > 0 && req.Pages > s.config.MaxPages {
		req.Pages = s.config.MaxPages
	}
	return req
}

// Run executes one ingestion run. Warehouse failures do not fail the run:
// the summary reports the staged file with a null load job instead. Missing
// settings fail the run before any upstream request. A returned error is
// always a *RunError.
func (s *Service) Run(ctx context.Context, req Request) (*models.RunSummary, error) {
	req = s.Normalize(req)

	started := s.now().UTC()
	run := models.RunRecord{
		ID:        s.newID(),
		Query:     req.Query,
		Country:   req.Country,
		Pages:     req.Pages,
		Enrich:    req.Enrich,
		Status:    models.RunStatusRunning,
		StartedAt: started,
	}
	logger := log.With().Str("run_id", run.ID).Logger()
	logger.Info().Str("query", req.Query).Str("country", req.Country).Int("pages", req.Pages).
		Bool("enrich", req.Enrich).Msg("starting ingestion run")
	s.record(ctx, logger, run)

	summary, err := s.execute(ctx, logger, run.ID, req)

	finished := s.now().UTC()
	run.FinishedAt = &finished
	if err != nil {
		run.Status = models.RunStatusFailure
		run.ErrorMessage = err.Error()
		metrics.Runs.WithLabelValues(models.RunStatusFailure).Inc()
		logger.Error().Err(err).Msg("ingestion run failed")
	} else {
		run.Status = models.RunStatusSuccess
		run.Summary = summary
		outcome := models.RunStatusSuccess
		if summary.JobsFound == 0 {
			outcome = "empty"
		}
		metrics.Runs.WithLabelValues(outcome).Inc()
		logger.Info().Int("rows", summary.Rows).Bool("load_success", summary.LoadSucceeded).
			Msg("ingestion run finished")
	}
	metrics.RunDuration.WithLabelValues(phase(req)).Observe(finished.Sub(started).Seconds())
	s.record(ctx, logger, run)

	return summary, err
}

func (s *Service) execute(ctx context.Context, logger zerolog.Logger, runID string, req Request) (*models.RunSummary, error) {
	if err := s.ready(); err != nil {
		return nil, newRunError(PhaseConfig, err)
	}

	summary := &models.RunSummary{
		RunID:   runID,
		Query:   req.Query,
		Country: req.Country,
		Phase:   phase(req),
	}

	result, err := s.fetcher.Search(ctx, jobsapi.SearchRequest{Query: req.Query, Country: req.Country, Pages: req.Pages})
	if err != nil {
		return nil, newRunError(PhaseFetch, err)
	}
	if result.NoJobs() {
		logger.Info().Msg("job search returned no results")
		summary.Message = "no jobs found"
		return summary, nil
	}
	summary.JobsFound = len(result.Jobs)

	records := result.Jobs
	if req.Enrich {
		ids := enrich.CollectIDs(records)
		if len(ids) > 0 {
			details := s.enricher.Enrich(ctx, ids, req.Country)
			records = enrich.Merge(records, details)
			summary.JobsEnriched = len(details)
			logger.Info().Int("ids", len(ids)).Int("enriched", len(details)).Msg("enrichment complete")
		}
	}

	rows := normalize.Rows(records, normalize.Context{
		Query:      req.Query,
		Country:    req.Country,
		NumPages:   req.Pages,
		RequestID:  result.RequestID,
		Status:     result.Status,
		StatusCode: result.StatusCode,
	}, s.now())
	summary.Rows = len(rows)

	uri, err := s.stager.Stage(ctx, rows)
	if err != nil {
		return nil, newRunError(PhaseStage, err)
	}
	summary.InsertedFile = &uri

	jobID, err := s.loader.Load(ctx, uri)
	if err != nil {
		logger.Error().Err(err).Str("inserted_file", uri).Msg("warehouse load failed; staged file kept for a later load")
		summary.Message = "load failed: " + err.Error()
		return summary, nil
	}
	summary.LoadJobID = &jobID
	summary.LoadSucceeded = true
	return summary, nil
}

// ready checks every stage's settings so a misconfigured run fails before
// the first upstream request.
func (s *Service) ready() error {
	if err := s.fetcher.Ready(); err != nil {
		return err
	}
	if err := s.stager.Ready(); err != nil {
		return err
	}
	return s.loader.Ready()
}

// record saves the run. History is best effort and never fails a run.
func (s *Service) record(ctx context.Context, logger zerolog.Logger, run models.RunRecord) {
	if s.storage == nil {
		return
	}
	if err := s.storage.SaveRun(ctx, run); err != nil {
		logger.Warn().Err(err).Str("status", run.Status).Msg("failed to record run")
	}
}

func phase(req Request) string {
	if req.Enrich {
		return models.PhaseSearchDetails
	}
	return models.PhaseSearch
}

// Run phases reported by RunError.
const (
	PhaseConfig = "config"
	PhaseFetch  = "fetch"
	PhaseStage  = "stage"
)

// RunError is returned when a run fails. Phase tells callers which step
// failed: configuration, fetching or staging.
type RunError struct {
	Phase string
	Err   error
}

func (e *RunError) Error() string {
	return e.Phase + ": " + e.Err.Error()
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func newRunError(phase string, err error) *RunError {
	if errors.Is(err, config.ErrMissingAPIKey) || errors.Is(err, config.ErrMissingBucket) ||
		errors.Is(err, config.ErrMissingDestination) {
		phase = PhaseConfig
	}
	return &RunError{Phase: phase, Err: err}
}
