package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/cyderes/jobs-ingestion-service/internal/cloud"
	"github.com/cyderes/jobs-ingestion-service/internal/config"
	"github.com/cyderes/jobs-ingestion-service/internal/enrich"
	"github.com/cyderes/jobs-ingestion-service/internal/ingestion"
	"github.com/cyderes/jobs-ingestion-service/internal/jobsapi"
	"github.com/cyderes/jobs-ingestion-service/internal/staging"
	"github.com/cyderes/jobs-ingestion-service/internal/storage"
	"github.com/cyderes/jobs-ingestion-service/internal/warehouse"
)

// loadConfig reads the config file named by --config and applies --log-level.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	setupLogging(cfg.Logging)
	return cfg, nil
}

func setupLogging(cfg config.LoggingConfig) {
	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Debug().Str("level", cfg.Level).Msg("log level configured")
}

// isMissingSetting reports configuration errors that fail individual runs
// rather than startup.
func isMissingSetting(err error) bool {
	return errors.Is(err, config.ErrMissingAPIKey) ||
		errors.Is(err, config.ErrMissingBucket) ||
		errors.Is(err, config.ErrMissingDestination)
}

// pipeline holds the wired service and everything that needs closing.
type pipeline struct {
	service *ingestion.Service
	store   storage.Storage
	closers []func() error
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	p := &pipeline{}
	ok := false
	defer func() {
		if !ok {
			p.Close()
		}
	}()

	store, err := storage.NewStorage(ctx, cfg.Storage, cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	p.store = store
	p.closers = append(p.closers, store.Close)

	var objects staging.ObjectStore
	switch cfg.Staging.Provider {
	case "gcs":
		gcs, err := staging.NewGCSStore(ctx)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, gcs.Close)
		objects = gcs
	case "s3":
		sess, err := cloud.NewAWSSession(cfg.AWS)
		if err != nil {
			return nil, err
		}
		objects = staging.NewS3Store(sess)
	default:
		return nil, fmt.Errorf("unsupported staging provider: %s", cfg.Staging.Provider)
	}

	var loader warehouse.Loader
	switch cfg.Warehouse.Provider {
	case "bigquery":
		bq, err := warehouse.NewBigQueryLoader(ctx, cfg.Warehouse)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, bq.Close)
		loader = bq
	case "redshift":
		sess, err := cloud.NewAWSSession(cfg.AWS)
		if err != nil {
			return nil, err
		}
		loader = warehouse.NewRedshiftLoader(sess, cfg.Warehouse)
	default:
		return nil, fmt.Errorf("unsupported warehouse provider: %s", cfg.Warehouse.Provider)
	}

	client := jobsapi.NewClient(cfg.Upstream)
	p.service = ingestion.NewService(
		cfg.Ingestion,
		client,
		enrich.NewEnricher(client, cfg.Ingestion.Concurrency, cfg.Ingestion.GroupPause),
		staging.NewStager(objects, cfg.Staging),
		loader,
		store,
	)

	ok = true
	return p, nil
}
