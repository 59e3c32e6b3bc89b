package warehouse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/cyderes/jobs-ingestion-service/internal/config"
	"github.com/cyderes/jobs-ingestion-service/internal/metrics"
	"github.com/cyderes/jobs-ingestion-service/internal/models"
)

// loadJobPrefix prefixes generated load job ids.
const loadJobPrefix = "jsearch_load_"

// bigQueryAPI is the subset of BigQuery the loader needs.
type bigQueryAPI interface {
	DatasetMetadata(ctx context.Context, dataset string) error
	TableMetadata(ctx context.Context, dataset, table string) error
	StartLoad(ctx context.Context, dataset, table, sourceURI string) (string, error)
	Close() error
}

// BigQueryLoader appends newline-delimited JSON from GCS into a BigQuery table.
type BigQueryLoader struct {
	api     bigQueryAPI
	dataset string
	table   string
}

// NewBigQueryLoader creates a BigQuery client for the configured project.
func NewBigQueryLoader(ctx context.Context, cfg config.WarehouseConfig, opts ...option.ClientOption) (*BigQueryLoader, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	return newBigQueryLoader(&bigQueryClient{client: client, location: cfg.Location}, cfg), nil
}

func newBigQueryLoader(api bigQueryAPI, cfg config.WarehouseConfig) *BigQueryLoader {
	return &BigQueryLoader{
		api:     api,
		dataset: strings.TrimSpace(cfg.Dataset),
		table:   strings.TrimSpace(cfg.Table),
	}
}

// Ready reports an unset dataset or table.
func (l *BigQueryLoader) Ready() error {
	if l.dataset == "" || l.table == "" {
		return config.ErrMissingDestination
	}
	return nil
}

// Load checks that the dataset and table exist, then submits the load job and
// returns its id without waiting for it.
func (l *BigQueryLoader) Load(ctx context.Context, objectURI string) (models.LoadJobID, error) {
	if err := l.Ready(); err != nil {
		return "", err
	}

	if err := l.api.DatasetMetadata(ctx, l.dataset); err != nil {
		metrics.LoadJobs.WithLabelValues("error").Inc()
		return "", classifyBigQueryError(err, "dataset", l.dataset)
	}
	if err := l.api.TableMetadata(ctx, l.dataset, l.table); err != nil {
		metrics.LoadJobs.WithLabelValues("error").Inc()
		return "", classifyBigQueryError(err, "table", l.dataset+"."+l.table)
	}

	jobID, err := l.api.StartLoad(ctx, l.dataset, l.table, objectURI)
	if err != nil {
		metrics.LoadJobs.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to submit load job for %s: %w", objectURI, err)
	}

	metrics.LoadJobs.WithLabelValues("submitted").Inc()
	log.Info().Str("job_id", jobID).Str("source", objectURI).Str("table", l.dataset+"."+l.table).
		Msg("submitted BigQuery load job")
	return models.LoadJobID(jobID), nil
}

// Close releases the underlying client.
func (l *BigQueryLoader) Close() error {
	return l.api.Close()
}

func classifyBigQueryError(err error, kind, name string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return &NotFoundError{Kind: kind, Name: name}
		case http.StatusForbidden:
			return fmt.Errorf("permission denied reading %s %s: %w", kind, name, err)
		}
	}
	return fmt.Errorf("failed to check %s %s: %w", kind, name, err)
}

// bigQueryClient adapts *bigquery.Client to bigQueryAPI.
type bigQueryClient struct {
	client   *bigquery.Client
	location string
}

func (c *bigQueryClient) DatasetMetadata(ctx context.Context, dataset string) error {
	_, err := c.client.Dataset(dataset).Metadata(ctx)
	return err
}

func (c *bigQueryClient) TableMetadata(ctx context.Context, dataset, table string) error {
	_, err := c.client.Dataset(dataset).Table(table).Metadata(ctx)
	return err
}

func (c *bigQueryClient) StartLoad(ctx context.Context, dataset, table, sourceURI string) (string, error) {
	ref := bigquery.NewGCSReference(sourceURI)
	ref.SourceFormat = bigquery.JSON
	ref.IgnoreUnknownValues = true

	loader := c.client.Dataset(dataset).Table(table).LoaderFrom(ref)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateNever
	loader.Location = c.location
	loader.JobID = loadJobPrefix
	loader.AddJobIDSuffix = true

	job, err := loader.Run(ctx)
	if err != nil {
		return "", err
	}
	return job.ID(), nil
}

func (c *bigQueryClient) Close() error {
	return c.client.Close()
}
