// Package storage keeps the history of ingestion runs.
package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go/service/dynamodb"

	"github.com/cyderes/jobs-ingestion-service/internal/cloud"
	"github.com/cyderes/jobs-ingestion-service/internal/config"
	"github.com/cyderes/jobs-ingestion-service/internal/models"
)

// DefaultListLimit is used when ListRuns is called with a non-positive limit.
const DefaultListLimit = 20

// Storage interface defines the contract for run history storage
type Storage interface {
	// SaveRun inserts the run or replaces the stored run with the same id.
	SaveRun(ctx context.Context, run models.RunRecord) error
	// GetRun returns nil without an error when the run does not exist.
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	// ListRuns returns the most recently started runs first.
	ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error)
	Close() error
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg config.StorageConfig, awsCfg config.AWSConfig) (Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "dynamodb":
		sess, err := cloud.NewAWSSession(dynamoDBAWSConfig(cfg, awsCfg))
		if err != nil {
			return nil, err
		}
		return NewDynamoDBStorage(ctx, dynamodb.New(sess), cfg.TableName)
	case "mongodb":
		return NewMongoDBStorage(ctx, cfg)
	case "postgresql":
		return NewPostgreSQLStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// dynamoDBAWSConfig applies the history table's own endpoint, leaving the
// shared AWS settings for S3 and Redshift untouched.
func dynamoDBAWSConfig(cfg config.StorageConfig, awsCfg config.AWSConfig) config.AWSConfig {
	if cfg.DynamoDBEndpoint != "" {
		awsCfg.Endpoint = cfg.DynamoDBEndpoint
	}
	return awsCfg
}

// LatestRun returns the most recently started run, or nil if none exist.
func LatestRun(ctx context.Context, s Storage) (*models.RunRecord, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// newestFirst sorts runs by start time, newest first, and keeps at most limit.
func newestFirst(runs []models.RunRecord, limit int) []models.RunRecord {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs
}
