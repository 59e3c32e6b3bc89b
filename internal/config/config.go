package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application
type Config struct {
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Ingestion IngestionConfig `koanf:"ingestion"`
	Staging   StagingConfig   `koanf:"staging"`
	Warehouse WarehouseConfig `koanf:"warehouse"`
	Storage   StorageConfig   `koanf:"storage"`
	AWS       AWSConfig       `koanf:"aws"`
	Server    ServerConfig    `koanf:"server"`
	Schedule  ScheduleConfig  `koanf:"schedule"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// UpstreamConfig holds the job search API settings
type UpstreamConfig struct {
	SearchURL  string        `koanf:"search_url"`
	DetailURL  string        `koanf:"detail_url"`
	APIKey     string        `koanf:"api_key"`
	APIHost    string        `koanf:"api_host"` // optional host header, sent as X-RapidAPI-Host
	Timeout    time.Duration `koanf:"timeout"`
	RetryCount int           `koanf:"retry_count"`
	RetryDelay time.Duration `koanf:"retry_delay"`
}

// IngestionConfig holds run-level defaults and enrichment policy
type IngestionConfig struct {
	DefaultQuery   string        `koanf:"default_query"`
	DefaultCountry string        `koanf:"default_country"`
	DefaultPages   int           `koanf:"default_pages"`
	MaxPages       int           `koanf:"max_pages"`
	Concurrency    int           `koanf:"concurrency"`
	GroupPause     time.Duration `koanf:"group_pause"`
}

// StagingConfig holds object storage settings for staged batches
type StagingConfig struct {
	Provider string `koanf:"provider"` // "gcs", "s3"
	Bucket   string `koanf:"bucket"`
	Prefix   string `koanf:"prefix"`
}

// WarehouseConfig holds the load destination
type WarehouseConfig struct {
	Provider  string         `koanf:"provider"` // "bigquery", "redshift"
	ProjectID string         `koanf:"project_id"`
	Dataset   string         `koanf:"dataset"`
	Table     string         `koanf:"table"`
	Location  string         `koanf:"location"`
	Redshift  RedshiftConfig `koanf:"redshift"`
}

// RedshiftConfig holds Redshift Data API settings. Either ClusterID or
// Workgroup identifies the target.
type RedshiftConfig struct {
	ClusterID string `koanf:"cluster_id"`
	Workgroup string `koanf:"workgroup"`
	Database  string `koanf:"database"`
	DBUser    string `koanf:"db_user"`
	SecretARN string `koanf:"secret_arn"`
	IAMRole   string `koanf:"iam_role"`
}

// StorageConfig holds run history storage configuration
type StorageConfig struct {
	Type      string `koanf:"type"` // "memory", "dynamodb", "mongodb", "postgresql"
	TableName string `koanf:"table_name"`
	// DynamoDBEndpoint overrides aws.endpoint for the run history table only.
	DynamoDBEndpoint string `koanf:"dynamodb_endpoint"`
	MongoDBURI       string `koanf:"mongodb_uri"`
	MongoDB          string `koanf:"mongodb_database"`
	PostgresURI      string `koanf:"postgres_uri"`
}

// AWSConfig is shared by every AWS client
type AWSConfig struct {
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"` // custom endpoint for local testing
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// ScheduleConfig drives periodic ingestion. An empty Cron disables it.
type ScheduleConfig struct {
	Cron    string `koanf:"cron"`
	Query   string `koanf:"query"`
	Country string `koanf:"country"`
	Pages   int    `koanf:"pages"`
	Enrich  bool   `koanf:"enrich"`
}

// LoggingConfig controls the global logger
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "pretty", "json"
}

// envKeys maps supported environment variables onto config keys.
var envKeys = map[string]string{
	"JOBS_API_KEY":        "upstream.api_key",
	"RAPIDAPI_KEY":        "upstream.api_key",
	"JOBS_API_HOST":       "upstream.api_host",
	"RAPIDAPI_HOST":       "upstream.api_host",
	"JOBS_SEARCH_URL":     "upstream.search_url",
	"JOBS_DETAIL_URL":     "upstream.detail_url",
	"API_TIMEOUT":         "upstream.timeout",
	"RETRY_COUNT":         "upstream.retry_count",
	"RETRY_DELAY":         "upstream.retry_delay",
	"DEFAULT_QUERY":       "ingestion.default_query",
	"DEFAULT_COUNTRY":     "ingestion.default_country",
	"DEFAULT_PAGES":       "ingestion.default_pages",
	"MAX_PAGES":           "ingestion.max_pages",
	"ENRICH_CONCURRENCY":  "ingestion.concurrency",
	"ENRICH_GROUP_PAUSE":  "ingestion.group_pause",
	"STAGING_PROVIDER":    "staging.provider",
	"GCS_BUCKET":          "staging.bucket",
	"STAGING_BUCKET":      "staging.bucket",
	"GCS_PREFIX":          "staging.prefix",
	"STAGING_PREFIX":      "staging.prefix",
	"WAREHOUSE_PROVIDER":  "warehouse.provider",
	"BQ_PROJECT_ID":       "warehouse.project_id",
	"BQ_DATASET":          "warehouse.dataset",
	"BQ_TABLE":            "warehouse.table",
	"BQ_LOCATION":         "warehouse.location",
	"REDSHIFT_CLUSTER_ID": "warehouse.redshift.cluster_id",
	"REDSHIFT_WORKGROUP":  "warehouse.redshift.workgroup",
	"REDSHIFT_DATABASE":   "warehouse.redshift.database",
	"REDSHIFT_DB_USER":    "warehouse.redshift.db_user",
	"REDSHIFT_SECRET_ARN": "warehouse.redshift.secret_arn",
	"REDSHIFT_IAM_ROLE":   "warehouse.redshift.iam_role",
	"STORAGE_TYPE":        "storage.type",
	"TABLE_NAME":          "storage.table_name",
	"MONGODB_URI":         "storage.mongodb_uri",
	"MONGODB_DATABASE":    "storage.mongodb_database",
	"POSTGRES_URI":        "storage.postgres_uri",
	"AWS_REGION":          "aws.region",
	"AWS_ENDPOINT":        "aws.endpoint",
	"DYNAMODB_ENDPOINT":   "storage.dynamodb_endpoint",
	"SERVER_PORT":         "server.port",
	"PORT":                "server.port",
	"INGESTION_CRON":      "schedule.cron",
	"LOG_LEVEL":           "logging.level",
	"LOG_FORMAT":          "logging.format",
}

// Load reads defaults, then the TOML file at path (if any), then environment
// variables. It does not validate; call Validate before doing any I/O.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Empty values are skipped so they don't override the file.
	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		mapped, ok := envKeys[key]
		if !ok || value == "" {
			return "", nil
		}
		return mapped, value
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()
	return &cfg, nil
}

// normalize cleans values that commonly arrive with stray whitespace from
// secret managers and applies floor values.
func (c *Config) normalize() {
	c.Upstream.APIKey = strings.TrimSpace(c.Upstream.APIKey)
	c.Upstream.APIHost = strings.TrimSpace(c.Upstream.APIHost)
	c.Staging.Bucket = strings.TrimSpace(c.Staging.Bucket)
	c.Staging.Prefix = strings.TrimSuffix(strings.TrimSpace(c.Staging.Prefix), "/")

	if c.Ingestion.Concurrency < 1 {
		c.Ingestion.Concurrency = 1
	}
	if c.Ingestion.DefaultPages < 1 {
		c.Ingestion.DefaultPages = 1
	}
	if c.Ingestion.MaxPages < c.Ingestion.DefaultPages {
		c.Ingestion.MaxPages = c.Ingestion.DefaultPages
	}
	if c.Upstream.RetryCount < 1 {
		c.Upstream.RetryCount = 1
	}
}

// Configuration errors. They are reported before any network call is made
// and are never retried.
var (
	ErrMissingAPIKey      = errors.New("missing upstream API key (JOBS_API_KEY)")
	ErrMissingBucket      = errors.New("missing staging bucket name (GCS_BUCKET)")
	ErrMissingDestination = errors.New("missing warehouse dataset or table (BQ_DATASET, BQ_TABLE)")
)

// Validate reports the first configuration error that would prevent a run.
func (c *Config) Validate() error {
	if c.Upstream.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Staging.Bucket == "" {
		return ErrMissingBucket
	}
	if c.Warehouse.Dataset == "" || c.Warehouse.Table == "" {
		return ErrMissingDestination
	}
	switch c.Staging.Provider {
	case "gcs", "s3":
	default:
		return fmt.Errorf("unsupported staging provider: %s", c.Staging.Provider)
	}
	switch c.Warehouse.Provider {
	case "bigquery":
		if c.Staging.Provider != "gcs" {
			return fmt.Errorf("bigquery loads require gcs staging, got %s", c.Staging.Provider)
		}
	case "redshift":
		if c.Staging.Provider != "s3" {
			return fmt.Errorf("redshift loads require s3 staging, got %s", c.Staging.Provider)
		}
		if c.Warehouse.Redshift.ClusterID == "" && c.Warehouse.Redshift.Workgroup == "" {
			return fmt.Errorf("redshift loads require a cluster id or workgroup")
		}
	default:
		return fmt.Errorf("unsupported warehouse provider: %s", c.Warehouse.Provider)
	}
	return nil
}
