package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/redshiftdataapiservice"
	"github.com/aws/aws-sdk-go/service/redshiftdataapiservice/redshiftdataapiserviceiface"
	"github.com/rs/zerolog/log"

	"github.com/cyderes/jobs-ingestion-service/internal/config"
	"github.com/cyderes/jobs-ingestion-service/internal/metrics"
	"github.com/cyderes/jobs-ingestion-service/internal/models"
)

// RedshiftLoader COPYs newline-delimited JSON from S3 into a Redshift table
// through the Redshift Data API. The dataset setting names the schema.
type RedshiftLoader struct {
	client redshiftdataapiserviceiface.RedshiftDataAPIServiceAPI
	cfg    config.RedshiftConfig
	schema string
	table  string
}

// NewRedshiftLoader creates a RedshiftLoader from an AWS session
func NewRedshiftLoader(sess *session.Session, cfg config.WarehouseConfig) *RedshiftLoader {
	return NewRedshiftLoaderWithClient(redshiftdataapiservice.New(sess), cfg)
}

// NewRedshiftLoaderWithClient wraps an existing Data API client.
func NewRedshiftLoaderWithClient(client redshiftdataapiserviceiface.RedshiftDataAPIServiceAPI, cfg config.WarehouseConfig) *RedshiftLoader {
	return &RedshiftLoader{
		client: client,
		cfg:    cfg.Redshift,
		schema: strings.TrimSpace(cfg.Dataset),
		table:  strings.TrimSpace(cfg.Table),
	}
}

// Ready reports an unset schema or table.
func (l *RedshiftLoader) Ready() error {
	if l.schema == "" || l.table == "" {
		return config.ErrMissingDestination
	}
	return nil
}

// Load checks the schema and table exist, then submits the COPY statement and
// returns the statement id without polling it.
func (l *RedshiftLoader) Load(ctx context.Context, objectURI string) (models.LoadJobID, error) {
	if err := l.Ready(); err != nil {
		return "", err
	}

	if err := l.checkSchema(ctx); err != nil {
		metrics.LoadJobs.WithLabelValues("error").Inc()
		return "", err
	}
	if err := l.checkTable(ctx); err != nil {
		metrics.LoadJobs.WithLabelValues("error").Inc()
		return "", err
	}

	out, err := l.client.ExecuteStatementWithContext(ctx, &redshiftdataapiservice.ExecuteStatementInput{
		Sql:               aws.String(CopyStatement(l.schema, l.table, objectURI, l.cfg.IAMRole)),
		StatementName:     aws.String("jsearch_load"),
		ClusterIdentifier: optional(l.cfg.ClusterID),
		WorkgroupName:     optional(l.cfg.Workgroup),
		Database:          aws.String(l.cfg.Database),
		DbUser:            optional(l.cfg.DBUser),
		SecretArn:         optional(l.cfg.SecretARN),
	})
	if err != nil {
		metrics.LoadJobs.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to submit COPY for %s: %w", objectURI, err)
	}

	id := aws.StringValue(out.Id)
	metrics.LoadJobs.WithLabelValues("submitted").Inc()
	log.Info().Str("job_id", id).Str("source", objectURI).Str("table", l.schema+"."+l.table).
		Msg("submitted Redshift COPY statement")
	return models.LoadJobID(id), nil
}

func (l *RedshiftLoader) checkSchema(ctx context.Context) error {
	out, err := l.client.ListSchemasWithContext(ctx, &redshiftdataapiservice.ListSchemasInput{
		ClusterIdentifier: optional(l.cfg.ClusterID),
		WorkgroupName:     optional(l.cfg.Workgroup),
		Database:          aws.String(l.cfg.Database),
		DbUser:            optional(l.cfg.DBUser),
		SecretArn:         optional(l.cfg.SecretARN),
		SchemaPattern:     aws.String(l.schema),
	})
	if err != nil {
		return fmt.Errorf("failed to check schema %s: %w", l.schema, err)
	}
	for _, s := range out.Schemas {
		if aws.StringValue(s) == l.schema {
			return nil
		}
	}
	return &NotFoundError{Kind: "schema", Name: l.schema}
}

func (l *RedshiftLoader) checkTable(ctx context.Context) error {
	name := l.schema + "." + l.table
	out, err := l.client.ListTablesWithContext(ctx, &redshiftdataapiservice.ListTablesInput{
		ClusterIdentifier: optional(l.cfg.ClusterID),
		WorkgroupName:     optional(l.cfg.Workgroup),
		Database:          aws.String(l.cfg.Database),
		DbUser:            optional(l.cfg.DBUser),
		SecretArn:         optional(l.cfg.SecretARN),
		SchemaPattern:     aws.String(l.schema),
		TablePattern:      aws.String(l.table),
	})
	if err != nil {
		return fmt.Errorf("failed to check table %s: %w", name, err)
	}
	for _, t := range out.Tables {
		if aws.StringValue(t.Schema) == l.schema && aws.StringValue(t.Name) == l.table {
			return nil
		}
	}
	return &NotFoundError{Kind: "table", Name: name}
}

// CopyStatement builds the COPY that appends a JSON lines object into
// schema.table. Columns are matched by name and unknown fields are ignored.
func CopyStatement(schema, table, objectURI, iamRole string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "COPY %s.%s FROM %s", quoteIdent(schema), quoteIdent(table), quoteLiteral(objectURI))
	if iamRole != "" {
		fmt.Fprintf(&b, " IAM_ROLE %s", quoteLiteral(iamRole))
	} else {
		b.WriteString(" IAM_ROLE default")
	}
	b.WriteString(" FORMAT AS JSON 'auto ignorecase' TIMEFORMAT 'auto'")
	return b.String()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
