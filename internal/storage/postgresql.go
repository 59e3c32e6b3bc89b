package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/cyderes/jobs-ingestion-service/internal/config"
	"github.com/cyderes/jobs-ingestion-service/internal/models"
)

// PostgreSQLStorage implements Storage interface using PostgreSQL
type PostgreSQLStorage struct {
	db    *sql.DB
	table string // quoted identifier
}

// NewPostgreSQLStorage opens the database and creates the run table if needed
func NewPostgreSQLStorage(ctx context.Context, cfg config.StorageConfig) (*PostgreSQLStorage, error) {
	if cfg.PostgresURI == "" {
		return nil, errors.New("postgresql storage requires a connection URI (POSTGRES_URI)")
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	storage := &PostgreSQLStorage{db: db, table: pq.QuoteIdentifier(cfg.TableName)}
	if err := storage.ensureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return storage, nil
}

func (p *PostgreSQLStorage) ensureTable(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+p.table+` (
		id            TEXT PRIMARY KEY,
		query         TEXT NOT NULL,
		country       TEXT NOT NULL,
		pages         INTEGER NOT NULL,
		enrich        BOOLEAN NOT NULL,
		status        TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		started_at    TIMESTAMPTZ NOT NULL,
		finished_at   TIMESTAMPTZ,
		summary       JSONB
	)`)
	if err != nil {
		return fmt.Errorf("failed to create run table: %w", err)
	}
	return nil
}

// SaveRun upserts a run by id
func (p *PostgreSQLStorage) SaveRun(ctx context.Context, run models.RunRecord) error {
	var summary []byte
	if run.Summary != nil {
		var err error
		if summary, err = json.Marshal(run.Summary); err != nil {
			return fmt.Errorf("failed to marshal summary for run %s: %w", run.ID, err)
		}
	}

	_, err := p.db.ExecContext(ctx, `INSERT INTO `+p.table+`
		(id, query, country, pages, enrich, status, error_message, started_at, finished_at, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			finished_at = EXCLUDED.finished_at,
			summary = EXCLUDED.summary`,
		run.ID, run.Query, run.Country, run.Pages, run.Enrich, run.Status, run.ErrorMessage,
		run.StartedAt, run.FinishedAt, nullableJSON(summary),
	)
	if err != nil {
		return fmt.Errorf("failed to store run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a specific run by ID
func (p *PostgreSQLStorage) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM `+p.table+` WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the newest runs first
func (p *PostgreSQLStorage) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM `+p.table+` ORDER BY started_at DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Close closes the database pool
func (p *PostgreSQLStorage) Close() error {
	return p.db.Close()
}

const runColumns = `id, query, country, pages, enrich, status, error_message, started_at, finished_at, summary`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.RunRecord, error) {
	var (
		run      models.RunRecord
		finished sql.NullTime
		summary  []byte
	)
	err := row.Scan(&run.ID, &run.Query, &run.Country, &run.Pages, &run.Enrich, &run.Status,
		&run.ErrorMessage, &run.StartedAt, &finished, &summary)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if len(summary) > 0 {
		run.Summary = new(models.RunSummary)
		if err := json.Unmarshal(summary, run.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode summary: %w", err)
		}
	}
	return &run, nil
}

func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
