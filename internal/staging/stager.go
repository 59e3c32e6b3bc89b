// Package staging writes normalized batches to object storage as
// newline-delimited JSON.
package staging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cyderes/jobs-ingestion-service/internal/config"
	"github.com/cyderes/jobs-ingestion-service/internal/metrics"
	"github.com/cyderes/jobs-ingestion-service/internal/models"
)

// ContentType of staged objects.
const ContentType = "application/x-ndjson"

// ErrObjectExists is returned by an ObjectStore that refused to overwrite an
// existing object.
var ErrObjectExists = errors.New("object already exists")

// maxKeyAttempts bounds how many fresh keys Stage tries when a key is taken.
const maxKeyAttempts = 3

// ObjectStore uploads one object and returns its fully-qualified URI.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) (string, error)
}

// Stager serializes canonical rows and writes them as a single object.
type Stager struct {
	store  ObjectStore
	bucket string
	prefix string
	now    func() time.Time
}

// NewStager creates a new Stager for the configured bucket and prefix
func NewStager(store ObjectStore, cfg config.StagingConfig) *Stager {
	return &Stager{
		store:  store,
		bucket: strings.TrimSpace(cfg.Bucket),
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		now:    time.Now,
	}
}

// Ready reports a missing bucket name.
func (s *Stager) Ready() error {
	if s.bucket == "" {
		return config.ErrMissingBucket
	}
	return nil
}

// Stage writes rows as one object under
// <prefix>/dt=<UTC date>/jobs_<epoch ms>.jsonl and returns its URI.
func (s *Stager) Stage(ctx context.Context, rows []models.CanonicalJobRow) (string, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}

	body, err := EncodeRows(rows)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key := s.Key(now.Add(time.Duration(attempt) * time.Millisecond))

		uri, err := s.store.Put(ctx, s.bucket, key, body, ContentType)
		if errors.Is(err, ErrObjectExists) {
			log.Warn().Str("bucket", s.bucket).Str("key", key).Msg("staged object key already taken, trying the next one")
			continue
		}
		if err != nil {
			metrics.StorageOperations.WithLabelValues("put", "error").Inc()
			return "", fmt.Errorf("failed to upload %s: %w", key, err)
		}

		metrics.StorageOperations.WithLabelValues("put", "success").Inc()
		metrics.RowsStaged.Add(float64(len(rows)))
		log.Info().Str("uri", uri).Int("rows", len(rows)).Int("bytes", len(body)).Msg("staged batch")
		return uri, nil
	}

	metrics.StorageOperations.WithLabelValues("put", "error").Inc()
	return "", fmt.Errorf("failed to find a free key after %d attempts: %w", maxKeyAttempts, ErrObjectExists)
}

// Key builds the object key for a batch staged at t.
func (s *Stager) Key(t time.Time) string {
	t = t.UTC()
	name := "dt=" + t.Format("2006-01-02") + "/jobs_" + strconv.FormatInt(t.UnixMilli(), 10) + ".jsonl"
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// EncodeRows renders rows as compact JSON, one row per line.
func EncodeRows(rows []models.CanonicalJobRow) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range rows {
		if err := enc.Encode(&rows[i]); err != nil {
			return nil, fmt.Errorf("failed to encode row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
