package staging

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSStore writes objects to Google Cloud Storage. Writes are conditional on
// the object not existing yet, so a staged batch is never overwritten.
type GCSStore struct {
	client *storage.Client
}

// NewGCSStore creates a GCS client using application default credentials
// unless opts say otherwise.
func NewGCSStore(ctx context.Context, opts ...option.ClientOption) (*GCSStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// Put uploads body in a single request.
func (g *GCSStore) Put(ctx context.Context, bucket, key string, body []byte, contentType string) (string, error) {
	obj := g.client.Bucket(bucket).Object(key).If(storage.Conditions{DoesNotExist: true})

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.ChunkSize = 0

	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return "", ErrObjectExists
		}
		return "", err
	}

	return fmt.Sprintf("gs://%s/%s", bucket, key), nil
}

// Close releases the underlying client.
func (g *GCSStore) Close() error {
	return g.client.Close()
}
