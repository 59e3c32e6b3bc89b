// Package warehouse submits append load jobs from staged objects into the
// warehouse table. Load jobs are submitted, never awaited.
package warehouse

import (
	"context"
	"fmt"

	"github.com/cyderes/jobs-ingestion-service/internal/models"
)

// Loader submits a load of one staged object into a destination fixed at
// construction time.
type Loader interface {
	// Ready reports a missing destination without calling the warehouse.
	Ready() error
	Load(ctx context.Context, objectURI string) (models.LoadJobID, error)
}

// NotFoundError reports a missing dataset (or schema) or table.
type NotFoundError struct {
	Kind string // "dataset", "schema", "table"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Name)
}
