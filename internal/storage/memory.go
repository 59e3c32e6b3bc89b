package storage

import (
	"context"
	"sync"

	"github.com/cyderes/jobs-ingestion-service/internal/models"
)

// MemoryStorage keeps runs in process memory. History is lost on restart.
type MemoryStorage struct {
	mu   sync.RWMutex
	runs map[string]models.RunRecord
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{runs: make(map[string]models.RunRecord)}
}

func (m *MemoryStorage) SaveRun(ctx context.Context, run models.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryStorage) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (m *MemoryStorage) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	m.mu.RLock()
	runs := make([]models.RunRecord, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	m.mu.RUnlock()

	return newestFirst(runs, clampLimit(limit)), nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
