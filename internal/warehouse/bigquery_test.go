package warehouse

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/cyderes/jobs-ingestion-service/internal/config"
)

// MockBigQuery is a mock implementation of bigQueryAPI
type MockBigQuery struct {
	mock.Mock
}

func (m *MockBigQuery) DatasetMetadata(ctx context.Context, dataset string) error {
	return m.Called(ctx, dataset).Error(0)
}

func (m *MockBigQuery) TableMetadata(ctx context.Context, dataset, table string) error {
	return m.Called(ctx, dataset, table).Error(0)
}

func (m *MockBigQuery) StartLoad(ctx context.Context, dataset, table, sourceURI string) (string, error) {
	args := m.Called(ctx, dataset, table, sourceURI)
	return args.String(0), args.Error(1)
}

func (m *MockBigQuery) Close() error {
	return m.Called().Error(0)
}

var testDestination = config.WarehouseConfig{Dataset: "jobs_ds", Table: "jobs_jsearch_raw"}

const testURI = "gs://bucket/staging/jsearch/dt=2024-01-01/jobs_1.jsonl"

func TestBigQueryLoader_Load(t *testing.T) {
	api := new(MockBigQuery)
	api.On("DatasetMetadata", mock.Anything, "jobs_ds").Return(nil)
	api.On("TableMetadata", mock.Anything, "jobs_ds", "jobs_jsearch_raw").Return(nil)
	api.On("StartLoad", mock.Anything, "jobs_ds", "jobs_jsearch_raw", testURI).Return("jsearch_load_abc", nil)

	loader := newBigQueryLoader(api, testDestination)
	id, err := loader.Load(context.Background(), testURI)

	require.NoError(t, err)
	assert.Equal(t, "jsearch_load_abc", string(id))
	api.AssertExpectations(t)
}

func TestBigQueryLoader_MissingDestination(t *testing.T) {
	api := new(MockBigQuery)
	loader := newBigQueryLoader(api, config.WarehouseConfig{Dataset: "jobs_ds", Table: " "})
	assert.ErrorIs(t, loader.Ready(), config.ErrMissingDestination)
	assert.NoError(t, newBigQueryLoader(api, config.WarehouseConfig{Dataset: "jobs_ds", Table: "jobs"}).Ready())

	_, err := loader.Load(context.Background(), testURI)

	assert.ErrorIs(t, err, config.ErrMissingDestination)
	api.AssertNotCalled(t, "DatasetMetadata", mock.Anything, mock.Anything)
}

func TestBigQueryLoader_MissingDataset(t *testing.T) {
	api := new(MockBigQuery)
	api.On("DatasetMetadata", mock.Anything, "jobs_ds").Return(&googleapi.Error{Code: http.StatusNotFound})

	loader := newBigQueryLoader(api, testDestination)
	_, err := loader.Load(context.Background(), testURI)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "dataset", nf.Kind)
	assert.Equal(t, "jobs_ds", nf.Name)
	assert.Contains(t, err.Error(), "dataset jobs_ds not found")
	api.AssertNotCalled(t, "StartLoad", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBigQueryLoader_MissingTable(t *testing.T) {
	api := new(MockBigQuery)
	api.On("DatasetMetadata", mock.Anything, "jobs_ds").Return(nil)
	api.On("TableMetadata", mock.Anything, "jobs_ds", "jobs_jsearch_raw").Return(&googleapi.Error{Code: http.StatusNotFound})

	loader := newBigQueryLoader(api, testDestination)
	_, err := loader.Load(context.Background(), testURI)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "table", nf.Kind)
	assert.Equal(t, "jobs_ds.jobs_jsearch_raw", nf.Name)
	api.AssertNotCalled(t, "StartLoad", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBigQueryLoader_PermissionDenied(t *testing.T) {
	api := new(MockBigQuery)
	api.On("DatasetMetadata", mock.Anything, "jobs_ds").Return(&googleapi.Error{Code: http.StatusForbidden, Message: "denied"})

	loader := newBigQueryLoader(api, testDestination)
	_, err := loader.Load(context.Background(), testURI)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied reading dataset jobs_ds")
	var apiErr *googleapi.Error
	assert.True(t, errors.As(err, &apiErr))
}

func TestBigQueryLoader_SubmitFailure(t *testing.T) {
	api := new(MockBigQuery)
	api.On("DatasetMetadata", mock.Anything, "jobs_ds").Return(nil)
	api.On("TableMetadata", mock.Anything, "jobs_ds", "jobs_jsearch_raw").Return(nil)
	api.On("StartLoad", mock.Anything, "jobs_ds", "jobs_jsearch_raw", testURI).Return("", errors.New("quota exceeded"))

	loader := newBigQueryLoader(api, testDestination)
	id, err := loader.Load(context.Background(), testURI)

	assert.Empty(t, id)
	assert.ErrorContains(t, err, "quota exceeded")
}
