package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyderes/jobs-ingestion-service/internal/config"
	"github.com/cyderes/jobs-ingestion-service/internal/models"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testRun(id string, offset time.Duration) models.RunRecord {
	return models.RunRecord{
		ID:        id,
		Query:     "go developer",
		Country:   "GB",
		Pages:     1,
		Status:    models.RunStatusRunning,
		StartedAt: baseTime.Add(offset),
	}
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(context.Background(), config.StorageConfig{Type: "memory"}, config.AWSConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	_, err = NewStorage(context.Background(), config.StorageConfig{Type: "cassandra"}, config.AWSConfig{})
	assert.EqualError(t, err, "unsupported storage type: cassandra")

	_, err = NewStorage(context.Background(), config.StorageConfig{Type: "mongodb"}, config.AWSConfig{})
	assert.ErrorContains(t, err, "MONGODB_URI")

	_, err = NewStorage(context.Background(), config.StorageConfig{Type: "postgresql"}, config.AWSConfig{})
	assert.ErrorContains(t, err, "POSTGRES_URI")
}

func TestDynamoDBAWSConfig(t *testing.T) {
	shared := config.AWSConfig{Region: "eu-west-1", Endpoint: "http://localstack:4566"}

	got := dynamoDBAWSConfig(config.StorageConfig{DynamoDBEndpoint: "http://dynamodb-local:8000"}, shared)
	assert.Equal(t, config.AWSConfig{Region: "eu-west-1", Endpoint: "http://dynamodb-local:8000"}, got)
	assert.Equal(t, "http://localstack:4566", shared.Endpoint)

	assert.Equal(t, shared, dynamoDBAWSConfig(config.StorageConfig{}, shared))
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	latest, err := LatestRun(ctx, s)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, s.SaveRun(ctx, testRun("a", 0)))
	require.NoError(t, s.SaveRun(ctx, testRun("b", time.Minute)))
	require.NoError(t, s.SaveRun(ctx, testRun("c", -time.Minute)))

	finished := baseTime.Add(2 * time.Minute)
	updated := testRun("a", 0)
	updated.Status = models.RunStatusSuccess
	updated.FinishedAt = &finished
	require.NoError(t, s.SaveRun(ctx, updated))

	run, err := s.GetRun(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.RunStatusSuccess, run.Status)
	assert.Equal(t, finished, *run.FinishedAt)

	missing, err := s.GetRun(ctx, "zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, "a", runs[1].ID)

	runs, err = s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	latest, err = LatestRun(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)
	assert.NoError(t, s.Close())
}

// fakeDynamoDB is an in-memory stand-in for the DynamoDB API
type fakeDynamoDB struct {
	dynamodbiface.DynamoDBAPI
	tableExists bool
	created     *dynamodb.CreateTableInput
	items       map[string]map[string]*dynamodb.AttributeValue
	putErr      error
}

func newFakeDynamoDB(exists bool) *fakeDynamoDB {
	return &fakeDynamoDB{tableExists: exists, items: map[string]map[string]*dynamodb.AttributeValue{}}
}

func (f *fakeDynamoDB) DescribeTableWithContext(ctx aws.Context, in *dynamodb.DescribeTableInput, opts ...request.Option) (*dynamodb.DescribeTableOutput, error) {
	if !f.tableExists {
		return nil, awserr.New(dynamodb.ErrCodeResourceNotFoundException, "not found", nil)
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (f *fakeDynamoDB) CreateTableWithContext(ctx aws.Context, in *dynamodb.CreateTableInput, opts ...request.Option) (*dynamodb.CreateTableOutput, error) {
	f.created = in
	f.tableExists = true
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeDynamoDB) WaitUntilTableExistsWithContext(ctx aws.Context, in *dynamodb.DescribeTableInput, opts ...request.WaiterOption) error {
	return nil
}

func (f *fakeDynamoDB) PutItemWithContext(ctx aws.Context, in *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items[aws.StringValue(in.Item["id"].S)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamoDB) GetItemWithContext(ctx aws.Context, in *dynamodb.GetItemInput, opts ...request.Option) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[aws.StringValue(in.Key["id"].S)]}, nil
}

func (f *fakeDynamoDB) ScanPagesWithContext(ctx aws.Context, in *dynamodb.ScanInput, fn func(*dynamodb.ScanOutput, bool) bool, opts ...request.Option) error {
	var page []map[string]*dynamodb.AttributeValue
	for _, item := range f.items {
		page = append(page, item)
	}
	// split into two pages to exercise pagination
	half := len(page) / 2
	if fn(&dynamodb.ScanOutput{Items: page[:half]}, false) {
		fn(&dynamodb.ScanOutput{Items: page[half:]}, true)
	}
	return nil
}

func TestDynamoDBStorage_CreatesMissingTable(t *testing.T) {
	client := newFakeDynamoDB(false)

	_, err := NewDynamoDBStorage(context.Background(), client, "ingestion_runs")

	require.NoError(t, err)
	require.NotNil(t, client.created)
	assert.Equal(t, "ingestion_runs", aws.StringValue(client.created.TableName))
	assert.Equal(t, dynamodb.ScalarAttributeTypeS, aws.StringValue(client.created.AttributeDefinitions[0].AttributeType))
}

func TestDynamoDBStorage_KeepsExistingTable(t *testing.T) {
	client := newFakeDynamoDB(true)

	_, err := NewDynamoDBStorage(context.Background(), client, "ingestion_runs")

	require.NoError(t, err)
	assert.Nil(t, client.created)
}

func TestDynamoDBStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeDynamoDB(true)
	s, err := NewDynamoDBStorage(ctx, client, "ingestion_runs")
	require.NoError(t, err)

	file := "gs://bucket/key.jsonl"
	finished := baseTime.Add(time.Minute)
	run := testRun("run-1", 0)
	run.Status = models.RunStatusSuccess
	run.FinishedAt = &finished
	run.Summary = &models.RunSummary{RunID: "run-1", Rows: 4, InsertedFile: &file, Phase: models.PhaseSearch, JobsFound: 4}
	require.NoError(t, s.SaveRun(ctx, run))
	for i := 2; i <= 4; i++ {
		require.NoError(t, s.SaveRun(ctx, testRun(fmt.Sprintf("run-%d", i), time.Duration(i)*time.Minute)))
	}

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.RunStatusSuccess, got.Status)
	assert.True(t, finished.Equal(*got.FinishedAt))
	require.NotNil(t, got.Summary)
	assert.Equal(t, file, *got.Summary.InsertedFile)
	assert.Nil(t, got.Summary.LoadJobID)

	missing, err := s.GetRun(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	runs, err := s.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"run-4", "run-3", "run-2"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
}

func TestDynamoDBStorage_SaveError(t *testing.T) {
	client := newFakeDynamoDB(true)
	client.putErr = errors.New("throttled")
	s, err := NewDynamoDBStorage(context.Background(), client, "ingestion_runs")
	require.NoError(t, err)

	err = s.SaveRun(context.Background(), testRun("x", 0))
	assert.ErrorContains(t, err, "failed to store run x: throttled")
}

// fakeRow feeds fixed values into scanRun
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *int:
			*p = r.values[i].(int)
		case *bool:
			*p = r.values[i].(bool)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case *sql.NullTime:
			if r.values[i] != nil {
				*p = sql.NullTime{Time: r.values[i].(time.Time), Valid: true}
			}
		case *[]byte:
			if r.values[i] != nil {
				*p = r.values[i].([]byte)
			}
		}
	}
	return nil
}

func TestScanRun(t *testing.T) {
	summary, err := json.Marshal(models.RunSummary{RunID: "r", Rows: 2, Phase: models.PhaseSearchDetails, LoadSucceeded: true})
	require.NoError(t, err)
	finished := baseTime.Add(time.Minute)

	run, err := scanRun(fakeRow{values: []any{"r", "q", "GB", 2, true, "success", "", baseTime, finished, summary}})

	require.NoError(t, err)
	assert.Equal(t, "r", run.ID)
	assert.Equal(t, 2, run.Pages)
	assert.True(t, run.Enrich)
	assert.Equal(t, finished, *run.FinishedAt)
	require.NotNil(t, run.Summary)
	assert.Equal(t, models.PhaseSearchDetails, run.Summary.Phase)
	assert.True(t, run.Summary.LoadSucceeded)

	run, err = scanRun(fakeRow{values: []any{"r", "q", "GB", 1, false, "running", "", baseTime, nil, nil}})
	require.NoError(t, err)
	assert.Nil(t, run.FinishedAt)
	assert.Nil(t, run.Summary)

	_, err = scanRun(fakeRow{err: sql.ErrNoRows})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
