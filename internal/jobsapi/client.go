// Package jobsapi talks to the paginated job search API: one client serves
// both the search endpoint and the per-job detail endpoint.
package jobsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cyderes/jobs-ingestion-service/internal/config"
	"github.com/cyderes/jobs-ingestion-service/internal/metrics"
	"github.com/cyderes/jobs-ingestion-service/internal/models"
)

const maxLoggedBody = 512

// Client handles requests to the job search API
type Client struct {
	config     config.UpstreamConfig
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new job search API client
func NewClient(cfg config.UpstreamConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryCount < 1 {
		cfg.RetryCount = 1
	}
	return &Client{
		config: cfg,
		apiKey: strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Ready reports a missing API key without making a request.
func (c *Client) Ready() error {
	if c.apiKey == "" {
		return config.ErrMissingAPIKey
	}
	return nil
}

// SearchRequest selects what to search for.
type SearchRequest struct {
	Query   string
	Country string
	Pages   int
}

// SearchResult accumulates every fetched page in page order.
type SearchResult struct {
	Jobs         []models.RawJobRecord
	StatusCode   int
	Status       string
	RequestID    string
	PagesFetched int
}

// NoJobs reports the explicit "zero jobs found" outcome: the first page was
// valid but empty.
func (r *SearchResult) NoJobs() bool {
	return len(r.Jobs) == 0
}

type page struct {
	jobs       []models.RawJobRecord
	statusCode int
	status     string
	requestID  string
}

// Search fetches pages 1..req.Pages, one request per page, and concatenates
// the results. An empty first page ends the search with zero jobs; a later
// empty page contributes nothing and the remaining pages are still fetched.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}

	pages := req.Pages
	if pages < 1 {
		pages = 1
	}

	result := &SearchResult{StatusCode: http.StatusOK}
	for n := 1; n <= pages; n++ {
		p, err := c.fetchPage(ctx, req, n)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}

		result.PagesFetched++
		result.StatusCode = p.statusCode
		if p.status != "" {
			result.Status = p.status
		}
		if p.requestID != "" {
			result.RequestID = p.requestID
		}

		if len(p.jobs) == 0 {
			log.Info().Str("query", req.Query).Str("country", req.Country).Int("page", n).
				Msg("job search returned an empty page")
			if n == 1 {
				break
			}
			continue
		}
		result.Jobs = append(result.Jobs, p.jobs...)
	}

	return result, nil
}

// fetchPage fetches one page with retry logic. Quota and malformed-body
// errors are returned immediately.
func (c *Client) fetchPage(ctx context.Context, req SearchRequest, n int) (*page, error) {
	var lastErr error

	for attempt := 0; attempt < c.config.RetryCount; attempt++ {
		p, err := c.fetchPageOnce(ctx, req, n)
		if err == nil {
			return p, nil
		}
		if !retryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt < c.config.RetryCount-1 {
			waitTime := time.Duration(attempt+1) * c.config.RetryDelay
			log.Warn().Err(err).Int("page", n).Int("attempt", attempt+1).Dur("wait", waitTime).
				Msg("job search request failed, retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitTime):
			}
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.RetryCount, lastErr)
}

func (c *Client) fetchPageOnce(ctx context.Context, req SearchRequest, n int) (*page, error) {
	params := url.Values{}
	params.Set("query", req.Query)
	if req.Country != "" {
		params.Set("country", req.Country)
	}
	params.Set("page", strconv.Itoa(n))
	params.Set("num_pages", "1")

	status, body, err := c.get(ctx, c.config.SearchURL, params)
	metrics.UpstreamRequests.WithLabelValues("search", metrics.StatusClass(status)).Inc()
	if err != nil {
		return nil, err
	}

	if status < 200 || status > 299 {
		if isQuotaStatus(status) {
			return nil, &QuotaError{StatusCode: status, Body: snippet(body)}
		}
		return nil, &StatusError{StatusCode: status, Body: snippet(body)}
	}

	envelope, data, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	list, ok := data.([]interface{})
	if !ok {
		return nil, ErrMalformedResponse
	}

	p := &page{
		jobs:       make([]models.RawJobRecord, 0, len(list)),
		statusCode: status,
		status:     stringField(envelope, "status"),
		requestID:  stringField(envelope, "request_id"),
	}
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			log.Warn().Int("page", n).Int("index", i).Msg("skipping non-object job search result")
			continue
		}
		p.jobs = append(p.jobs, models.RawJobRecord(m))
	}
	return p, nil
}

// Detail fetches one job's extended record. It never fails: every problem is
// logged and reported as ok == false.
func (c *Client) Detail(ctx context.Context, jobID, country string) (models.RawJobRecord, bool) {
	params := url.Values{}
	params.Set("job_id", jobID)
	if country != "" {
		params.Set("country", country)
	}

	status, body, err := c.get(ctx, c.config.DetailURL, params)
	metrics.UpstreamRequests.WithLabelValues("detail", metrics.StatusClass(status)).Inc()
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("job detail request failed")
		return nil, false
	}
	if status < 200 || status > 299 {
		log.Warn().Str("job_id", jobID).Int("status", status).Str("body", snippet(body)).
			Msg("job detail request returned an error status")
		return nil, false
	}

	_, data, err := decodeEnvelope(body)
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Int("status", status).Str("body", snippet(body)).
			Msg("job detail response could not be decoded")
		return nil, false
	}

	switch d := data.(type) {
	case []interface{}:
		for _, item := range d {
			if m, ok := item.(map[string]interface{}); ok {
				return models.RawJobRecord(m), true
			}
		}
	case map[string]interface{}:
		return models.RawJobRecord(d), true
	}

	log.Warn().Str("job_id", jobID).Int("status", status).Msg("job detail response contained no record")
	return nil, false
}

// get performs one bounded GET. A non-nil error means no response was read;
// status is 0 in that case.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (int, []byte, error) {
	if c.apiKey == "" {
		return 0, nil, config.ErrMissingAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.config.APIHost != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
		req.Header.Set("X-RapidAPI-Host", strings.TrimSpace(c.config.APIHost))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}

// decodeEnvelope returns the top-level object and its "data" member.
func decodeEnvelope(body []byte) (map[string]interface{}, interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	envelope, ok := raw.(map[string]interface{})
	if !ok {
		return nil, nil, ErrMalformedResponse
	}
	data, ok := envelope["data"]
	if !ok {
		return nil, nil, ErrMalformedResponse
	}
	return envelope, data, nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func snippet(body []byte) string {
	if len(body) > maxLoggedBody {
		return string(body[:maxLoggedBody]) + "..."
	}
	return string(body)
}
