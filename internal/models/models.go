package models

import "time"

// RawJobRecord is one job posting as returned by the upstream API. Its shape
// varies between the search and detail endpoints and between records, so no
// field is assumed to exist or to have a particular type.
type RawJobRecord map[string]interface{}

// Clone returns a shallow copy of the record.
func (r RawJobRecord) Clone() RawJobRecord {
	out := make(RawJobRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CanonicalJobRow represents a job posting after normalization. Every field is
// nullable and is emitted as JSON null when absent.
type CanonicalJobRow struct {
	IngestedAt string  `json:"ingested_at"`
	RequestID  *string `json:"request_id"`
	Status     *string `json:"status"`
	Query      *string `json:"search_query"`
	Page       *int64  `json:"page"`
	NumPages   *int64  `json:"num_pages"`
	Country    *string `json:"country"`
	Language   *string `json:"language"`

	DatePosted   *string `json:"date_posted"`
	WorkFromHome *bool   `json:"work_from_home"`

	JobID           *string `json:"job_id"`
	JobTitle        *string `json:"job_title"`
	EmployerName    *string `json:"employer_name"`
	EmployerLogo    *string `json:"employer_logo"`
	EmployerWebsite *string `json:"employer_website"`
	Publisher       *string `json:"job_publisher"`
	EmploymentType  *string `json:"job_employment_type"`
	EmploymentTypes *string `json:"job_employment_types"`
	ApplyLink       *string `json:"job_apply_link"`
	ApplyIsDirect   *bool   `json:"job_apply_is_direct"`
	ApplyOptions    any     `json:"apply_options"`
	Description     *string `json:"job_description"`
	IsRemote        *bool   `json:"job_is_remote"`

	PostedAt          *string `json:"job_posted_at"`
	PostedAtTimestamp *int64  `json:"job_posted_at_timestamp"`
	PostedAtDatetime  *string `json:"job_posted_at_datetime_utc"`

	Location   *string  `json:"job_location"`
	City       *string  `json:"job_city"`
	State      *string  `json:"job_state"`
	JobCountry *string  `json:"job_country"`
	Latitude   *float64 `json:"job_latitude"`
	Longitude  *float64 `json:"job_longitude"`

	Benefits     *string  `json:"job_benefits"`
	GoogleLink   *string  `json:"job_google_link"`
	Salary       *string  `json:"job_salary"`
	MinSalary    *float64 `json:"job_min_salary"`
	MaxSalary    *float64 `json:"job_max_salary"`
	SalaryPeriod *string  `json:"job_salary_period"`
	Highlights   any      `json:"job_highlights"`
	OnetSOC      *string  `json:"job_onet_soc"`
	OnetJobZone  *string  `json:"job_onet_job_zone"`
	Score        *float64 `json:"score"`

	Raw RawJobRecord `json:"raw_json"`
}

// LoadJobID identifies a warehouse load job that was submitted but not awaited.
type LoadJobID string

// Phase markers reported in a RunSummary.
const (
	PhaseSearch        = "search"
	PhaseSearchDetails = "search+details"
)

// RunSummary is returned to the caller that triggered an ingestion run.
type RunSummary struct {
	RunID         string     `json:"run_id"`
	Query         string     `json:"query"`
	Country       string     `json:"country"`
	Rows          int        `json:"rows"`
	InsertedFile  *string    `json:"inserted_file"`
	LoadJobID     *LoadJobID `json:"load_job_id"`
	Phase         string     `json:"phase"`
	JobsFound     int        `json:"jobs_found"`
	JobsEnriched  int        `json:"jobs_enriched"`
	LoadSucceeded bool       `json:"bigquery_load_success"`
	Message       string     `json:"message,omitempty"`
}

// Run status values.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailure = "failure"
)

// RunRecord tracks one ingestion run in the run history store.
type RunRecord struct {
	ID           string      `json:"id" bson:"_id" dynamodbav:"id"`
	Query        string      `json:"query" bson:"query" dynamodbav:"query"`
	Country      string      `json:"country" bson:"country" dynamodbav:"country"`
	Pages        int         `json:"pages" bson:"pages" dynamodbav:"pages"`
	Enrich       bool        `json:"enrich" bson:"enrich" dynamodbav:"enrich"`
	Status       string      `json:"status" bson:"status" dynamodbav:"status"` // "running", "success", "failure"
	ErrorMessage string      `json:"error_message,omitempty" bson:"error_message,omitempty" dynamodbav:"error_message,omitempty"`
	StartedAt    time.Time   `json:"started_at" bson:"started_at" dynamodbav:"started_at"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty" bson:"finished_at,omitempty" dynamodbav:"finished_at,omitempty"`
	Summary      *RunSummary `json:"summary,omitempty" bson:"summary,omitempty" dynamodbav:"summary,omitempty"`
}
