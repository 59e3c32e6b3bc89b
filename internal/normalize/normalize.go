// Package normalize maps loosely typed job records onto canonical rows.
//
// Every helper returns nil instead of failing, so a record of any shape
// produces a row.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cyderes/jobs-ingestion-service/internal/models"
)

// Context carries run-level values copied into every row of a batch.
type Context struct {
	Query      string
	Country    string
	Language   string
	Page       int // 0 when unknown
	NumPages   int // 0 when unknown
	RequestID  string
	Status     string
	StatusCode int
}

// Rows normalizes a batch. All rows share one ingestion timestamp.
func Rows(records []models.RawJobRecord, ctx Context, ingestedAt time.Time) []models.CanonicalJobRow {
	rows := make([]models.CanonicalJobRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row(rec, ctx, ingestedAt))
	}
	return rows
}

// Row normalizes a single record. It never panics: a record that cannot be
// mapped yields a row holding only the run context and the raw record.
func Row(raw models.RawJobRecord, ctx Context, ingestedAt time.Time) (row models.CanonicalJobRow) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("job_id", JobID(raw)).Msg("job record could not be normalized")
			row = contextRow(raw, ctx, ingestedAt)
		}
	}()

	row = contextRow(raw, ctx, ingestedAt)

	row.RequestID = String(firstOf(ctx.RequestID, raw, "request_id"))
	row.Status = String(firstOf(ctx.Status, raw, "status"))
	if row.Status == nil && ctx.StatusCode != 0 {
		row.Status = String(strconv.Itoa(ctx.StatusCode))
	}
	row.Language = String(firstOf(ctx.Language, raw, "language", "job_language"))

	row.DatePosted = Date(raw["date_posted"])
	row.WorkFromHome = Bool(raw["work_from_home"])

	row.JobID = String(first(raw, "job_id", "id", "jobId"))
	row.JobTitle = String(first(raw, "job_title", "title"))
	row.EmployerName = String(first(raw, "company", "employer_name", "company_name", "employer"))
	row.EmployerLogo = String(first(raw, "employer_logo", "company_logo", "logo"))
	row.EmployerWebsite = String(first(raw, "employer_website", "company_url", "website"))
	row.Publisher = String(first(raw, "job_publisher", "publisher"))
	row.EmploymentType = String(first(raw, "job_employment_type", "employment_type"))
	row.EmploymentTypes = List(raw["job_employment_types"])
	row.ApplyLink = String(first(raw, "job_apply_link", "apply_link", "applyUrl"))
	row.ApplyIsDirect = Bool(raw["job_apply_is_direct"])
	row.ApplyOptions = raw["apply_options"]
	row.Description = Truncate(String(first(raw, "body", "job_description", "description")), MaxDescriptionLength)
	row.IsRemote = Bool(first(raw, "job_is_remote", "is_remote", "remote"))

	row.PostedAt = String(first(raw, "job_posted_at", "job_posted_at_date", "post_date", "posted_at"))
	row.PostedAtTimestamp = Int(raw["job_posted_at_timestamp"])
	row.PostedAtDatetime = Timestamp(raw["job_posted_at_datetime_utc"])

	row.City = String(first(raw, "job_city", "city"))
	row.State = String(first(raw, "job_state", "state", "region"))
	row.JobCountry = String(first(raw, "job_country", "country"))
	row.Location = Location(raw)
	row.Latitude = Float(first(raw, "job_latitude", "latitude"))
	row.Longitude = Float(first(raw, "job_longitude", "longitude"))

	row.Benefits = List(raw["job_benefits"])
	row.GoogleLink = String(raw["job_google_link"])
	row.Salary = String(first(raw, "job_salary", "salary"))
	row.MinSalary = Float(first(raw, "job_min_salary", "min_salary"))
	row.MaxSalary = Float(first(raw, "job_max_salary", "max_salary"))
	row.SalaryPeriod = String(first(raw, "job_salary_period", "salary_period"))
	row.Highlights = raw["job_highlights"]
	row.OnetSOC = String(raw["job_onet_soc"])
	row.OnetJobZone = String(raw["job_onet_job_zone"])
	row.Score = Float(raw["score"])

	return row
}

// JobID returns the record's job identifier, or "" when it has none.
func JobID(raw models.RawJobRecord) string {
	if id := String(first(raw, "job_id", "id", "jobId")); id != nil {
		return *id
	}
	return ""
}

// Location joins whichever of city, state and country are present with ", ".
func Location(raw models.RawJobRecord) *string {
	var parts []string
	for _, v := range []interface{}{
		first(raw, "job_city", "city"),
		first(raw, "job_state", "state", "region"),
		first(raw, "job_country", "country"),
	} {
		if s := String(v); s != nil {
			parts = append(parts, *s)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	out := strings.Join(parts, ", ")
	return &out
}

func contextRow(raw models.RawJobRecord, ctx Context, ingestedAt time.Time) models.CanonicalJobRow {
	row := models.CanonicalJobRow{
		IngestedAt: FormatTimestamp(ingestedAt),
		Query:      String(ctx.Query),
		Country:    String(ctx.Country),
		Raw:        raw,
	}
	if ctx.Page > 0 {
		row.Page = Int(ctx.Page)
	}
	if ctx.NumPages > 0 {
		row.NumPages = Int(ctx.NumPages)
	}
	return row
}

// first returns the value of the first key that is present, not null and not
// a blank string.
func first(raw models.RawJobRecord, keys ...string) interface{} {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

// firstOf prefers a run-level value over the record's own keys.
func firstOf(preferred string, raw models.RawJobRecord, keys ...string) interface{} {
	if strings.TrimSpace(preferred) != "" {
		return preferred
	}
	return first(raw, keys...)
}
