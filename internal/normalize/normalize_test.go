package normalize

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyderes/jobs-ingestion-service/internal/models"
)

var ingestedAt = time.Date(2024, 3, 5, 10, 30, 0, 123000000, time.UTC)

func decode(t *testing.T, body string) models.RawJobRecord {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var rec models.RawJobRecord
	require.NoError(t, dec.Decode(&rec))
	return rec
}

func TestRow_MapsSearchRecord(t *testing.T) {
	raw := decode(t, `{
		"job_id": "abc123",
		"job_title": "  Go Engineer ",
		"employer_name": "Acme",
		"job_publisher": "LinkedIn",
		"job_employment_type": "FULLTIME",
		"job_employment_types": ["FULLTIME", " ", "CONTRACTOR"],
		"job_apply_link": "https://apply.example.com",
		"job_apply_is_direct": "yes",
		"apply_options": [{"publisher": "Acme"}],
		"job_description": "Build things.",
		"job_is_remote": 0,
		"job_posted_at_timestamp": 1709600000,
		"job_posted_at_datetime_utc": "2024-03-05T01:00:00.000Z",
		"date_posted": "2024-03-04T22:00:00-05:00",
		"job_city": "London",
		"job_country": "GB",
		"job_latitude": 51.5072,
		"job_longitude": "-0.1276",
		"job_benefits": ["health_insurance", "paid_time_off"],
		"job_min_salary": 50000,
		"job_max_salary": null,
		"job_salary_period": "YEAR",
		"job_highlights": {"Qualifications": ["Go"]},
		"job_onet_soc": "15113200",
		"score": "0.75"
	}`)

	row := Row(raw, Context{Query: "go", Country: "GB", Page: 1, NumPages: 2, RequestID: "req-1", StatusCode: 200}, ingestedAt)

	assert.Equal(t, "2024-03-05T10:30:00.123Z", row.IngestedAt)
	assert.Equal(t, "req-1", *row.RequestID)
	assert.Equal(t, "200", *row.Status)
	assert.Equal(t, "go", *row.Query)
	assert.Equal(t, int64(1), *row.Page)
	assert.Equal(t, int64(2), *row.NumPages)
	assert.Equal(t, "GB", *row.Country)
	assert.Nil(t, row.Language)

	assert.Equal(t, "2024-03-05", *row.DatePosted)
	assert.Equal(t, "abc123", *row.JobID)
	assert.Equal(t, "Go Engineer", *row.JobTitle)
	assert.Equal(t, "Acme", *row.EmployerName)
	assert.Equal(t, "LinkedIn", *row.Publisher)
	assert.Equal(t, "FULLTIME", *row.EmploymentType)
	assert.Equal(t, "FULLTIME, CONTRACTOR", *row.EmploymentTypes)
	assert.True(t, *row.ApplyIsDirect)
	assert.NotNil(t, row.ApplyOptions)
	assert.Equal(t, "Build things.", *row.Description)
	assert.False(t, *row.IsRemote)
	assert.Equal(t, int64(1709600000), *row.PostedAtTimestamp)
	assert.Equal(t, "2024-03-05T01:00:00.000Z", *row.PostedAtDatetime)
	assert.Equal(t, "London, GB", *row.Location)
	assert.Equal(t, "London", *row.City)
	assert.Nil(t, row.State)
	assert.Equal(t, "GB", *row.JobCountry)
	assert.InDelta(t, 51.5072, *row.Latitude, 1e-9)
	assert.InDelta(t, -0.1276, *row.Longitude, 1e-9)
	assert.Equal(t, "health_insurance, paid_time_off", *row.Benefits)
	assert.Equal(t, 50000.0, *row.MinSalary)
	assert.Nil(t, row.MaxSalary)
	assert.Equal(t, "YEAR", *row.SalaryPeriod)
	assert.NotNil(t, row.Highlights)
	assert.Equal(t, "15113200", *row.OnetSOC)
	assert.Nil(t, row.OnetJobZone)
	assert.Equal(t, 0.75, *row.Score)
}

func TestRow_FieldFallbacks(t *testing.T) {
	raw := models.RawJobRecord{
		"id":           "alt-1",
		"title":        "Analyst",
		"company":      "Globex",
		"company_logo": "https://logo",
		"company_url":  "https://globex",
		"applyUrl":     "https://globex/apply",
		"description":  "desc",
		"remote":       "true",
		"post_date":    "2 days ago",
		"city":         "Leeds",
		"region":       "West Yorkshire",
		"country":      "UK",
		"salary":       "£40k",
		"min_salary":   "40000",
		"job_language": "en",
		"status":       "OK",
		"request_id":   "rec-req",
	}

	row := Row(raw, Context{}, ingestedAt)

	assert.Equal(t, "alt-1", *row.JobID)
	assert.Equal(t, "Analyst", *row.JobTitle)
	assert.Equal(t, "Globex", *row.EmployerName)
	assert.Equal(t, "https://logo", *row.EmployerLogo)
	assert.Equal(t, "https://globex", *row.EmployerWebsite)
	assert.Equal(t, "https://globex/apply", *row.ApplyLink)
	assert.Equal(t, "desc", *row.Description)
	assert.True(t, *row.IsRemote)
	assert.Equal(t, "2 days ago", *row.PostedAt)
	assert.Equal(t, "Leeds, West Yorkshire, UK", *row.Location)
	assert.Equal(t, "West Yorkshire", *row.State)
	assert.Equal(t, "£40k", *row.Salary)
	assert.Equal(t, 40000.0, *row.MinSalary)
	assert.Equal(t, "en", *row.Language)
	assert.Equal(t, "OK", *row.Status)
	assert.Equal(t, "rec-req", *row.RequestID)
	assert.Nil(t, row.Query)
	assert.Nil(t, row.Page)
}

func TestRow_RunContextWins(t *testing.T) {
	raw := models.RawJobRecord{"status": "record", "request_id": "record", "language": "de"}
	row := Row(raw, Context{Status: "OK", RequestID: "run", Language: "en"}, ingestedAt)

	assert.Equal(t, "OK", *row.Status)
	assert.Equal(t, "run", *row.RequestID)
	assert.Equal(t, "en", *row.Language)
}

func TestRow_NeverPanicsOnWrongTypes(t *testing.T) {
	records := []models.RawJobRecord{
		nil,
		{},
		{"job_id": []interface{}{1, 2}, "job_title": map[string]interface{}{"x": 1}},
		{"job_latitude": "north", "job_posted_at_timestamp": "yesterday", "score": true},
		{"job_employment_types": []interface{}{nil, map[string]interface{}{}}, "job_benefits": 12},
		{"date_posted": 20240101, "job_posted_at_datetime_utc": "not a date", "job_is_remote": []interface{}{}},
		{"job_min_salary": "NaN", "job_max_salary": "Infinity", "job_longitude": json.Number("1e400")},
	}

	for i, raw := range records {
		var row models.CanonicalJobRow
		require.NotPanics(t, func() {
			row = Row(raw, Context{Query: "q"}, ingestedAt)
		}, "record %d", i)
		assert.Equal(t, "q", *row.Query)
		assert.Equal(t, raw, row.Raw)
	}

	row := Row(records[3], Context{}, ingestedAt)
	assert.Nil(t, row.Latitude)
	assert.Nil(t, row.PostedAtTimestamp)
	assert.Nil(t, row.Score)

	row = Row(records[4], Context{}, ingestedAt)
	assert.Nil(t, row.EmploymentTypes)
	assert.Equal(t, "12", *row.Benefits)

	row = Row(records[5], Context{}, ingestedAt)
	assert.Equal(t, "20240101", *row.DatePosted)
	assert.Nil(t, row.PostedAtDatetime)
	assert.True(t, *row.IsRemote)

	row = Row(records[6], Context{}, ingestedAt)
	assert.Nil(t, row.MinSalary)
	assert.Nil(t, row.MaxSalary)
	assert.Nil(t, row.Longitude)

	row = Row(records[2], Context{}, ingestedAt)
	assert.Nil(t, row.JobID)
	assert.Nil(t, row.JobTitle)
}

func TestRow_Idempotent(t *testing.T) {
	raw := decode(t, `{"job_id":"1","job_title":"A","job_benefits":["x","y"],"job_latitude":1.5,"date_posted":"2024-01-02"}`)
	ctx := Context{Query: "q", Country: "US", StatusCode: 200}

	first, err := json.Marshal(Row(raw, ctx, ingestedAt))
	require.NoError(t, err)
	second, err := json.Marshal(Row(raw, ctx, ingestedAt))
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
}

func TestRow_RetainsRawRecord(t *testing.T) {
	body := `{"job_id":"1","nested":{"a":[1,2,{"b":null}]},"big":12345678901234567890,"weird key":"  spaced  "}`
	raw := decode(t, body)

	row := Row(raw, Context{}, ingestedAt)

	out, err := json.Marshal(row.Raw)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(out))
	assert.Equal(t, "  spaced  ", row.Raw["weird key"])
}

func TestRow_NullsAreSerialized(t *testing.T) {
	out, err := json.Marshal(Row(models.RawJobRecord{}, Context{}, ingestedAt))
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &fields))
	for _, key := range []string{"job_id", "job_title", "job_location", "score", "apply_options", "job_highlights", "page"} {
		v, ok := fields[key]
		assert.True(t, ok, key)
		assert.Nil(t, v, key)
	}
}

func TestRow_DescriptionTruncation(t *testing.T) {
	exact := strings.Repeat("é", MaxDescriptionLength)
	row := Row(models.RawJobRecord{"job_description": exact}, Context{}, ingestedAt)
	assert.Equal(t, exact, *row.Description)

	over := exact + "x"
	row = Row(models.RawJobRecord{"job_description": over}, Context{}, ingestedAt)
	assert.Equal(t, MaxDescriptionLength, len([]rune(*row.Description)))
	assert.Equal(t, exact, *row.Description)
}

func TestRows_SharesIngestionTimestamp(t *testing.T) {
	rows := Rows([]models.RawJobRecord{{"job_id": "1"}, {"job_id": "2"}, {}}, Context{Query: "q"}, ingestedAt)

	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "2024-03-05T10:30:00.123Z", row.IngestedAt)
	}
	assert.Equal(t, "1", *rows[0].JobID)
	assert.Equal(t, "2", *rows[1].JobID)
	assert.Nil(t, rows[2].JobID)
}

func TestJobID(t *testing.T) {
	assert.Equal(t, "a", JobID(models.RawJobRecord{"job_id": " a ", "id": "b"}))
	assert.Equal(t, "b", JobID(models.RawJobRecord{"job_id": "", "id": "b"}))
	assert.Equal(t, "c", JobID(models.RawJobRecord{"jobId": "c"}))
	assert.Equal(t, "42", JobID(models.RawJobRecord{"id": json.Number("42")}))
	assert.Equal(t, "", JobID(models.RawJobRecord{"id": map[string]interface{}{}}))
	assert.Equal(t, "", JobID(nil))
}

func TestString(t *testing.T) {
	assert.Nil(t, String(nil))
	assert.Nil(t, String("   \n"))
	assert.Nil(t, String([]interface{}{"a"}))
	assert.Nil(t, String(math.NaN()))
	assert.Equal(t, "x", *String(" x "))
	assert.Equal(t, "1.5", *String(1.5))
	assert.Equal(t, "10", *String(json.Number("10")))
	assert.Equal(t, "false", *String(false))
}

func TestBool(t *testing.T) {
	cases := []struct {
		in   interface{}
		want *bool
	}{
		{nil, nil},
		{true, boolPtr(true)},
		{false, boolPtr(false)},
		{"TRUE", boolPtr(true)},
		{"yes", boolPtr(true)},
		{"1", boolPtr(true)},
		{"No", boolPtr(false)},
		{"0", boolPtr(false)},
		{"false", boolPtr(false)},
		{"maybe", boolPtr(true)},
		{"", boolPtr(false)},
		{json.Number("1"), boolPtr(true)},
		{json.Number("0"), boolPtr(false)},
		{json.Number("2"), boolPtr(true)},
		{0.0, boolPtr(false)},
		{map[string]interface{}{}, boolPtr(true)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Bool(tc.in), "%#v", tc.in)
	}
}

func TestInt(t *testing.T) {
	assert.Equal(t, int64(42), *Int(json.Number("42")))
	assert.Equal(t, int64(42), *Int(" 42 "))
	assert.Equal(t, int64(3), *Int(3.9))
	assert.Equal(t, int64(1000), *Int(json.Number("1e3")))
	assert.Equal(t, int64(-7), *Int("-7.2"))
	assert.Nil(t, Int("12abc"))
	assert.Nil(t, Int("NaN"))
	assert.Nil(t, Int(math.Inf(1)))
	assert.Nil(t, Int(true))
	assert.Nil(t, Int(""))
}

func TestFloat(t *testing.T) {
	assert.Equal(t, 1.25, *Float("1.25"))
	assert.Equal(t, 2.0, *Float(json.Number("2")))
	assert.Equal(t, 7.0, *Float(7))
	assert.Nil(t, Float("abc"))
	assert.Nil(t, Float("NaN"))
	assert.Nil(t, Float("-Inf"))
	assert.Nil(t, Float(json.Number("1e400")))
	assert.Nil(t, Float([]interface{}{}))
}

func TestDate(t *testing.T) {
	assert.Equal(t, "2024-01-02", *Date("2024-01-02"))
	assert.Equal(t, "2024-01-02", *Date("2024-01-02T23:59:59Z"))
	assert.Equal(t, "2024-01-03", *Date("2024-01-02T23:00:00-05:00"))
	assert.Equal(t, "2024-01-02", *Date("Jan 2, 2024"))
	assert.Equal(t, "last week", *Date(" last week "))
	assert.Nil(t, Date(""))
	assert.Nil(t, Date(nil))
}

func TestTimestamp(t *testing.T) {
	assert.Equal(t, "2024-01-02T03:04:05.000Z", *Timestamp("2024-01-02T03:04:05Z"))
	assert.Equal(t, "2024-01-02T08:04:05.678Z", *Timestamp("2024-01-02T03:04:05.678-05:00"))
	assert.Equal(t, "2024-01-02T00:00:00.000Z", *Timestamp("2024-01-02"))
	assert.Nil(t, Timestamp("soon"))
	assert.Nil(t, Timestamp(nil))
}

func TestList(t *testing.T) {
	assert.Equal(t, "a, b", *List([]interface{}{"a", " ", nil, "b "}))
	assert.Equal(t, "solo", *List(" solo "))
	assert.Nil(t, List([]interface{}{}))
	assert.Nil(t, List(nil))
}

func TestTruncate(t *testing.T) {
	s := "hello"
	assert.Equal(t, "hel", *Truncate(&s, 3))
	assert.Equal(t, "hello", *Truncate(&s, 5))
	assert.Nil(t, Truncate(nil, 3))
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "Paris, FR", *Location(models.RawJobRecord{"job_city": "Paris", "job_state": " ", "job_country": "FR"}))
	assert.Equal(t, "Texas", *Location(models.RawJobRecord{"state": "Texas"}))
	assert.Nil(t, Location(models.RawJobRecord{"job_city": ""}))
}
