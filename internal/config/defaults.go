package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"upstream.search_url":  "https://jsearch.p.rapidapi.com/search",
		"upstream.detail_url":  "https://jsearch.p.rapidapi.com/job-details",
		"upstream.timeout":     "10s",
		"upstream.retry_count": 3,
		"upstream.retry_delay": "1s",

		"ingestion.default_query":   "software engineer",
		"ingestion.default_country": "GB",
		"ingestion.default_pages":   1,
		"ingestion.max_pages":       20,
		"ingestion.concurrency":     5,
		"ingestion.group_pause":     "200ms",

		"staging.provider": "gcs",
		"staging.prefix":   "staging/jsearch",

		"warehouse.provider":   "bigquery",
		"warehouse.project_id": "job-recommendations-app",
		"warehouse.dataset":    "jobs_ds",
		"warehouse.table":      "jobs_jsearch_raw",
		"warehouse.location":   "europe-north1",

		"storage.type":             "memory",
		"storage.table_name":       "ingestion_runs",
		"storage.mongodb_database": "ingestion",

		"aws.region": "us-west-2",

		"server.port":          8080,
		"server.read_timeout":  "15s",
		"server.write_timeout": "5m",

		"schedule.pages": 1,

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return err
		}
	}
	return nil
}
