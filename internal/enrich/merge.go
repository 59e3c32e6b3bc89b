package enrich

import (
	"github.com/cyderes/jobs-ingestion-service/internal/models"
	"github.com/cyderes/jobs-ingestion-service/internal/normalize"
)

// CollectIDs returns the distinct, non-empty job ids of records in the order
// they were first seen.
func CollectIDs(records []models.RawJobRecord) []string {
	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		id := normalize.JobID(rec)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Merge overlays each record with the detail sharing its job id. Detail
// fields win; records without an id or without a detail are returned as-is.
// The result has the same length and order as records.
func Merge(records []models.RawJobRecord, details map[string]models.RawJobRecord) []models.RawJobRecord {
	merged := make([]models.RawJobRecord, len(records))
	for i, rec := range records {
		id := normalize.JobID(rec)
		detail, ok := details[id]
		if id == "" || !ok {
			merged[i] = rec
			continue
		}
		out := rec.Clone()
		for k, v := range detail {
			out[k] = v
		}
		merged[i] = out
	}
	return merged
}
