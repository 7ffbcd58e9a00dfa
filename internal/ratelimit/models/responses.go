package models

// StatsResponse summarizes limiter state for the get_metrics tool.
type StatsResponse struct {
	Enabled           bool         `json:"enabled"`
	Policy            BucketPolicy `json:"policy"`
	RequestsPerMinute int          `json:"requests_per_minute"`
	ActiveBuckets     int          `json:"active_buckets"`
	Evictions         uint64       `json:"evictions"`
}
