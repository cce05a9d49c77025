// Package model defines the domain types shared across the explorer pipeline.
package model

// Run is one scraping run, keyed by the timestamp-derived run id.
type Run struct {
	RunID             string         `json:"run_id"`
	Timestamp         string         `json:"timestamp"`
	QueriesLoaded     int            `json:"queries_loaded"`
	RawCount          int            `json:"raw_count"`
	DedupCount        int            `json:"dedup_count"`
	UniqueAdvertisers int            `json:"unique_advertisers"`
	ScrapeJob         string         `json:"scrape_job,omitempty"`
	Params            map[string]any `json:"params,omitempty"`
}

// RunSummary is the summary.json document written by the scraper.
type RunSummary struct {
	Timestamp         string         `json:"timestamp"`
	QueriesLoaded     int            `json:"queries_loaded"`
	RawCount          int            `json:"raw_count"`
	DedupCount        int            `json:"dedup_count"`
	UniqueAdvertisers int            `json:"unique_advertisers"`
	ScrapeJob         string         `json:"apify_run"`
	Params            map[string]any `json:"params"`
}
