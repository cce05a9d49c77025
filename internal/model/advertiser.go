package model

// AdvertiserStatus is the lifecycle state of an advertiser.
type AdvertiserStatus string

const (
	AdvertiserNew         AdvertiserStatus = "new"
	AdvertiserMonitoring  AdvertiserStatus = "monitoring"
	AdvertiserDormant     AdvertiserStatus = "dormant"
	AdvertiserWinner      AdvertiserStatus = "winner"
	AdvertiserBlacklisted AdvertiserStatus = "blacklisted"
)

// Advertiser is the current state of one advertiser page.
type Advertiser struct {
	AdvertiserID string   `json:"advertiser_id"`
	PageName     string   `json:"page_name"`
	ProfileURI   string   `json:"profile_uri,omitempty"`
	LikeCount    int      `json:"like_count,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	FirstSeenAt  string   `json:"first_seen_at"`
	LastSeenAt   string   `json:"last_seen_at"`
	Status       string   `json:"status"`
}

// AdvertiserRunStats aggregates one advertiser's ads within a run.
type AdvertiserRunStats struct {
	RunID           string `json:"run_id"`
	AdvertiserID    string `json:"advertiser_id"`
	TotalAds        int    `json:"total_ads"`
	AdsWithCOD      int    `json:"ads_with_cod"`
	AdsWithShipping int    `json:"ads_with_free_shipping"`
	MainCategory    string `json:"main_category"`
	CreatedAt       string `json:"created_at"`
}

// AdvertiserState is the tracked lifecycle record for one advertiser.
type AdvertiserState struct {
	AdvertiserID  string           `json:"advertiser_id"`
	CurrentStatus AdvertiserStatus `json:"current_status"`
	FirstSeenAt   string           `json:"first_seen_at"`
	LastSeenAt    string           `json:"last_seen_at"`
	TotalRunsSeen int              `json:"total_runs_seen"`
	LastRunID     string           `json:"last_run_id"`
	UpdatedAt     string           `json:"updated_at"`
}
