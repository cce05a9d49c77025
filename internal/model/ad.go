package model

// SignalMap records which commercial-intent signals an extraction flagged.
type SignalMap map[string]bool

// EvidenceMap holds the text spans backing each flagged signal.
type EvidenceMap map[string][]string

// Ad is the current state of one ad across runs.
type Ad struct {
	AdID         string `json:"ad_id"`
	AdvertiserID string `json:"advertiser_id"`
	FirstSeenAt  string `json:"first_seen_at"`
	LastSeenAt   string `json:"last_seen_at"`
	IsActive     bool   `json:"is_active"`
	LinkURL      string `json:"link_url,omitempty"`
	Domain       string `json:"domain,omitempty"`
	ContentHash  string `json:"content_hash"`
}

// Snapshot is the per-run observation of one ad.
type Snapshot struct {
	RunID        string `json:"run_id"`
	AdID         string `json:"ad_id"`
	AdvertiserID string `json:"advertiser_id"`
	ObservedAt   string `json:"observed_at"`
	IsActive     bool   `json:"is_active"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	LinkURL      string `json:"link_url,omitempty"`
	Domain       string `json:"domain,omitempty"`
	Title        string `json:"title,omitempty"`
	BodyText     string `json:"body_text,omitempty"`
	CTAType      string `json:"cta_type,omitempty"`
	QueryMatched string `json:"query_matched,omitempty"`
	ContentHash  string `json:"content_hash"`
}

// Extraction is the structured output of the ad extractor for one ad in one
// run: a product-name guess, a closed-taxonomy category, boolean commercial
// signals with evidence spans, and a confidence in [0,1]. The aggregator
// consumes these rows read-only.
type Extraction struct {
	RunID       string      `json:"run_id"`
	AdID        string      `json:"ad_id"`
	NameGuess   string      `json:"product_name_guess"`
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory"`
	Signals     SignalMap   `json:"signals"`
	Evidence    EvidenceMap `json:"evidence"`
	Confidence  float64     `json:"confidence"`
}

// AdMedia links an ad to one fingerprinted image in one run.
type AdMedia struct {
	RunID    string `json:"run_id"`
	AdID     string `json:"ad_id"`
	ImageURL string `json:"image_url"`
	DHash64  string `json:"dhash64"`
}

// ImageFingerprint is a cached URL -> perceptual hash entry. Rows are created
// on first computation and never mutated.
type ImageFingerprint struct {
	ImageURL  string `json:"image_url"`
	DHash64   string `json:"dhash64"`
	FetchedAt string `json:"fetched_at"`
}
