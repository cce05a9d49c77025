package model

// MatchBasis names the identity-resolution rule that assigned an ad to a
// product concept. Precedence is visual > semantic > text > unknown.
type MatchBasis string

const (
	BasisVisual   MatchBasis = "visual"
	BasisSemantic MatchBasis = "semantic"
	BasisText     MatchBasis = "text"
	BasisUnknown  MatchBasis = "unknown"
)

// UnknownCluster is the sentinel identity for ads that resolve nowhere.
// It is excluded from all ranking and export views.
const UnknownCluster = "unknown_cluster"

// ProductConcept is one derived product identity.
type ProductConcept struct {
	ProductID      string    `json:"product_id"`
	CanonicalName  string    `json:"canonical_name"`
	Category       string    `json:"category"`
	Subcategory    string    `json:"subcategory"`
	Signals        SignalMap `json:"signals"`
	Rationale      Rationale `json:"rationale"`
	CandidateScore float64   `json:"candidate_score"`
	FirstSeenAt    string    `json:"first_seen_at"`
	LastSeenAt     string    `json:"last_seen_at"`
}

// Rationale explains a concept's candidate score.
type Rationale struct {
	Reasons          []string            `json:"reasons"`
	Evidence         map[string][]string `json:"evidence"`
	AvgConfidence    float64             `json:"avg_confidence"`
	AdsCount         int                 `json:"ads_count"`
	AdvertisersCount int                 `json:"advertisers_count"`
}

// Observation is the per-run rollup for one product concept.
type Observation struct {
	RunID            string  `json:"run_id"`
	ProductID        string  `json:"product_id"`
	AdsCount         int     `json:"ads_count"`
	AdvertisersCount int     `json:"advertisers_count"`
	AvgConfidence    float64 `json:"avg_confidence"`
	CreatedAt        string  `json:"created_at"`
}

// AdAssignment records which product an ad resolved to in a run.
type AdAssignment struct {
	RunID        string     `json:"run_id"`
	AdID         string     `json:"ad_id"`
	ProductID    string     `json:"product_id"`
	AdvertiserID string     `json:"advertiser_id"`
	MatchBasis   MatchBasis `json:"match_basis"`
	Confidence   float64    `json:"confidence"`
	CreatedAt    string     `json:"created_at"`
}

// AdvertiserProduct tracks an advertiser selling a product concept.
type AdvertiserProduct struct {
	AdvertiserID string `json:"advertiser_id"`
	ProductID    string `json:"product_id"`
	FirstSeenAt  string `json:"first_seen_at"`
	LastSeenAt   string `json:"last_seen_at"`
	LastRunID    string `json:"last_run_id"`
	Status       string `json:"status"`
}

// SemanticEntry maps one raw product name to its cluster for a run.
type SemanticEntry struct {
	RunID         string `json:"run_id"`
	OriginalName  string `json:"original_name"`
	ClusterID     int    `json:"cluster_id"`
	CanonicalName string `json:"canonical_name"`
}

// Winner is one row of the ranked export view.
type Winner struct {
	ProductID        string    `json:"product_group_id"`
	CanonicalName    string    `json:"normalized_name"`
	Category         string    `json:"category"`
	Subcategory      string    `json:"subcategory"`
	Score            float64   `json:"score_total"`
	AdsCount         int       `json:"ad_count"`
	AdvertisersCount int       `json:"advertiser_count"`
	AvgConfidence    float64   `json:"avg_confidence"`
	Signals          SignalMap `json:"signals"`
	Rationale        Rationale `json:"rationale"`
	SampleAdIDs      []string  `json:"sample_ad_archive_ids,omitempty"`
}
