// Package store persists the explorer's product memory: runs, advertisers,
// ads, extractions, image fingerprints, semantic clusters, and derived
// product concepts. All writes are idempotent upserts so that re-running any
// pass for the same run id converges to the same state.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/adscope/explorer-cli/internal/config"
	"github.com/adscope/explorer-cli/internal/model"
)

// Store defines the persistence interface for the explorer pipeline.
type Store interface {
	// Runs
	InsertRun(ctx context.Context, run model.Run) (bool, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Advertisers (ingest)
	GetAdvertiser(ctx context.Context, advertiserID string) (*model.Advertiser, error)
	InsertAdvertiser(ctx context.Context, adv model.Advertiser) error
	UpdateAdvertiserProfile(ctx context.Context, adv model.Advertiser) error
	TouchAdvertiser(ctx context.Context, advertiserID, lastSeenAt string) error
	InsertAdvertiserHistory(ctx context.Context, adv model.Advertiser, observedAt string) error
	MarkDormantAdvertisers(ctx context.Context, cutoff string) (int, error)

	// Ads and per-run snapshots (ingest)
	UpsertAd(ctx context.Context, ad model.Ad) (bool, error)
	InsertSnapshot(ctx context.Context, snap model.Snapshot) (bool, error)
	ListSnapshots(ctx context.Context, runID string) ([]model.Snapshot, error)
	ListUnextractedSnapshots(ctx context.Context, runID string) ([]model.Snapshot, error)

	// Extractions
	UpsertExtraction(ctx context.Context, ex model.Extraction) error
	ListExtractions(ctx context.Context, runID string) ([]model.Extraction, error)
	DistinctNames(ctx context.Context, runID string) ([]string, error)
	NameCounts(ctx context.Context, runID string) (map[string]int, error)

	// Image fingerprints
	ImageCache(ctx context.Context) (map[string]string, error)
	UpsertFingerprints(ctx context.Context, fps []model.ImageFingerprint) error
	InsertAdMedia(ctx context.Context, rows []model.AdMedia) error
	AdMediaSeen(ctx context.Context, runID string) (map[string]struct{}, error)
	AdHashes(ctx context.Context, runID string) (map[string]string, error)

	// Semantic map
	UpsertSemanticEntries(ctx context.Context, entries []model.SemanticEntry) error
	SemanticMap(ctx context.Context, runID string) (map[string]model.SemanticEntry, error)

	// Product concepts
	UpsertProductConcept(ctx context.Context, pc model.ProductConcept) error
	UpsertObservation(ctx context.Context, obs model.Observation) error
	UpsertAdAssignment(ctx context.Context, a model.AdAssignment) error
	UpsertAdvertiserProduct(ctx context.Context, ap model.AdvertiserProduct) error
	GetProduct(ctx context.Context, productID string) (*model.ProductConcept, error)
	Winners(ctx context.Context, runID string, limit int) ([]model.Winner, error)
	SampleAdIDs(ctx context.Context, runID, productID string, limit int) ([]string, error)

	// Advertiser state
	UpsertAdvertiserRunStats(ctx context.Context, st model.AdvertiserRunStats) error
	GetAdvertiserState(ctx context.Context, advertiserID string) (*model.AdvertiserState, error)
	UpsertAdvertiserState(ctx context.Context, st model.AdvertiserState) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// MediaKey is the composite lookup key for AdMediaSeen.
func MediaKey(adID, imageURL string) string {
	return adID + "|" + imageURL
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Open constructs a Store from config, selecting the driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "explorer.db"
		}
		return NewSQLite(path)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires store.database_url")
		}
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
