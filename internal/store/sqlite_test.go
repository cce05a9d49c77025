package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adscope/explorer-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertRunIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := model.Run{
		RunID:             "20260815_1200",
		Timestamp:         "2026-08-15T12:00:00Z",
		QueriesLoaded:     10,
		RawCount:          500,
		DedupCount:        420,
		UniqueAdvertisers: 88,
		ScrapeJob:         "job-abc",
		Params:            map[string]any{"country": "MX"},
	}

	inserted, err := s.InsertRun(ctx, run)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertRun(ctx, run)
	require.NoError(t, err)
	assert.False(t, inserted)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "20260815_1200", runs[0].RunID)
	assert.Equal(t, 420, runs[0].DedupCount)
	assert.Equal(t, "MX", runs[0].Params["country"])
}

func TestUpsertAdMergesSeenWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := model.Ad{
		AdID:         "ad-1",
		AdvertiserID: "page-1",
		FirstSeenAt:  "2026-08-10T00:00:00Z",
		LastSeenAt:   "2026-08-10T00:00:00Z",
		IsActive:     true,
		ContentHash:  "h1",
	}
	isNew, err := s.UpsertAd(ctx, first)
	require.NoError(t, err)
	assert.True(t, isNew)

	// A later run observes the same ad: first_seen must not move forward,
	// last_seen must not move backward.
	later := first
	later.FirstSeenAt = "2026-08-15T00:00:00Z"
	later.LastSeenAt = "2026-08-15T00:00:00Z"
	later.IsActive = false
	isNew, err = s.UpsertAd(ctx, later)
	require.NoError(t, err)
	assert.False(t, isNew)

	earlier := first
	earlier.FirstSeenAt = "2026-08-01T00:00:00Z"
	earlier.LastSeenAt = "2026-08-01T00:00:00Z"
	_, err = s.UpsertAd(ctx, earlier)
	require.NoError(t, err)

	var firstSeen, lastSeen string
	var active bool
	row := s.db.QueryRow(`SELECT first_seen_at, last_seen_at, is_active FROM ads WHERE ad_id = 'ad-1'`)
	require.NoError(t, row.Scan(&firstSeen, &lastSeen, &active))
	assert.Equal(t, "2026-08-01T00:00:00Z", firstSeen)
	assert.Equal(t, "2026-08-15T00:00:00Z", lastSeen)
	assert.True(t, active)
}

func TestSnapshotInsertOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertAd(ctx, model.Ad{AdID: "ad-1", AdvertiserID: "page-1", FirstSeenAt: "2026-08-15T00:00:00Z", LastSeenAt: "2026-08-15T00:00:00Z", ContentHash: "h"})
	require.NoError(t, err)

	snap := model.Snapshot{
		RunID:       "run-1",
		AdID:        "ad-1",
		ObservedAt:  "2026-08-15T00:00:00Z",
		IsActive:    true,
		Title:       "Zapatillas Running",
		BodyText:    "Envio gratis a todo el pais",
		ContentHash: "h",
	}
	ok, err := s.InsertSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.InsertSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.False(t, ok)

	snaps, err := s.ListSnapshots(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "page-1", snaps[0].AdvertiserID)
	assert.Equal(t, "Zapatillas Running", snaps[0].Title)
}

func TestUnextractedSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, adID := range []string{"ad-1", "ad-2"} {
		_, err := s.UpsertAd(ctx, model.Ad{AdID: adID, AdvertiserID: "page-1", FirstSeenAt: "2026-08-15T00:00:00Z", LastSeenAt: "2026-08-15T00:00:00Z", ContentHash: "h"})
		require.NoError(t, err)
		_, err = s.InsertSnapshot(ctx, model.Snapshot{RunID: "run-1", AdID: adID, ObservedAt: "2026-08-15T00:00:00Z", ContentHash: "h"})
		require.NoError(t, err)
	}

	require.NoError(t, s.UpsertExtraction(ctx, model.Extraction{
		RunID: "run-1", AdID: "ad-1", NameGuess: "zapatillas",
		Signals: model.SignalMap{"cod": true}, Evidence: model.EvidenceMap{}, Confidence: 0.8,
	}))

	pending, err := s.ListUnextractedSnapshots(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ad-2", pending[0].AdID)
}

func TestExtractionRoundTripAndNameCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ex := model.Extraction{
		RunID:       "run-1",
		AdID:        "ad-1",
		NameGuess:   "Crema Facial",
		Category:    "belleza",
		Subcategory: "cuidado_piel",
		Signals:     model.SignalMap{"cod": true, "free_shipping": false},
		Evidence:    model.EvidenceMap{"cod": {"pago contra entrega"}},
		Confidence:  0.85,
	}
	require.NoError(t, s.UpsertExtraction(ctx, ex))

	// Overwrite on re-run.
	ex.Confidence = 0.9
	require.NoError(t, s.UpsertExtraction(ctx, ex))

	require.NoError(t, s.UpsertExtraction(ctx, model.Extraction{
		RunID: "run-1", AdID: "ad-2", NameGuess: "Crema Facial",
		Signals: model.SignalMap{}, Evidence: model.EvidenceMap{}, Confidence: 0.7,
	}))

	got, err := s.ListExtractions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	counts, err := s.NameCounts(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Crema Facial": 2}, counts)

	names, err := s.DistinctNames(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Crema Facial"}, names)
}

func TestImageCacheAndAdMedia(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fps := []model.ImageFingerprint{
		{ImageURL: "https://cdn/a.jpg", DHash64: "00ff00ff00ff00ff", FetchedAt: "2026-08-15T00:00:00Z"},
		{ImageURL: "https://cdn/b.jpg", DHash64: "1234567890abcdef", FetchedAt: "2026-08-15T00:00:00Z"},
	}
	require.NoError(t, s.UpsertFingerprints(ctx, fps))

	cache, err := s.ImageCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, "00ff00ff00ff00ff", cache["https://cdn/a.jpg"])
	assert.Len(t, cache, 2)

	media := []model.AdMedia{
		{RunID: "run-1", AdID: "ad-1", ImageURL: "https://cdn/a.jpg", DHash64: "00ff00ff00ff00ff"},
		{RunID: "run-1", AdID: "ad-1", ImageURL: "https://cdn/b.jpg", DHash64: "1234567890abcdef"},
		{RunID: "run-1", AdID: "ad-2", ImageURL: "https://cdn/a.jpg", DHash64: "00ff00ff00ff00ff"},
	}
	require.NoError(t, s.InsertAdMedia(ctx, media))
	require.NoError(t, s.InsertAdMedia(ctx, media))

	seen, err := s.AdMediaSeen(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, seen, 3)
	_, ok := seen[MediaKey("ad-1", "https://cdn/a.jpg")]
	assert.True(t, ok)

	hashes, err := s.AdHashes(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, hashes, 2)
	assert.Equal(t, "00ff00ff00ff00ff", hashes["ad-2"])
}

func TestSemanticMapRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entries := []model.SemanticEntry{
		{RunID: "run-1", OriginalName: "zapatillas deportivas", ClusterID: 0, CanonicalName: "zapatillas running"},
		{RunID: "run-1", OriginalName: "zapatillas running", ClusterID: 0, CanonicalName: "zapatillas running"},
	}
	require.NoError(t, s.UpsertSemanticEntries(ctx, entries))
	require.NoError(t, s.UpsertSemanticEntries(ctx, entries))

	m, err := s.SemanticMap(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, m, 2)
	assert.Equal(t, 0, m["zapatillas deportivas"].ClusterID)
	assert.Equal(t, "zapatillas running", m["zapatillas deportivas"].CanonicalName)
}

func TestProductConceptSeenWindowMerge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pc := model.ProductConcept{
		ProductID:      "vhash:00ff00ff00ff00ff",
		CanonicalName:  "crema facial",
		Category:       "belleza",
		Signals:        model.SignalMap{"cod": true},
		Rationale:      model.Rationale{Reasons: []string{"cod"}, AdsCount: 3, AdvertisersCount: 2, AvgConfidence: 0.8},
		CandidateScore: 0.72,
		FirstSeenAt:    "2026-08-10T00:00:00Z",
		LastSeenAt:     "2026-08-10T00:00:00Z",
	}
	require.NoError(t, s.UpsertProductConcept(ctx, pc))

	pc.CandidateScore = 0.81
	pc.FirstSeenAt = "2026-08-15T00:00:00Z"
	pc.LastSeenAt = "2026-08-15T00:00:00Z"
	require.NoError(t, s.UpsertProductConcept(ctx, pc))

	got, err := s.GetProduct(ctx, pc.ProductID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2026-08-10T00:00:00Z", got.FirstSeenAt)
	assert.Equal(t, "2026-08-15T00:00:00Z", got.LastSeenAt)
	assert.InDelta(t, 0.81, got.CandidateScore, 1e-9)
	assert.True(t, got.Signals["cod"])
	assert.Equal(t, 3, got.Rationale.AdsCount)
}

func TestWinnersExcludeUnknownClusterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	concepts := []struct {
		id    string
		score float64
		ads   int
		advs  int
	}{
		{"text:aaa", 0.50, 10, 3},
		{"text:bbb", 0.80, 4, 2},
		{model.UnknownCluster, 0.99, 100, 50},
	}
	for _, c := range concepts {
		require.NoError(t, s.UpsertProductConcept(ctx, model.ProductConcept{
			ProductID: c.id, CanonicalName: c.id,
			Signals: model.SignalMap{}, Rationale: model.Rationale{},
			CandidateScore: c.score,
			FirstSeenAt:    "2026-08-15T00:00:00Z", LastSeenAt: "2026-08-15T00:00:00Z",
		}))
		require.NoError(t, s.UpsertObservation(ctx, model.Observation{
			RunID: "run-1", ProductID: c.id, AdsCount: c.ads, AdvertisersCount: c.advs,
			AvgConfidence: 0.8, CreatedAt: "2026-08-15T00:00:00Z",
		}))
	}

	winners, err := s.Winners(ctx, "run-1", 10)
	require.NoError(t, err)
	require.Len(t, winners, 2)
	assert.Equal(t, "text:bbb", winners[0].ProductID)
	assert.Equal(t, "text:aaa", winners[1].ProductID)
}

func TestSampleAdIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, adID := range []string{"ad-1", "ad-2", "ad-3"} {
		require.NoError(t, s.UpsertAdAssignment(ctx, model.AdAssignment{
			RunID: "run-1", AdID: adID, ProductID: "text:aaa", AdvertiserID: "page-1",
			MatchBasis: model.BasisText, Confidence: 0.8, CreatedAt: "2026-08-15T00:00:00Z",
		}))
	}

	ids, err := s.SampleAdIDs(ctx, "run-1", "text:aaa", 2)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestAdvertiserLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	adv := model.Advertiser{
		AdvertiserID: "page-1",
		PageName:     "Tienda MX",
		ProfileURI:   "https://facebook.com/tiendamx",
		LikeCount:    1200,
		Categories:   []string{"Retail"},
		FirstSeenAt:  "2026-08-01T00:00:00Z",
		LastSeenAt:   "2026-08-01T00:00:00Z",
		Status:       "active",
	}
	require.NoError(t, s.InsertAdvertiser(ctx, adv))

	got, err := s.GetAdvertiser(ctx, "page-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Tienda MX", got.PageName)
	assert.Equal(t, []string{"Retail"}, got.Categories)

	missing, err := s.GetAdvertiser(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	adv.LikeCount = 1500
	require.NoError(t, s.UpdateAdvertiserProfile(ctx, adv))
	require.NoError(t, s.InsertAdvertiserHistory(ctx, adv, "2026-08-15T00:00:00Z"))
	require.NoError(t, s.TouchAdvertiser(ctx, "page-1", "2026-08-15T00:00:00Z"))

	got, err = s.GetAdvertiser(ctx, "page-1")
	require.NoError(t, err)
	assert.Equal(t, 1500, got.LikeCount)
	assert.Equal(t, "2026-08-15T00:00:00Z", got.LastSeenAt)

	n, err := s.MarkDormantAdvertisers(ctx, "2026-08-10T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.MarkDormantAdvertisers(ctx, "2026-08-20T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAdvertiserStateUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := model.AdvertiserState{
		AdvertiserID:  "page-1",
		CurrentStatus: model.AdvertiserNew,
		FirstSeenAt:   "2026-08-01T00:00:00Z",
		LastSeenAt:    "2026-08-01T00:00:00Z",
		TotalRunsSeen: 1,
		LastRunID:     "run-1",
		UpdatedAt:     "2026-08-01T00:00:00Z",
	}
	require.NoError(t, s.UpsertAdvertiserState(ctx, st))

	st.CurrentStatus = model.AdvertiserMonitoring
	st.TotalRunsSeen = 2
	st.LastRunID = "run-2"
	require.NoError(t, s.UpsertAdvertiserState(ctx, st))

	got, err := s.GetAdvertiserState(ctx, "page-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.AdvertiserMonitoring, got.CurrentStatus)
	assert.Equal(t, 2, got.TotalRunsSeen)
	assert.Equal(t, "2026-08-01T00:00:00Z", got.FirstSeenAt)
}

func TestAdvertiserRunStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := model.AdvertiserRunStats{
		RunID: "run-1", AdvertiserID: "page-1",
		TotalAds: 12, AdsWithCOD: 5, AdsWithShipping: 7,
		MainCategory: "hogar", CreatedAt: "2026-08-15T00:00:00Z",
	}
	require.NoError(t, s.UpsertAdvertiserRunStats(ctx, st))
	st.TotalAds = 13
	require.NoError(t, s.UpsertAdvertiserRunStats(ctx, st))

	var total int
	row := s.db.QueryRow(`SELECT total_ads FROM advertiser_run_stats WHERE run_id = 'run-1' AND advertiser_id = 'page-1'`)
	require.NoError(t, row.Scan(&total))
	assert.Equal(t, 13, total)
}
