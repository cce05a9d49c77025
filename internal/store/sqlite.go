package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/adscope/explorer-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	run_id             TEXT PRIMARY KEY,
	timestamp          TEXT,
	queries_loaded     INTEGER,
	raw_count          INTEGER,
	dedup_count        INTEGER,
	unique_advertisers INTEGER,
	scrape_job         TEXT,
	params_json        TEXT
);

CREATE TABLE IF NOT EXISTS advertisers (
	advertiser_id   TEXT PRIMARY KEY,
	page_name       TEXT,
	profile_uri     TEXT,
	like_count      INTEGER,
	categories_json TEXT,
	first_seen_at   TEXT,
	last_seen_at    TEXT,
	status          TEXT
);

CREATE TABLE IF NOT EXISTS advertiser_profile_history (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	advertiser_id   TEXT NOT NULL,
	observed_at     TEXT,
	page_name       TEXT,
	profile_uri     TEXT,
	like_count      INTEGER,
	categories_json TEXT
);

CREATE TABLE IF NOT EXISTS ads (
	ad_id         TEXT PRIMARY KEY,
	advertiser_id TEXT,
	first_seen_at TEXT,
	last_seen_at  TEXT,
	is_active     BOOLEAN,
	link_url      TEXT,
	domain        TEXT,
	content_hash  TEXT
);

CREATE TABLE IF NOT EXISTS ad_snapshots (
	run_id        TEXT NOT NULL,
	ad_id         TEXT NOT NULL,
	observed_at   TEXT,
	is_active     BOOLEAN,
	start_date    TEXT,
	end_date      TEXT,
	link_url      TEXT,
	domain        TEXT,
	title         TEXT,
	body_text     TEXT,
	cta_type      TEXT,
	query_matched TEXT,
	content_hash  TEXT,
	PRIMARY KEY (run_id, ad_id)
);

CREATE TABLE IF NOT EXISTS ad_extractions (
	run_id             TEXT NOT NULL,
	ad_id              TEXT NOT NULL,
	product_name_guess TEXT,
	category           TEXT,
	subcategory        TEXT,
	signals_json       TEXT,
	evidence_json      TEXT,
	confidence         REAL,
	PRIMARY KEY (run_id, ad_id)
);

CREATE TABLE IF NOT EXISTS image_cache (
	image_url  TEXT PRIMARY KEY,
	dhash64    TEXT,
	fetched_at TEXT
);

CREATE TABLE IF NOT EXISTS ad_media (
	run_id    TEXT NOT NULL,
	ad_id     TEXT NOT NULL,
	image_url TEXT NOT NULL,
	dhash64   TEXT,
	created_at TEXT,
	PRIMARY KEY (run_id, ad_id, image_url)
);

CREATE TABLE IF NOT EXISTS semantic_map (
	run_id         TEXT NOT NULL,
	original_name  TEXT NOT NULL,
	cluster_id     INTEGER,
	canonical_name TEXT,
	PRIMARY KEY (run_id, original_name)
);

CREATE TABLE IF NOT EXISTS product_concepts (
	product_id      TEXT PRIMARY KEY,
	canonical_name  TEXT,
	category        TEXT,
	subcategory     TEXT,
	signals_json    TEXT,
	rationale_json  TEXT,
	candidate_score REAL,
	first_seen_at   TEXT,
	last_seen_at    TEXT
);

CREATE TABLE IF NOT EXISTS product_observations (
	run_id            TEXT NOT NULL,
	product_id        TEXT NOT NULL,
	ads_count         INTEGER,
	advertisers_count INTEGER,
	avg_confidence    REAL,
	created_at        TEXT,
	PRIMARY KEY (run_id, product_id)
);

CREATE TABLE IF NOT EXISTS ad_to_product (
	run_id        TEXT NOT NULL,
	ad_id         TEXT NOT NULL,
	product_id    TEXT,
	advertiser_id TEXT,
	match_basis   TEXT,
	confidence    REAL,
	created_at    TEXT,
	PRIMARY KEY (run_id, ad_id)
);

CREATE TABLE IF NOT EXISTS advertiser_product_state (
	advertiser_id TEXT NOT NULL,
	product_id    TEXT NOT NULL,
	first_seen_at TEXT,
	last_seen_at  TEXT,
	last_run_id   TEXT,
	status        TEXT,
	PRIMARY KEY (advertiser_id, product_id)
);

CREATE TABLE IF NOT EXISTS advertiser_run_stats (
	run_id                 TEXT NOT NULL,
	advertiser_id          TEXT NOT NULL,
	total_ads              INTEGER,
	ads_with_cod           INTEGER,
	ads_with_free_shipping INTEGER,
	main_category          TEXT,
	created_at             TEXT,
	PRIMARY KEY (run_id, advertiser_id)
);

CREATE TABLE IF NOT EXISTS advertiser_state (
	advertiser_id   TEXT PRIMARY KEY,
	current_status  TEXT,
	first_seen_at   TEXT,
	last_seen_at    TEXT,
	total_runs_seen INTEGER DEFAULT 0,
	last_run_id     TEXT,
	updated_at      TEXT
);

CREATE INDEX IF NOT EXISTS idx_adv_last_seen ON advertisers(last_seen_at);
CREATE INDEX IF NOT EXISTS idx_ads_adv ON ads(advertiser_id, last_seen_at);
CREATE INDEX IF NOT EXISTS idx_snapshots_domain ON ad_snapshots(domain);
CREATE INDEX IF NOT EXISTS idx_history_adv ON advertiser_profile_history(advertiser_id);
CREATE INDEX IF NOT EXISTS idx_image_cache_hash ON image_cache(dhash64);
CREATE INDEX IF NOT EXISTS idx_ad_media_ad ON ad_media(ad_id);
CREATE INDEX IF NOT EXISTS idx_ad_media_hash ON ad_media(dhash64);
CREATE INDEX IF NOT EXISTS idx_prod_obs_run ON product_observations(run_id);
CREATE INDEX IF NOT EXISTS idx_ad_to_product_prod ON ad_to_product(product_id);
CREATE INDEX IF NOT EXISTS idx_adv_prod_last ON advertiser_product_state(last_seen_at);
CREATE INDEX IF NOT EXISTS idx_adv_run_stats_run ON advertiser_run_stats(run_id);
CREATE INDEX IF NOT EXISTS idx_adv_state_status ON advertiser_state(current_status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Runs

func (s *SQLiteStore) InsertRun(ctx context.Context, run model.Run) (bool, error) {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal run params")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (run_id, timestamp, queries_loaded, raw_count, dedup_count, unique_advertisers, scrape_job, params_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Timestamp, run.QueriesLoaded, run.RawCount, run.DedupCount,
		run.UniqueAdvertisers, run.ScrapeJob, string(params),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert run %s", run.RunID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, timestamp, queries_loaded, raw_count, dedup_count, unique_advertisers, scrape_job, params_json
		 FROM runs ORDER BY run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []model.Run
	for rows.Next() {
		var r model.Run
		var paramsJSON sql.NullString
		if err := rows.Scan(&r.RunID, &r.Timestamp, &r.QueriesLoaded, &r.RawCount,
			&r.DedupCount, &r.UniqueAdvertisers, &r.ScrapeJob, &paramsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if paramsJSON.Valid && paramsJSON.String != "" {
			if err := json.Unmarshal([]byte(paramsJSON.String), &r.Params); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal run params")
			}
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// Advertisers

func (s *SQLiteStore) GetAdvertiser(ctx context.Context, advertiserID string) (*model.Advertiser, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT advertiser_id, page_name, profile_uri, like_count, categories_json, first_seen_at, last_seen_at, status
		 FROM advertisers WHERE advertiser_id = ?`, advertiserID)

	var a model.Advertiser
	var catsJSON sql.NullString
	var likeCount sql.NullInt64
	err := row.Scan(&a.AdvertiserID, &a.PageName, &a.ProfileURI, &likeCount,
		&catsJSON, &a.FirstSeenAt, &a.LastSeenAt, &a.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get advertiser %s", advertiserID)
	}
	a.LikeCount = int(likeCount.Int64)
	if catsJSON.Valid && catsJSON.String != "" {
		if err := json.Unmarshal([]byte(catsJSON.String), &a.Categories); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal advertiser categories")
		}
	}
	return &a, nil
}

func (s *SQLiteStore) InsertAdvertiser(ctx context.Context, adv model.Advertiser) error {
	cats, err := json.Marshal(adv.Categories)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal categories")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO advertisers (advertiser_id, page_name, profile_uri, like_count, categories_json, first_seen_at, last_seen_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		adv.AdvertiserID, adv.PageName, adv.ProfileURI, adv.LikeCount, string(cats),
		adv.FirstSeenAt, adv.LastSeenAt, adv.Status,
	)
	return eris.Wrapf(err, "sqlite: insert advertiser %s", adv.AdvertiserID)
}

func (s *SQLiteStore) UpdateAdvertiserProfile(ctx context.Context, adv model.Advertiser) error {
	cats, err := json.Marshal(adv.Categories)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal categories")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE advertisers SET page_name = ?, profile_uri = ?, like_count = ?, categories_json = ?
		 WHERE advertiser_id = ?`,
		adv.PageName, adv.ProfileURI, adv.LikeCount, string(cats), adv.AdvertiserID,
	)
	return eris.Wrapf(err, "sqlite: update advertiser %s", adv.AdvertiserID)
}

func (s *SQLiteStore) TouchAdvertiser(ctx context.Context, advertiserID, lastSeenAt string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE advertisers SET last_seen_at = ?, status = 'active' WHERE advertiser_id = ?`,
		lastSeenAt, advertiserID,
	)
	return eris.Wrapf(err, "sqlite: touch advertiser %s", advertiserID)
}

func (s *SQLiteStore) InsertAdvertiserHistory(ctx context.Context, adv model.Advertiser, observedAt string) error {
	cats, err := json.Marshal(adv.Categories)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal categories")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO advertiser_profile_history (advertiser_id, observed_at, page_name, profile_uri, like_count, categories_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		adv.AdvertiserID, observedAt, adv.PageName, adv.ProfileURI, adv.LikeCount, string(cats),
	)
	return eris.Wrapf(err, "sqlite: insert history %s", adv.AdvertiserID)
}

func (s *SQLiteStore) MarkDormantAdvertisers(ctx context.Context, cutoff string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE advertisers SET status = 'dormant' WHERE last_seen_at < ? AND status = 'active'`,
		cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: mark dormant")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// Ads and snapshots

func (s *SQLiteStore) UpsertAd(ctx context.Context, ad model.Ad) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM ads WHERE ad_id = ?`, ad.AdID).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return false, eris.Wrapf(err, "sqlite: check ad %s", ad.AdID)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ads (ad_id, advertiser_id, first_seen_at, last_seen_at, is_active, link_url, domain, content_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ad_id) DO UPDATE SET
		   last_seen_at = excluded.last_seen_at,
		   is_active = excluded.is_active,
		   link_url = excluded.link_url,
		   domain = excluded.domain,
		   content_hash = excluded.content_hash,
		   first_seen_at = MIN(ads.first_seen_at, excluded.first_seen_at)`,
		ad.AdID, ad.AdvertiserID, ad.FirstSeenAt, ad.LastSeenAt, ad.IsActive,
		ad.LinkURL, ad.Domain, ad.ContentHash,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: upsert ad %s", ad.AdID)
	}
	return exists == 0, nil
}

func (s *SQLiteStore) InsertSnapshot(ctx context.Context, snap model.Snapshot) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO ad_snapshots
		 (run_id, ad_id, observed_at, is_active, start_date, end_date, link_url, domain, title, body_text, cta_type, query_matched, content_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.RunID, snap.AdID, snap.ObservedAt, snap.IsActive, snap.StartDate, snap.EndDate,
		snap.LinkURL, snap.Domain, snap.Title, snap.BodyText, snap.CTAType,
		snap.QueryMatched, snap.ContentHash,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert snapshot %s/%s", snap.RunID, snap.AdID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

const snapshotColumns = `s.run_id, s.ad_id, COALESCE(a.advertiser_id, ''), s.observed_at, s.is_active,
	COALESCE(s.start_date, ''), COALESCE(s.end_date, ''), COALESCE(s.link_url, ''), COALESCE(s.domain, ''),
	COALESCE(s.title, ''), COALESCE(s.body_text, ''), COALESCE(s.cta_type, ''), COALESCE(s.query_matched, ''), s.content_hash`

func (s *SQLiteStore) ListSnapshots(ctx context.Context, runID string) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+`
		 FROM ad_snapshots s
		 JOIN ads a ON a.ad_id = s.ad_id
		 WHERE s.run_id = ?`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list snapshots %s", runID)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func (s *SQLiteStore) ListUnextractedSnapshots(ctx context.Context, runID string) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+`
		 FROM ad_snapshots s
		 JOIN ads a ON a.ad_id = s.ad_id
		 LEFT JOIN ad_extractions e ON e.run_id = s.run_id AND e.ad_id = s.ad_id
		 WHERE s.run_id = ? AND e.ad_id IS NULL`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list unextracted %s", runID)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func scanSnapshots(rows *sql.Rows) ([]model.Snapshot, error) {
	var out []model.Snapshot
	for rows.Next() {
		var sn model.Snapshot
		if err := rows.Scan(&sn.RunID, &sn.AdID, &sn.AdvertiserID, &sn.ObservedAt, &sn.IsActive,
			&sn.StartDate, &sn.EndDate, &sn.LinkURL, &sn.Domain,
			&sn.Title, &sn.BodyText, &sn.CTAType, &sn.QueryMatched, &sn.ContentHash); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		out = append(out, sn)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: snapshots iterate")
}

// Extractions

func (s *SQLiteStore) UpsertExtraction(ctx context.Context, ex model.Extraction) error {
	signals, err := json.Marshal(ex.Signals)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal signals")
	}
	evidence, err := json.Marshal(ex.Evidence)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ad_extractions (run_id, ad_id, product_name_guess, category, subcategory, signals_json, evidence_json, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, ad_id) DO UPDATE SET
		   product_name_guess = excluded.product_name_guess,
		   category = excluded.category,
		   subcategory = excluded.subcategory,
		   signals_json = excluded.signals_json,
		   evidence_json = excluded.evidence_json,
		   confidence = excluded.confidence`,
		ex.RunID, ex.AdID, ex.NameGuess, ex.Category, ex.Subcategory,
		string(signals), string(evidence), ex.Confidence,
	)
	return eris.Wrapf(err, "sqlite: upsert extraction %s/%s", ex.RunID, ex.AdID)
}

func (s *SQLiteStore) ListExtractions(ctx context.Context, runID string) ([]model.Extraction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, ad_id, COALESCE(product_name_guess, ''), COALESCE(category, ''), COALESCE(subcategory, ''),
		        COALESCE(signals_json, '{}'), COALESCE(evidence_json, '{}'), COALESCE(confidence, 0)
		 FROM ad_extractions WHERE run_id = ?`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list extractions %s", runID)
	}
	defer rows.Close()

	var out []model.Extraction
	for rows.Next() {
		var ex model.Extraction
		var signalsJSON, evidenceJSON string
		if err := rows.Scan(&ex.RunID, &ex.AdID, &ex.NameGuess, &ex.Category, &ex.Subcategory,
			&signalsJSON, &evidenceJSON, &ex.Confidence); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan extraction")
		}
		if err := json.Unmarshal([]byte(signalsJSON), &ex.Signals); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal signals")
		}
		if err := json.Unmarshal([]byte(evidenceJSON), &ex.Evidence); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal evidence")
		}
		out = append(out, ex)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: extractions iterate")
}

func (s *SQLiteStore) DistinctNames(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT product_name_guess FROM ad_extractions
		 WHERE run_id = ? AND product_name_guess IS NOT NULL AND product_name_guess != ''`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: distinct names %s", runID)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan name")
		}
		names = append(names, n)
	}
	return names, eris.Wrap(rows.Err(), "sqlite: names iterate")
}

func (s *SQLiteStore) NameCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_name_guess, COUNT(*) FROM ad_extractions
		 WHERE run_id = ? AND product_name_guess IS NOT NULL AND product_name_guess != ''
		 GROUP BY product_name_guess`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: name counts %s", runID)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan name count")
		}
		counts[name] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: name counts iterate")
}

// Image fingerprints

func (s *SQLiteStore) ImageCache(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT image_url, dhash64 FROM image_cache WHERE dhash64 IS NOT NULL`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load image cache")
	}
	defer rows.Close()

	cache := make(map[string]string)
	for rows.Next() {
		var url, hash string
		if err := rows.Scan(&url, &hash); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan image cache")
		}
		cache[url] = hash
	}
	return cache, eris.Wrap(rows.Err(), "sqlite: image cache iterate")
}

func (s *SQLiteStore) UpsertFingerprints(ctx context.Context, fps []model.ImageFingerprint) error {
	if len(fps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin fingerprints tx")
	}
	defer tx.Rollback()

	for _, fp := range fps {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO image_cache (image_url, dhash64, fetched_at) VALUES (?, ?, ?)`,
			fp.ImageURL, fp.DHash64, fp.FetchedAt,
		); err != nil {
			return eris.Wrap(err, "sqlite: upsert fingerprint")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit fingerprints")
}

func (s *SQLiteStore) InsertAdMedia(ctx context.Context, rows []model.AdMedia) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin media tx")
	}
	defer tx.Rollback()

	now := nowISO()
	for _, m := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO ad_media (run_id, ad_id, image_url, dhash64, created_at) VALUES (?, ?, ?, ?, ?)`,
			m.RunID, m.AdID, m.ImageURL, m.DHash64, now,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert ad media")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit media")
}

func (s *SQLiteStore) AdMediaSeen(ctx context.Context, runID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ad_id, image_url FROM ad_media WHERE run_id = ?`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: ad media seen %s", runID)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var adID, url string
		if err := rows.Scan(&adID, &url); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ad media")
		}
		seen[MediaKey(adID, url)] = struct{}{}
	}
	return seen, eris.Wrap(rows.Err(), "sqlite: ad media iterate")
}

func (s *SQLiteStore) AdHashes(ctx context.Context, runID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ad_id, dhash64 FROM ad_media WHERE run_id = ? AND dhash64 IS NOT NULL AND dhash64 != ''`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: ad hashes %s", runID)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var adID, hash string
		if err := rows.Scan(&adID, &hash); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ad hash")
		}
		// Keep the first hash per ad when multiple images were fingerprinted.
		if _, ok := hashes[adID]; !ok {
			hashes[adID] = hash
		}
	}
	return hashes, eris.Wrap(rows.Err(), "sqlite: ad hashes iterate")
}

// Semantic map

func (s *SQLiteStore) UpsertSemanticEntries(ctx context.Context, entries []model.SemanticEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin semantic tx")
	}
	defer tx.Rollback()

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO semantic_map (run_id, original_name, cluster_id, canonical_name) VALUES (?, ?, ?, ?)`,
			e.RunID, e.OriginalName, e.ClusterID, e.CanonicalName,
		); err != nil {
			return eris.Wrap(err, "sqlite: upsert semantic entry")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit semantic")
}

func (s *SQLiteStore) SemanticMap(ctx context.Context, runID string) (map[string]model.SemanticEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, original_name, cluster_id, canonical_name FROM semantic_map WHERE run_id = ?`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: semantic map %s", runID)
	}
	defer rows.Close()

	m := make(map[string]model.SemanticEntry)
	for rows.Next() {
		var e model.SemanticEntry
		if err := rows.Scan(&e.RunID, &e.OriginalName, &e.ClusterID, &e.CanonicalName); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan semantic entry")
		}
		m[e.OriginalName] = e
	}
	return m, eris.Wrap(rows.Err(), "sqlite: semantic iterate")
}

// Product concepts

func (s *SQLiteStore) UpsertProductConcept(ctx context.Context, pc model.ProductConcept) error {
	signals, err := json.Marshal(pc.Signals)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal concept signals")
	}
	rationale, err := json.Marshal(pc.Rationale)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal rationale")
	}
	// MIN/MAX over ISO-8601 text keeps first-seen from moving later and
	// last-seen from moving earlier on re-aggregation.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO product_concepts
		 (product_id, canonical_name, category, subcategory, signals_json, rationale_json, candidate_score, first_seen_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(product_id) DO UPDATE SET
		   canonical_name = excluded.canonical_name,
		   category = excluded.category,
		   subcategory = excluded.subcategory,
		   signals_json = excluded.signals_json,
		   rationale_json = excluded.rationale_json,
		   candidate_score = excluded.candidate_score,
		   first_seen_at = MIN(product_concepts.first_seen_at, excluded.first_seen_at),
		   last_seen_at = MAX(product_concepts.last_seen_at, excluded.last_seen_at)`,
		pc.ProductID, pc.CanonicalName, pc.Category, pc.Subcategory,
		string(signals), string(rationale), pc.CandidateScore, pc.FirstSeenAt, pc.LastSeenAt,
	)
	return eris.Wrapf(err, "sqlite: upsert concept %s", pc.ProductID)
}

func (s *SQLiteStore) UpsertObservation(ctx context.Context, obs model.Observation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO product_observations (run_id, product_id, ads_count, advertisers_count, avg_confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, product_id) DO UPDATE SET
		   ads_count = excluded.ads_count,
		   advertisers_count = excluded.advertisers_count,
		   avg_confidence = excluded.avg_confidence`,
		obs.RunID, obs.ProductID, obs.AdsCount, obs.AdvertisersCount, obs.AvgConfidence, obs.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert observation %s/%s", obs.RunID, obs.ProductID)
}

func (s *SQLiteStore) UpsertAdAssignment(ctx context.Context, a model.AdAssignment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ad_to_product (run_id, ad_id, product_id, advertiser_id, match_basis, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, ad_id) DO UPDATE SET
		   product_id = excluded.product_id,
		   advertiser_id = excluded.advertiser_id,
		   match_basis = excluded.match_basis,
		   confidence = excluded.confidence`,
		a.RunID, a.AdID, a.ProductID, a.AdvertiserID, string(a.MatchBasis), a.Confidence, a.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert assignment %s/%s", a.RunID, a.AdID)
}

func (s *SQLiteStore) UpsertAdvertiserProduct(ctx context.Context, ap model.AdvertiserProduct) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO advertiser_product_state (advertiser_id, product_id, first_seen_at, last_seen_at, last_run_id, status)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(advertiser_id, product_id) DO UPDATE SET
		   first_seen_at = MIN(advertiser_product_state.first_seen_at, excluded.first_seen_at),
		   last_seen_at = MAX(advertiser_product_state.last_seen_at, excluded.last_seen_at),
		   last_run_id = excluded.last_run_id,
		   status = excluded.status`,
		ap.AdvertiserID, ap.ProductID, ap.FirstSeenAt, ap.LastSeenAt, ap.LastRunID, ap.Status,
	)
	return eris.Wrapf(err, "sqlite: upsert advertiser product %s/%s", ap.AdvertiserID, ap.ProductID)
}

func (s *SQLiteStore) GetProduct(ctx context.Context, productID string) (*model.ProductConcept, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT product_id, canonical_name, category, subcategory, signals_json, rationale_json, candidate_score, first_seen_at, last_seen_at
		 FROM product_concepts WHERE product_id = ?`, productID)

	var pc model.ProductConcept
	var signalsJSON, rationaleJSON string
	err := row.Scan(&pc.ProductID, &pc.CanonicalName, &pc.Category, &pc.Subcategory,
		&signalsJSON, &rationaleJSON, &pc.CandidateScore, &pc.FirstSeenAt, &pc.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get product %s", productID)
	}
	if err := json.Unmarshal([]byte(signalsJSON), &pc.Signals); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal concept signals")
	}
	if err := json.Unmarshal([]byte(rationaleJSON), &pc.Rationale); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal rationale")
	}
	return &pc, nil
}

func (s *SQLiteStore) Winners(ctx context.Context, runID string, limit int) ([]model.Winner, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.product_id, p.canonical_name, p.category, p.subcategory, p.candidate_score,
		        o.ads_count, o.advertisers_count, o.avg_confidence, p.signals_json, p.rationale_json
		 FROM product_concepts p
		 JOIN product_observations o ON o.product_id = p.product_id
		 WHERE o.run_id = ? AND p.product_id <> ?
		 ORDER BY p.candidate_score DESC, o.advertisers_count DESC, o.ads_count DESC
		 LIMIT ?`, runID, model.UnknownCluster, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: winners %s", runID)
	}
	defer rows.Close()

	var out []model.Winner
	for rows.Next() {
		var w model.Winner
		var signalsJSON, rationaleJSON string
		if err := rows.Scan(&w.ProductID, &w.CanonicalName, &w.Category, &w.Subcategory, &w.Score,
			&w.AdsCount, &w.AdvertisersCount, &w.AvgConfidence, &signalsJSON, &rationaleJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan winner")
		}
		if err := json.Unmarshal([]byte(signalsJSON), &w.Signals); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal winner signals")
		}
		if err := json.Unmarshal([]byte(rationaleJSON), &w.Rationale); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal winner rationale")
		}
		out = append(out, w)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: winners iterate")
}

func (s *SQLiteStore) SampleAdIDs(ctx context.Context, runID, productID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ad_id FROM ad_to_product WHERE run_id = ? AND product_id = ? LIMIT ?`,
		runID, productID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: sample ads %s/%s", runID, productID)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sample ad")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: sample ads iterate")
}

// Advertiser state

func (s *SQLiteStore) UpsertAdvertiserRunStats(ctx context.Context, st model.AdvertiserRunStats) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO advertiser_run_stats
		 (run_id, advertiser_id, total_ads, ads_with_cod, ads_with_free_shipping, main_category, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.RunID, st.AdvertiserID, st.TotalAds, st.AdsWithCOD, st.AdsWithShipping, st.MainCategory, st.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert run stats %s/%s", st.RunID, st.AdvertiserID)
}

func (s *SQLiteStore) GetAdvertiserState(ctx context.Context, advertiserID string) (*model.AdvertiserState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT advertiser_id, current_status, first_seen_at, last_seen_at, total_runs_seen, last_run_id, updated_at
		 FROM advertiser_state WHERE advertiser_id = ?`, advertiserID)

	var st model.AdvertiserState
	var status string
	err := row.Scan(&st.AdvertiserID, &status, &st.FirstSeenAt, &st.LastSeenAt,
		&st.TotalRunsSeen, &st.LastRunID, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get advertiser state %s", advertiserID)
	}
	st.CurrentStatus = model.AdvertiserStatus(status)
	return &st, nil
}

func (s *SQLiteStore) UpsertAdvertiserState(ctx context.Context, st model.AdvertiserState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO advertiser_state (advertiser_id, current_status, first_seen_at, last_seen_at, total_runs_seen, last_run_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(advertiser_id) DO UPDATE SET
		   current_status = excluded.current_status,
		   last_seen_at = excluded.last_seen_at,
		   total_runs_seen = excluded.total_runs_seen,
		   last_run_id = excluded.last_run_id,
		   updated_at = excluded.updated_at`,
		st.AdvertiserID, string(st.CurrentStatus), st.FirstSeenAt, st.LastSeenAt,
		st.TotalRunsSeen, st.LastRunID, st.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert advertiser state %s", st.AdvertiserID)
}
