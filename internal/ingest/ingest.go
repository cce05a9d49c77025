package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/adscope/explorer-cli/internal/model"
	"github.com/adscope/explorer-cli/internal/store"
)

// Options tunes the ingestor.
type Options struct {
	// DormantAfterDays marks active advertisers dormant when unseen this long.
	DormantAfterDays int
}

// Report summarizes one ingest invocation.
type Report struct {
	ReportID           string `json:"report_id"`
	RunID              string `json:"run_id"`
	RunInserted        bool   `json:"run_inserted"`
	NewAdvertisers     int    `json:"new_advertisers"`
	UpdatedAdvertisers int    `json:"updated_advertisers"`
	NewAds             int    `json:"new_ads"`
	UpdatedAds         int    `json:"updated_ads"`
	Snapshots          int    `json:"snapshots"`
	SkippedAds         int    `json:"skipped_ads"`
	DormantMarked      int    `json:"dormant_marked"`
}

// Ingestor loads run output into the store.
type Ingestor struct {
	store store.Store
	opts  Options
}

// New creates an ingestor.
func New(st store.Store, opts Options) *Ingestor {
	if opts.DormantAfterDays <= 0 {
		opts.DormantAfterDays = 7
	}
	return &Ingestor{store: st, opts: opts}
}

type runSummaryFile struct {
	Timestamp         string         `json:"timestamp"`
	QueriesLoaded     int            `json:"queries_loaded"`
	RawCount          int            `json:"raw_count"`
	DedupCount        int            `json:"dedup_count"`
	UniqueAdvertisers int            `json:"unique_advertisers"`
	ScrapeJob         string         `json:"apify_run"`
	Params            map[string]any `json:"params"`
}

// Run ingests the run directory dir (summary.json + dedup_ads.jsonl) under
// the given run id, then sweeps dormant advertisers.
func (in *Ingestor) Run(ctx context.Context, runID, dir string) (Report, error) {
	logger := zap.L().With(zap.String("run_id", runID))
	report := Report{ReportID: uuid.NewString(), RunID: runID}

	summaryPath := filepath.Join(dir, "summary.json")
	dedupPath := filepath.Join(dir, "dedup_ads.jsonl")

	raw, err := os.ReadFile(summaryPath)
	if err != nil {
		return report, eris.Wrapf(err, "ingest: read %s", summaryPath)
	}
	var summary runSummaryFile
	if err := json.Unmarshal(raw, &summary); err != nil {
		return report, eris.Wrapf(err, "ingest: parse %s", summaryPath)
	}

	inserted, err := in.store.InsertRun(ctx, model.Run{
		RunID:             runID,
		Timestamp:         summary.Timestamp,
		QueriesLoaded:     summary.QueriesLoaded,
		RawCount:          summary.RawCount,
		DedupCount:        summary.DedupCount,
		UniqueAdvertisers: summary.UniqueAdvertisers,
		ScrapeJob:         summary.ScrapeJob,
		Params:            summary.Params,
	})
	if err != nil {
		return report, err
	}
	report.RunInserted = inserted
	if !inserted {
		logger.Warn("run already registered, re-ingesting ads")
	}

	ads, err := ReadDedupAds(dedupPath)
	if err != nil {
		return report, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, ad := range ads {
		if err := in.ingestOne(ctx, runID, ad, now, &report); err != nil {
			return report, err
		}
	}

	cutoff := time.Now().UTC().
		AddDate(0, 0, -in.opts.DormantAfterDays).
		Format(time.RFC3339)
	dormant, err := in.store.MarkDormantAdvertisers(ctx, cutoff)
	if err != nil {
		return report, err
	}
	report.DormantMarked = dormant

	logger.Info("ingest done",
		zap.String("report_id", report.ReportID),
		zap.Int("new_advertisers", report.NewAdvertisers),
		zap.Int("new_ads", report.NewAds),
		zap.Int("snapshots", report.Snapshots),
		zap.Int("dormant_marked", report.DormantMarked),
	)
	return report, nil
}

func (in *Ingestor) ingestOne(ctx context.Context, runID string, ad RawAd, now string, report *Report) error {
	pageID := ad.PageID()
	adID := ad.AdArchiveID()
	if pageID == "" || adID == "" {
		report.SkippedAds++
		return nil
	}

	if err := in.upsertAdvertiser(ctx, pageID, ad, now, report); err != nil {
		return err
	}

	contentHash := ad.ContentHash()
	isNew, err := in.store.UpsertAd(ctx, model.Ad{
		AdID:         adID,
		AdvertiserID: pageID,
		FirstSeenAt:  now,
		LastSeenAt:   now,
		IsActive:     ad.IsActive(),
		LinkURL:      ad.LinkURL(),
		Domain:       ad.Domain(),
		ContentHash:  contentHash,
	})
	if err != nil {
		return err
	}
	if isNew {
		report.NewAds++
	} else {
		report.UpdatedAds++
	}

	inserted, err := in.store.InsertSnapshot(ctx, model.Snapshot{
		RunID:        runID,
		AdID:         adID,
		ObservedAt:   now,
		IsActive:     ad.IsActive(),
		StartDate:    ad.StartDate(),
		EndDate:      ad.EndDate(),
		LinkURL:      ad.LinkURL(),
		Domain:       ad.Domain(),
		Title:        ad.Title(),
		BodyText:     ad.BodyText(),
		CTAType:      ad.CTAType(),
		QueryMatched: ad.QueryMatched(),
		ContentHash:  contentHash,
	})
	if err != nil {
		return err
	}
	if inserted {
		report.Snapshots++
	}
	return nil
}

func (in *Ingestor) upsertAdvertiser(ctx context.Context, pageID string, ad RawAd, now string, report *Report) error {
	adv := model.Advertiser{
		AdvertiserID: pageID,
		PageName:     ad.PageName(),
		ProfileURI:   ad.ProfileURI(),
		LikeCount:    ad.LikeCount(),
		Categories:   ad.Categories(),
		FirstSeenAt:  now,
		LastSeenAt:   now,
		Status:       "active",
	}

	existing, err := in.store.GetAdvertiser(ctx, pageID)
	if err != nil {
		return err
	}
	if existing == nil {
		if err := in.store.InsertAdvertiser(ctx, adv); err != nil {
			return err
		}
		report.NewAdvertisers++
		return in.store.InsertAdvertiserHistory(ctx, adv, now)
	}

	report.UpdatedAdvertisers++
	if err := in.store.TouchAdvertiser(ctx, pageID, now); err != nil {
		return err
	}

	// Profile changes get a new history row; unchanged profiles only bump
	// last-seen.
	changed := (adv.PageName != "" && adv.PageName != existing.PageName) ||
		(adv.ProfileURI != "" && adv.ProfileURI != existing.ProfileURI) ||
		!slices.Equal(adv.Categories, existing.Categories)
	if !changed {
		return nil
	}
	if err := in.store.UpdateAdvertiserProfile(ctx, adv); err != nil {
		return err
	}
	return in.store.InsertAdvertiserHistory(ctx, adv, now)
}
