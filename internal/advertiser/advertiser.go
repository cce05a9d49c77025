// Package advertiser folds per-run ad activity into advertiser stats and
// advances each advertiser's lifecycle state.
package advertiser

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/adscope/explorer-cli/internal/model"
	"github.com/adscope/explorer-cli/internal/store"
)

// ErrNoSnapshots means the run has no ad snapshots to fold.
var ErrNoSnapshots = eris.New("advertiser: run has no snapshots")

// Summary reports one advertiser pass.
type Summary struct {
	RunID       string `json:"run_id"`
	Advertisers int    `json:"advertisers"`
	NewStates   int    `json:"new_states"`
	Promoted    int    `json:"promoted"`
	Reactivated int    `json:"reactivated"`
}

// Pass computes run stats and state transitions.
type Pass struct {
	store store.Store
}

// NewPass creates an advertiser pass.
func NewPass(st store.Store) *Pass {
	return &Pass{store: st}
}

type runStats struct {
	totalAds   int
	codAds     int
	shipAds    int
	categories map[string]int
}

// Run folds the run's snapshots and extractions per advertiser, writes one
// stats row each, and advances lifecycle states. Winner and blacklisted
// states never change here.
func (p *Pass) Run(ctx context.Context, runID string) (Summary, error) {
	logger := zap.L().With(zap.String("run_id", runID))
	summary := Summary{RunID: runID}

	snaps, err := p.store.ListSnapshots(ctx, runID)
	if err != nil {
		return summary, err
	}
	if len(snaps) == 0 {
		return summary, ErrNoSnapshots
	}

	extractions, err := p.store.ListExtractions(ctx, runID)
	if err != nil {
		return summary, err
	}
	byAd := make(map[string]model.Extraction, len(extractions))
	for _, ex := range extractions {
		byAd[ex.AdID] = ex
	}

	stats := make(map[string]*runStats)
	for _, snap := range snaps {
		if snap.AdvertiserID == "" {
			continue
		}
		st := stats[snap.AdvertiserID]
		if st == nil {
			st = &runStats{categories: make(map[string]int)}
			stats[snap.AdvertiserID] = st
		}
		st.totalAds++
		if ex, ok := byAd[snap.AdID]; ok {
			if ex.Signals["cod"] {
				st.codAds++
			}
			if ex.Signals["free_shipping"] {
				st.shipAds++
			}
			if ex.Category != "" {
				st.categories[ex.Category]++
			}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	ids := make([]string, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		st := stats[id]
		if err := p.store.UpsertAdvertiserRunStats(ctx, model.AdvertiserRunStats{
			RunID:           runID,
			AdvertiserID:    id,
			TotalAds:        st.totalAds,
			AdsWithCOD:      st.codAds,
			AdsWithShipping: st.shipAds,
			MainCategory:    mainCategory(st.categories),
			CreatedAt:       now,
		}); err != nil {
			return summary, err
		}
		if err := p.advanceState(ctx, runID, id, now, &summary); err != nil {
			return summary, err
		}
		summary.Advertisers++
	}

	logger.Info("advertiser pass done",
		zap.Int("advertisers", summary.Advertisers),
		zap.Int("new_states", summary.NewStates),
		zap.Int("promoted", summary.Promoted),
		zap.Int("reactivated", summary.Reactivated),
	)
	return summary, nil
}

func (p *Pass) advanceState(ctx context.Context, runID, advertiserID, now string, summary *Summary) error {
	prev, err := p.store.GetAdvertiserState(ctx, advertiserID)
	if err != nil {
		return err
	}
	if prev == nil {
		summary.NewStates++
		return p.store.UpsertAdvertiserState(ctx, model.AdvertiserState{
			AdvertiserID:  advertiserID,
			CurrentStatus: model.AdvertiserNew,
			FirstSeenAt:   now,
			LastSeenAt:    now,
			TotalRunsSeen: 1,
			LastRunID:     runID,
			UpdatedAt:     now,
		})
	}

	next := *prev
	next.LastSeenAt = now
	next.UpdatedAt = now
	if prev.LastRunID != runID {
		next.TotalRunsSeen++
	}
	next.LastRunID = runID

	switch prev.CurrentStatus {
	case model.AdvertiserNew:
		if next.TotalRunsSeen >= 2 {
			next.CurrentStatus = model.AdvertiserMonitoring
			summary.Promoted++
		}
	case model.AdvertiserDormant:
		next.CurrentStatus = model.AdvertiserMonitoring
		summary.Reactivated++
	case model.AdvertiserWinner, model.AdvertiserBlacklisted:
		// Sticky terminal states.
	}
	return p.store.UpsertAdvertiserState(ctx, next)
}

// mainCategory picks the most frequent category, breaking ties
// lexicographically. Empty when no ad had a category.
func mainCategory(counts map[string]int) string {
	best := ""
	bestCount := 0
	for cat, n := range counts {
		if n > bestCount || (n == bestCount && (best == "" || cat < best)) {
			best = cat
			bestCount = n
		}
	}
	return best
}
