package advertiser

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adscope/explorer-cli/internal/model"
	"github.com/adscope/explorer-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "advertiser.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func seedAd(t *testing.T, st store.Store, runID, adID, advertiserID string) {
	t.Helper()
	ctx := context.Background()
	_, err := st.UpsertAd(ctx, model.Ad{
		AdID:         adID,
		AdvertiserID: advertiserID,
		FirstSeenAt:  "2026-08-15T00:00:00Z",
		LastSeenAt:   "2026-08-15T00:00:00Z",
		IsActive:     true,
	})
	require.NoError(t, err)
	_, err = st.InsertSnapshot(ctx, model.Snapshot{
		RunID:      runID,
		AdID:       adID,
		ObservedAt: "2026-08-15T00:00:00Z",
		IsActive:   true,
	})
	require.NoError(t, err)
}

func seedExtraction(t *testing.T, st store.Store, runID, adID, category string, signals model.SignalMap) {
	t.Helper()
	require.NoError(t, st.UpsertExtraction(context.Background(), model.Extraction{
		RunID:      runID,
		AdID:       adID,
		Category:   category,
		Signals:    signals,
		Confidence: 0.8,
	}))
}

func TestRunFoldsStatsPerAdvertiser(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	seedAd(t, st, "run-1", "a1", "adv-1")
	seedAd(t, st, "run-1", "a2", "adv-1")
	seedAd(t, st, "run-1", "a3", "adv-2")
	seedExtraction(t, st, "run-1", "a1", "Belleza", model.SignalMap{"cod": true, "free_shipping": true})
	seedExtraction(t, st, "run-1", "a2", "Belleza", model.SignalMap{"cod": true})
	seedExtraction(t, st, "run-1", "a3", "Moda", model.SignalMap{"free_shipping": true})

	summary, err := NewPass(st).Run(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Advertisers)
	assert.Equal(t, 2, summary.NewStates)

	state, err := st.GetAdvertiserState(ctx, "adv-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, model.AdvertiserNew, state.CurrentStatus)
	assert.Equal(t, 1, state.TotalRunsSeen)
	assert.Equal(t, "run-1", state.LastRunID)
}

func TestRunNoSnapshots(t *testing.T) {
	st := newTestStore(t)
	_, err := NewPass(st).Run(context.Background(), "run-1")
	assert.ErrorIs(t, err, ErrNoSnapshots)
}

func TestSecondRunPromotesToMonitoring(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	pass := NewPass(st)

	seedAd(t, st, "run-1", "a1", "adv-1")
	_, err := pass.Run(ctx, "run-1")
	require.NoError(t, err)

	seedAd(t, st, "run-2", "a1b", "adv-1")
	summary, err := pass.Run(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Promoted)

	state, err := st.GetAdvertiserState(ctx, "adv-1")
	require.NoError(t, err)
	assert.Equal(t, model.AdvertiserMonitoring, state.CurrentStatus)
	assert.Equal(t, 2, state.TotalRunsSeen)
}

func TestReRunSameRunDoesNotPromote(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	pass := NewPass(st)

	seedAd(t, st, "run-1", "a1", "adv-1")
	_, err := pass.Run(ctx, "run-1")
	require.NoError(t, err)
	summary, err := pass.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Promoted)

	state, err := st.GetAdvertiserState(ctx, "adv-1")
	require.NoError(t, err)
	assert.Equal(t, model.AdvertiserNew, state.CurrentStatus)
	assert.Equal(t, 1, state.TotalRunsSeen)
}

func TestDormantReactivatesToMonitoring(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.UpsertAdvertiserState(ctx, model.AdvertiserState{
		AdvertiserID:  "adv-1",
		CurrentStatus: model.AdvertiserDormant,
		FirstSeenAt:   "2026-07-01T00:00:00Z",
		LastSeenAt:    "2026-07-01T00:00:00Z",
		TotalRunsSeen: 3,
		LastRunID:     "run-old",
		UpdatedAt:     "2026-07-01T00:00:00Z",
	}))

	seedAd(t, st, "run-9", "a1", "adv-1")
	summary, err := NewPass(st).Run(ctx, "run-9")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Reactivated)

	state, err := st.GetAdvertiserState(ctx, "adv-1")
	require.NoError(t, err)
	assert.Equal(t, model.AdvertiserMonitoring, state.CurrentStatus)
	assert.Equal(t, 4, state.TotalRunsSeen)
}

func TestWinnerAndBlacklistedAreSticky(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	for _, status := range []model.AdvertiserStatus{model.AdvertiserWinner, model.AdvertiserBlacklisted} {
		id := "adv-" + string(status)
		require.NoError(t, st.UpsertAdvertiserState(ctx, model.AdvertiserState{
			AdvertiserID:  id,
			CurrentStatus: status,
			FirstSeenAt:   "2026-07-01T00:00:00Z",
			LastSeenAt:    "2026-07-01T00:00:00Z",
			TotalRunsSeen: 5,
			LastRunID:     "run-old",
			UpdatedAt:     "2026-07-01T00:00:00Z",
		}))
		seedAd(t, st, "run-9", "ad-"+id, id)
	}

	_, err := NewPass(st).Run(ctx, "run-9")
	require.NoError(t, err)

	for _, status := range []model.AdvertiserStatus{model.AdvertiserWinner, model.AdvertiserBlacklisted} {
		state, err := st.GetAdvertiserState(ctx, "adv-"+string(status))
		require.NoError(t, err)
		assert.Equal(t, status, state.CurrentStatus)
		assert.Equal(t, 6, state.TotalRunsSeen)
	}
}

func TestMainCategoryTieBreak(t *testing.T) {
	assert.Equal(t, "", mainCategory(nil))
	assert.Equal(t, "Belleza", mainCategory(map[string]int{"Belleza": 2, "Moda": 1}))
	assert.Equal(t, "Belleza", mainCategory(map[string]int{"Moda": 2, "Belleza": 2}))
}
