package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/adscope/explorer-cli/internal/model"
	"github.com/adscope/explorer-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "export.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func seedProduct(t *testing.T, st store.Store, runID, productID, name string, score float64, ads, advertisers int, adIDs ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertProductConcept(ctx, model.ProductConcept{
		ProductID:      productID,
		CanonicalName:  name,
		Category:       "Belleza",
		Subcategory:    "Skincare",
		Signals:        model.SignalMap{"cod": true, "free_shipping": false},
		Rationale:      model.Rationale{Reasons: []string{"cod"}, AvgConfidence: 0.8},
		CandidateScore: score,
		FirstSeenAt:    "2026-08-01T00:00:00Z",
		LastSeenAt:     "2026-08-15T00:00:00Z",
	}))
	require.NoError(t, st.UpsertObservation(ctx, model.Observation{
		RunID:            runID,
		ProductID:        productID,
		AdsCount:         ads,
		AdvertisersCount: advertisers,
		AvgConfidence:    0.8,
		CreatedAt:        "2026-08-15T00:00:00Z",
	}))
	for _, adID := range adIDs {
		require.NoError(t, st.UpsertAdAssignment(ctx, model.AdAssignment{
			RunID:        runID,
			AdID:         adID,
			ProductID:    productID,
			AdvertiserID: "adv-1",
			MatchBasis:   model.BasisText,
			Confidence:   0.8,
			CreatedAt:    "2026-08-15T00:00:00Z",
		}))
	}
}

func TestWinnersAttachSamplesAndExcludeUnknown(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedProduct(t, st, "run-1", "text:crema", "crema facial", 0.9, 3, 2, "a1", "a2", "a3")
	seedProduct(t, st, "run-1", "text:reloj", "reloj inteligente", 0.5, 1, 1, "a4")
	seedProduct(t, st, "run-1", model.UnknownCluster, "", 0.0, 9, 5, "a5")

	winners, err := New(st, Options{SampleAds: 2}).Winners(ctx, "run-1")
	require.NoError(t, err)

	require.Len(t, winners, 2)
	assert.Equal(t, "text:crema", winners[0].ProductID)
	assert.Equal(t, "text:reloj", winners[1].ProductID)
	assert.Len(t, winners[0].SampleAdIDs, 2)
	assert.Subset(t, []string{"a1", "a2", "a3"}, winners[0].SampleAdIDs)
	assert.Equal(t, []string{"a4"}, winners[1].SampleAdIDs)
}

func TestWinnersHonorsLimit(t *testing.T) {
	st := newTestStore(t)
	seedProduct(t, st, "run-1", "text:a", "a", 0.9, 1, 1)
	seedProduct(t, st, "run-1", "text:b", "b", 0.8, 1, 1)

	winners, err := New(st, Options{Limit: 1}).Winners(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, "text:a", winners[0].ProductID)
}

func TestWriteJSONL(t *testing.T) {
	st := newTestStore(t)
	seedProduct(t, st, "run-1", "text:crema", "crema facial", 0.9, 3, 2, "a1")

	e := New(st, Options{})
	winners, err := e.Winners(context.Background(), "run-1")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, e.WriteJSONL(winners, &buf))

	scanner := bufio.NewScanner(&buf)
	require.True(t, scanner.Scan())
	var row map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
	assert.Equal(t, "text:crema", row["product_group_id"])
	assert.Equal(t, "crema facial", row["normalized_name"])
	assert.InDelta(t, 0.9, row["score_total"].(float64), 1e-9)
	assert.False(t, scanner.Scan())
}

func TestExportXLSX(t *testing.T) {
	st := newTestStore(t)
	seedProduct(t, st, "run-1", "text:crema", "crema facial", 0.9, 3, 2, "a1", "a2")

	path := filepath.Join(t.TempDir(), "winners.xlsx")
	count, err := New(st, Options{}).Export(context.Background(), "run-1", "xlsx", path)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "Winners", sheet.Name)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "product_group_id", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "text:crema", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "crema facial", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "cod", sheet.Rows[1].Cells[8].String())
}

func TestExportUnknownFormat(t *testing.T) {
	st := newTestStore(t)
	_, err := New(st, Options{}).Export(context.Background(), "run-1", "csv", "out.csv")
	require.Error(t, err)
}
