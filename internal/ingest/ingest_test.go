package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adscope/explorer-cli/internal/store"
)

func ingestTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func writeRunDir(t *testing.T, summary, jsonl string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.json"), []byte(summary), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dedup_ads.jsonl"), []byte(jsonl), 0o644))
	return dir
}

const testSummary = `{
	"timestamp": "2026-08-15T12:00:00Z",
	"queries_loaded": 10,
	"raw_count": 3,
	"dedup_count": 2,
	"unique_advertisers": 1,
	"apify_run": "job-abc",
	"params": {"country": "MX"}
}`

const testJSONL = `{"pageId": "p1", "adArchiveId": "a1", "isActive": true, "snapshot": {"page_name": "Tienda", "title": "Crema", "body": {"text": "Envio gratis"}, "link_url": "https://shop.mx/p"}}
{"pageId": "p1", "adArchiveId": "a2", "isActive": true, "snapshot": {"page_name": "Tienda", "title": "Reloj", "body": {"text": "Pago contra entrega"}}}

{"adArchiveId": "a3"}
`

func TestIngestRunHappyPath(t *testing.T) {
	ctx := context.Background()
	st := ingestTestStore(t)
	dir := writeRunDir(t, testSummary, testJSONL)

	report, err := New(st, Options{}).Run(ctx, "run-1", dir)
	require.NoError(t, err)

	assert.NotEmpty(t, report.ReportID)
	assert.True(t, report.RunInserted)
	assert.Equal(t, 1, report.NewAdvertisers)
	assert.Equal(t, 1, report.UpdatedAdvertisers)
	assert.Equal(t, 2, report.NewAds)
	assert.Equal(t, 2, report.Snapshots)
	assert.Equal(t, 1, report.SkippedAds)

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "job-abc", runs[0].ScrapeJob)
	assert.Equal(t, 2, runs[0].DedupCount)

	adv, err := st.GetAdvertiser(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, adv)
	assert.Equal(t, "Tienda", adv.PageName)
	assert.Equal(t, "active", adv.Status)

	snaps, err := st.ListSnapshots(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestIngestIdempotentPerRunAndAd(t *testing.T) {
	ctx := context.Background()
	st := ingestTestStore(t)
	dir := writeRunDir(t, testSummary, testJSONL)

	ing := New(st, Options{})
	_, err := ing.Run(ctx, "run-1", dir)
	require.NoError(t, err)

	report, err := ing.Run(ctx, "run-1", dir)
	require.NoError(t, err)

	assert.False(t, report.RunInserted)
	assert.Equal(t, 0, report.NewAdvertisers)
	assert.Equal(t, 0, report.NewAds)
	assert.Equal(t, 2, report.UpdatedAds)
	assert.Equal(t, 0, report.Snapshots)

	snaps, err := st.ListSnapshots(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestIngestRecordsProfileChangeHistory(t *testing.T) {
	ctx := context.Background()
	st := ingestTestStore(t)

	dir1 := writeRunDir(t, testSummary,
		`{"pageId": "p1", "adArchiveId": "a1", "snapshot": {"page_name": "Tienda"}}`)
	ing := New(st, Options{})
	_, err := ing.Run(ctx, "run-1", dir1)
	require.NoError(t, err)

	dir2 := writeRunDir(t, testSummary,
		`{"pageId": "p1", "adArchiveId": "a1", "snapshot": {"page_name": "Tienda Renombrada"}}`)
	_, err = ing.Run(ctx, "run-2", dir2)
	require.NoError(t, err)

	adv, err := st.GetAdvertiser(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Tienda Renombrada", adv.PageName)
}

func TestIngestMissingFilesFails(t *testing.T) {
	st := ingestTestStore(t)
	_, err := New(st, Options{}).Run(context.Background(), "run-1", t.TempDir())
	require.Error(t, err)
}
