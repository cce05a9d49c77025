package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adscope/explorer-cli/internal/taxonomy"
)

func writeJSONL(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ads_enriched.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newValidator(t *testing.T) *ExtractionValidator {
	t.Helper()
	v, err := NewExtractionValidator(taxonomy.Default())
	require.NoError(t, err)
	return v
}

func TestValidatorAcceptsWellFormedRow(t *testing.T) {
	v := newValidator(t)
	err := v.Validate(map[string]any{
		"product_name_guess": "crema facial",
		"category":           "Belleza",
		"subcategory":        "Skincare",
		"signals":            map[string]any{"cod": true},
		"evidence":           map[string]any{"cod": []any{"pago contra entrega"}},
		"confidence":         0.9,
	})
	assert.NoError(t, err)
}

func TestValidatorRejectsBadRows(t *testing.T) {
	v := newValidator(t)

	assert.Error(t, v.Validate(map[string]any{"confidence": 1.5}),
		"confidence above 1 must fail")
	assert.Error(t, v.Validate(map[string]any{
		"confidence": 0.5,
		"category":   "Gadgets",
	}), "category outside the taxonomy must fail")
	assert.Error(t, v.Validate(map[string]any{
		"confidence": 0.5,
		"signals":    map[string]any{"cod": "yes"},
	}), "non-boolean signal must fail")
	assert.Error(t, v.Validate(map[string]any{}),
		"missing confidence must fail")
}

func TestValidatorAllowsNullCategory(t *testing.T) {
	v := newValidator(t)
	assert.NoError(t, v.Validate(map[string]any{
		"confidence": 0.3,
		"category":   nil,
	}))
}

func TestIngestExtractionsCounts(t *testing.T) {
	ctx := context.Background()
	st := ingestTestStore(t)
	v := newValidator(t)

	path := writeJSONL(t, `{"ad_archive_id": "a1", "product_name_guess": "crema facial", "category": "Belleza", "confidence": 0.9, "signals": {"cod": true}, "evidence": {"cod": ["pago contra entrega"]}}
{"ad_archive_id": "a2", "confidence": 1.7}
{"confidence": 0.5}
not json
{"adArchiveId": "a3", "category": "Moda", "confidence": 0.4}
`)

	report, err := IngestExtractions(ctx, st, "run-1", path, v)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Upserted)
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, 2, report.Skipped)

	rows, err := st.ListExtractions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byAd := map[string]int{}
	for i, ex := range rows {
		byAd[ex.AdID] = i
	}
	ex := rows[byAd["a1"]]
	assert.Equal(t, "crema facial", ex.NameGuess)
	assert.Equal(t, "Belleza", ex.Category)
	assert.True(t, ex.Signals["cod"])
	assert.Equal(t, []string{"pago contra entrega"}, ex.Evidence["cod"])
	assert.InDelta(t, 0.9, ex.Confidence, 1e-9)
}

func TestIngestExtractionsReRunOverwrites(t *testing.T) {
	ctx := context.Background()
	st := ingestTestStore(t)
	v := newValidator(t)

	first := writeJSONL(t, `{"ad_archive_id": "a1", "product_name_guess": "crema", "confidence": 0.5}`)
	_, err := IngestExtractions(ctx, st, "run-1", first, v)
	require.NoError(t, err)

	second := writeJSONL(t, `{"ad_archive_id": "a1", "product_name_guess": "crema facial", "confidence": 0.8}`)
	report, err := IngestExtractions(ctx, st, "run-1", second, v)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Upserted)

	rows, err := st.ListExtractions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "crema facial", rows[0].NameGuess)
	assert.InDelta(t, 0.8, rows[0].Confidence, 1e-9)
}

func TestIngestExtractionsMissingFile(t *testing.T) {
	st := ingestTestStore(t)
	_, err := IngestExtractions(context.Background(), st, "run-1", filepath.Join(t.TempDir(), "nope.jsonl"), newValidator(t))
	require.Error(t, err)
}
