// Package export renders per-run winner products as JSONL or an XLSX
// workbook for the research team.
package export

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/adscope/explorer-cli/internal/model"
	"github.com/adscope/explorer-cli/internal/store"
)

// Options tunes the winners export.
type Options struct {
	// Limit caps the number of winners. Zero means 50.
	Limit int
	// SampleAds caps sample ad ids per winner. Zero means 5.
	SampleAds int
}

// Exporter reads winners out of the store.
type Exporter struct {
	store store.Store
	opts  Options
}

// New creates an exporter.
func New(st store.Store, opts Options) *Exporter {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.SampleAds <= 0 {
		opts.SampleAds = 5
	}
	return &Exporter{store: st, opts: opts}
}

// Winners returns the run's top products by candidate score with sample ad
// ids attached. The unknown-product bucket is never included.
func (e *Exporter) Winners(ctx context.Context, runID string) ([]model.Winner, error) {
	winners, err := e.store.Winners(ctx, runID, e.opts.Limit)
	if err != nil {
		return nil, err
	}
	for i := range winners {
		samples, err := e.store.SampleAdIDs(ctx, runID, winners[i].ProductID, e.opts.SampleAds)
		if err != nil {
			return nil, err
		}
		winners[i].SampleAdIDs = samples
	}
	return winners, nil
}

// WriteJSONL writes one winner per line.
func (e *Exporter) WriteJSONL(winners []model.Winner, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, winner := range winners {
		if err := enc.Encode(winner); err != nil {
			return eris.Wrap(err, "export: encode winner")
		}
	}
	return nil
}

var xlsxHeader = []string{
	"product_group_id", "normalized_name", "category", "subcategory",
	"score_total", "ad_count", "advertiser_count", "avg_confidence",
	"signals", "reasons", "sample_ad_archive_ids",
}

// WriteXLSX writes winners to a single-sheet workbook at path.
func (e *Exporter) WriteXLSX(winners []model.Winner, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Winners")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range xlsxHeader {
		header.AddCell().SetString(col)
	}

	for _, w := range winners {
		row := sheet.AddRow()
		row.AddCell().SetString(w.ProductID)
		row.AddCell().SetString(w.CanonicalName)
		row.AddCell().SetString(w.Category)
		row.AddCell().SetString(w.Subcategory)
		row.AddCell().SetFloat(w.Score)
		row.AddCell().SetInt(w.AdsCount)
		row.AddCell().SetInt(w.AdvertisersCount)
		row.AddCell().SetFloat(w.AvgConfidence)
		row.AddCell().SetString(strings.Join(trueSignals(w.Signals), ", "))
		row.AddCell().SetString(strings.Join(w.Rationale.Reasons, ", "))
		row.AddCell().SetString(strings.Join(w.SampleAdIDs, ", "))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// Export resolves winners and writes them in the requested format
// ("jsonl" or "xlsx") to path.
func (e *Exporter) Export(ctx context.Context, runID, format, path string) (int, error) {
	winners, err := e.Winners(ctx, runID)
	if err != nil {
		return 0, err
	}

	switch format {
	case "jsonl":
		f, err := os.Create(path)
		if err != nil {
			return 0, eris.Wrapf(err, "export: create %s", path)
		}
		defer f.Close() //nolint:errcheck
		if err := e.WriteJSONL(winners, f); err != nil {
			return 0, err
		}
	case "xlsx":
		if err := e.WriteXLSX(winners, path); err != nil {
			return 0, err
		}
	default:
		return 0, eris.Errorf("export: unknown format %q", format)
	}

	zap.L().Info("winners exported",
		zap.String("run_id", runID),
		zap.String("format", format),
		zap.String("path", path),
		zap.Int("winners", len(winners)),
	)
	return len(winners), nil
}

func trueSignals(signals model.SignalMap) []string {
	var names []string
	for name, on := range signals {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
