package main

import (
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/adscope/explorer-cli/internal/imagehash"
	"github.com/adscope/explorer-cli/internal/ingest"
)

var (
	hashRunID   string
	hashDir     string
	hashWorkers int
)

var explorerHashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Fingerprint ad creatives",
	Long:  "Downloads each ad's lead image, computes its difference hash, and links ads sharing a creative. Hashes are cached per URL across runs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ads, err := ingest.ReadDedupAds(filepath.Join(hashDir, "dedup_ads.jsonl"))
		if err != nil {
			return eris.Wrap(err, "explorer hash")
		}

		var targets []imagehash.Target
		for _, ad := range ads {
			adID := ad.AdArchiveID()
			if adID == "" {
				continue
			}
			for _, url := range ad.ImageURLs(cfg.Media.MaxImages) {
				targets = append(targets, imagehash.Target{AdID: adID, ImageURL: url})
			}
		}

		workers := hashWorkers
		if workers <= 0 {
			workers = cfg.Media.Workers
		}
		fetcher := imagehash.NewFetcher(imagehash.FetcherOptions{
			Timeout:    time.Duration(cfg.Media.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Media.Retries,
			RatePerSec: float64(cfg.Media.RatePerSec),
		})
		pass := imagehash.NewPass(st, fetcher, imagehash.PassOptions{
			Workers:    workers,
			FlushEvery: cfg.Media.FlushEvery,
		})

		summary, err := pass.Run(ctx, hashRunID, targets)
		if err != nil {
			return eris.Wrap(err, "explorer hash")
		}
		return printJSON(summary)
	},
}

func init() {
	explorerHashCmd.Flags().StringVar(&hashRunID, "run-id", "", "run identifier (required)")
	explorerHashCmd.Flags().StringVar(&hashDir, "dir", ".", "run output directory")
	explorerHashCmd.Flags().IntVar(&hashWorkers, "workers", 0, "override media.workers")
	_ = explorerHashCmd.MarkFlagRequired("run-id")
	explorerCmd.AddCommand(explorerHashCmd)
}
