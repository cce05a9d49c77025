package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/adscope/explorer-cli/internal/ingest"
)

var (
	ingestRunID string
	ingestDir   string
)

var explorerIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a scraping run into the store",
	Long:  "Reads summary.json and dedup_ads.jsonl from the run directory, upserts advertisers, ads and per-run snapshots, then sweeps dormant advertisers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ing := ingest.New(st, ingest.Options{
			DormantAfterDays: cfg.Advertiser.DormantAfterDays,
		})
		report, err := ing.Run(ctx, ingestRunID, ingestDir)
		if err != nil {
			return eris.Wrap(err, "explorer ingest")
		}
		return printJSON(report)
	},
}

func init() {
	explorerIngestCmd.Flags().StringVar(&ingestRunID, "run-id", "", "run identifier (required)")
	explorerIngestCmd.Flags().StringVar(&ingestDir, "dir", ".", "run output directory")
	_ = explorerIngestCmd.MarkFlagRequired("run-id")
	explorerCmd.AddCommand(explorerIngestCmd)
}
