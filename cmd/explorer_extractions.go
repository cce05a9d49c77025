package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/adscope/explorer-cli/internal/ingest"
	"github.com/adscope/explorer-cli/internal/taxonomy"
)

var (
	extractionsRunID string
	extractionsInput string
)

var explorerExtractionsCmd = &cobra.Command{
	Use:   "extractions",
	Short: "Ingest precomputed extraction rows",
	Long:  "Loads an ads_enriched.jsonl file into ad_extractions. Rows failing schema validation are counted and skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tax, err := taxonomy.Load(cfg.Taxonomy.Path)
		if err != nil {
			return err
		}
		validator, err := ingest.NewExtractionValidator(tax)
		if err != nil {
			return err
		}

		report, err := ingest.IngestExtractions(ctx, st, extractionsRunID, extractionsInput, validator)
		if err != nil {
			return eris.Wrap(err, "explorer extractions")
		}
		return printJSON(report)
	},
}

func init() {
	explorerExtractionsCmd.Flags().StringVar(&extractionsRunID, "run-id", "", "run identifier (required)")
	explorerExtractionsCmd.Flags().StringVar(&extractionsInput, "input", "ads_enriched.jsonl", "extractions JSONL file")
	_ = explorerExtractionsCmd.MarkFlagRequired("run-id")
	explorerCmd.AddCommand(explorerExtractionsCmd)
}
