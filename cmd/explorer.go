package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/adscope/explorer-cli/internal/store"
)

var explorerCmd = &cobra.Command{
	Use:   "explorer",
	Short: "Scraping-run ingestion and product intelligence passes",
	Long:  "Subcommands cover the full pipeline: ingest, extract, hash, semantic, group, advertisers, export. Each pass is idempotent per run and can be re-run safely.",
}

func init() {
	rootCmd.AddCommand(explorerCmd)
}

// openStore opens the configured store backend.
func openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}
