package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/adscope/explorer-cli/internal/extract"
	"github.com/adscope/explorer-cli/internal/taxonomy"
	"github.com/adscope/explorer-cli/pkg/anthropic"
)

var extractRunID string

var explorerExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the LLM product extractor",
	Long:  "Calls Claude for every snapshot of the run that has no extraction row yet and upserts the validated results.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Anthropic.Key == "" {
			return eris.New("explorer extract: anthropic.key not configured")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tax, err := taxonomy.Load(cfg.Taxonomy.Path)
		if err != nil {
			return err
		}

		pass, err := extract.NewPass(st, anthropic.NewClient(cfg.Anthropic.Key), tax, extract.Options{
			Model:     cfg.Anthropic.Model,
			MaxTokens: int64(cfg.Anthropic.MaxTokens),
		})
		if err != nil {
			return err
		}

		summary, err := pass.Run(ctx, extractRunID)
		if err != nil {
			return eris.Wrap(err, "explorer extract")
		}
		return printJSON(summary)
	},
}

func init() {
	explorerExtractCmd.Flags().StringVar(&extractRunID, "run-id", "", "run identifier (required)")
	_ = explorerExtractCmd.MarkFlagRequired("run-id")
	explorerCmd.AddCommand(explorerExtractCmd)
}
