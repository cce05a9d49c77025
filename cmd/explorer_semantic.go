package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/adscope/explorer-cli/internal/semantic"
	"github.com/adscope/explorer-cli/pkg/openai"
)

var (
	semanticRunID     string
	semanticThreshold float64
)

var explorerSemanticCmd = &cobra.Command{
	Use:   "semantic",
	Short: "Cluster product names by embedding",
	Long:  "Embeds the run's distinct product-name guesses, clusters them agglomeratively, and writes the name-to-cluster map with elected canonical names.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.OpenAI.Key == "" {
			return eris.New("explorer semantic: openai.key not configured")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		threshold := semanticThreshold
		if threshold <= 0 {
			threshold = cfg.Semantic.DistanceThreshold
		}
		client := openai.NewClient(cfg.OpenAI.Key, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		pass := semantic.NewPass(st, client, semantic.PassOptions{
			Model:             cfg.Semantic.Model,
			BatchSize:         cfg.Semantic.BatchSize,
			DistanceThreshold: threshold,
		})

		summary, err := pass.Run(ctx, semanticRunID)
		if err != nil {
			return eris.Wrap(err, "explorer semantic")
		}
		return printJSON(summary)
	},
}

func init() {
	explorerSemanticCmd.Flags().StringVar(&semanticRunID, "run-id", "", "run identifier (required)")
	explorerSemanticCmd.Flags().Float64Var(&semanticThreshold, "threshold", 0, "override semantic.distance_threshold")
	_ = explorerSemanticCmd.MarkFlagRequired("run-id")
	explorerCmd.AddCommand(explorerSemanticCmd)
}
