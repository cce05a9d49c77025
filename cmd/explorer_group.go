package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adscope/explorer-cli/internal/grouper"
)

var explorerGroupCmd = &cobra.Command{
	Use:   "group <run-id>",
	Short: "Aggregate ads into scored product concepts",
	Long:  "Resolves each extracted ad to a product identity (visual hash, then semantic cluster, then normalized text), folds the run into product concepts, and scores them.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runID := args[0]

		if err := cfg.Grouper.Validate(); err != nil {
			return eris.Wrap(err, "explorer group")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		pass := grouper.NewPass(st, grouper.PassOptions{
			SignalWeights:     cfg.Grouper.SignalWeights,
			EvidencePerSignal: cfg.Grouper.EvidencePerSignal,
		})

		summary, err := pass.Run(ctx, runID)
		if eris.Is(err, grouper.ErrNoExtractions) {
			zap.L().Error("run has no extractions, nothing to group",
				zap.String("run_id", runID))
			return eris.Wrap(err, "explorer group")
		}
		if err != nil {
			return eris.Wrap(err, "explorer group")
		}
		return printJSON(summary)
	},
}

func init() {
	explorerCmd.AddCommand(explorerGroupCmd)
}
