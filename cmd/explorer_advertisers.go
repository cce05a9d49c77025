package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adscope/explorer-cli/internal/advertiser"
)

var advertisersRunID string

var explorerAdvertisersCmd = &cobra.Command{
	Use:   "advertisers",
	Short: "Fold run stats and advance advertiser states",
	Long:  "Writes per-advertiser run stats (ad counts, COD and shipping signals, main category) and advances each advertiser's lifecycle state.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		summary, err := advertiser.NewPass(st).Run(ctx, advertisersRunID)
		if eris.Is(err, advertiser.ErrNoSnapshots) {
			zap.L().Warn("run has no snapshots, nothing to fold",
				zap.String("run_id", advertisersRunID))
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "explorer advertisers")
		}
		return printJSON(summary)
	},
}

func init() {
	explorerAdvertisersCmd.Flags().StringVar(&advertisersRunID, "run-id", "", "run identifier (required)")
	_ = explorerAdvertisersCmd.MarkFlagRequired("run-id")
	explorerCmd.AddCommand(explorerAdvertisersCmd)
}
