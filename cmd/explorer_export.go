package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adscope/explorer-cli/internal/export"
)

var (
	exportRunID  string
	exportFormat string
	exportOut    string
	exportLimit  int
)

var explorerExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the run's winner products",
	Long:  "Writes the top products by candidate score, with sample ad ids, as JSONL or an XLSX workbook. The unknown-product bucket is never exported.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		limit := exportLimit
		if limit <= 0 {
			limit = cfg.Export.Limit
		}
		out := exportOut
		if out == "" {
			out = "winners." + exportFormat
		}

		exporter := export.New(st, export.Options{
			Limit:     limit,
			SampleAds: cfg.Export.SampleAds,
		})
		count, err := exporter.Export(ctx, exportRunID, exportFormat, out)
		if err != nil {
			return eris.Wrap(err, "explorer export")
		}

		zap.L().Info("export written",
			zap.String("path", out),
			zap.Int("winners", count),
		)
		return nil
	},
}

func init() {
	explorerExportCmd.Flags().StringVar(&exportRunID, "run-id", "", "run identifier (required)")
	explorerExportCmd.Flags().StringVar(&exportFormat, "format", "jsonl", "output format: jsonl or xlsx")
	explorerExportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default winners.<format>)")
	explorerExportCmd.Flags().IntVar(&exportLimit, "limit", 0, "override export.limit")
	_ = explorerExportCmd.MarkFlagRequired("run-id")
	explorerCmd.AddCommand(explorerExportCmd)
}
