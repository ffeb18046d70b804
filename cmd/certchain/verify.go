package main

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"certchain/internal/platform/logger"
	"certchain/internal/verification"
)

type verifyOutput struct {
	*verification.Result
	Details          *verification.Details `json:"details,omitempty"`
	TransactionShort string                `json:"transaction_short,omitempty"`
	ExplorerURL      string                `json:"explorer_url,omitempty"`
}

func verifyCommand(opts *rootOptions) *cobra.Command {
	var export bool

	cmd := &cobra.Command{
		Use:   "verify <certificate-id>",
		Short: "Check a certificate against the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			log := logger.New(os.Stderr, cfg.Server.LogLevel)

			a, err := newApp(ctx, cfg, log, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer a.close()
			a.connect(ctx)

			res, err := a.verifier.Verify(ctx, args[0])
			if err != nil {
				return err
			}

			out := verifyOutput{
				Result:           res,
				TransactionShort: verification.AbbreviateRef(res.TransactionRef),
				ExplorerURL:      verification.ExplorerURL(res.TransactionRef),
			}
			if res.Record != nil {
				details := verification.DisplayDetails(*res.Record)
				out.Details = &details
			}
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}

			if export && res.Record != nil {
				path, err := exportRecord(ctx, a.exporter, *res.Record, cfg.ExportDir)
				if err != nil {
					return err
				}
				cmd.PrintErrln("wrote", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "write the verified certificate as a PDF document")
	return cmd
}
