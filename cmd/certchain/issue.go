package main

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"certchain/internal/platform/logger"
)

func issueCommand(opts *rootOptions) *cobra.Command {
	var (
		fields []string
		export bool
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Record a new certificate on the ledger",
		Example: `  certchain issue --set name="Jane Doe" --set course="BSc Computing" \
    --set proficiencies="AI, Robotics" --export`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			session := a.drafts.Create()
			if err := applyFields(fields, session.Update); err != nil {
				return err
			}
			receipt, err := session.Submit(ctx)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), receipt); err != nil {
				return err
			}

			if export {
				path, err := exportRecord(ctx, a.exporter, receipt.Record, cfg.ExportDir)
				if err != nil {
					return err
				}
				cmd.PrintErrln("wrote", path)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&fields, "set", nil, "draft field assignment as field=value (repeatable)")
	cmd.Flags().BoolVar(&export, "export", false, "write the issued certificate as a PDF document")
	return cmd
}
