package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"certchain/internal/certificate"
	"certchain/internal/platform/logger"
	"certchain/internal/platform/metrics"
	"certchain/internal/platform/tracer"
	"certchain/internal/render"
)

// renderCommand previews a draft as a PDF without touching the ledger.
func renderCommand(opts *rootOptions) *cobra.Command {
	var (
		fields []string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a draft certificate to PDF without issuing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			log := logger.New(os.Stderr, cfg.Server.LogLevel)

			draft := certificate.NewDraft(certificate.RandomIDs{}, cfg.Defaults, time.Now())
			if err := applyFields(fields, draft.Update); err != nil {
				return err
			}

			dir := cfg.ExportDir
			if out != "" {
				dir = out
			}
			exporter := newExporter(log, metrics.New(prometheus.NewRegistry()), tracer.NewOTel())
			path, err := exportRecord(cmd.Context(), exporter, draft.Record(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&fields, "set", nil, "draft field assignment as field=value (repeatable)")
	cmd.Flags().StringVar(&out, "out", "", "output directory (defaults to --export-dir)")
	return cmd
}

func exportRecord(ctx context.Context, exporter *render.Exporter, record certificate.Record, dir string) (string, error) {
	artifact, err := exporter.Export(ctx, render.Mount(render.Compose(record)))
	if err != nil {
		return "", err
	}
	return render.WriteFile(dir, artifact)
}
