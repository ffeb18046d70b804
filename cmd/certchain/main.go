// Command certchain issues and verifies academic certificates recorded on a
// certification contract, and renders them as PDF documents.
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"certchain/internal/platform/config"
	"certchain/internal/platform/health"
)

// rootOptions are the persistent flags. Each one overrides its CERTCHAIN_*
// environment variable only when set explicitly.
type rootOptions struct {
	mode         string
	rpcURL       string
	artifact     string
	deployments  string
	logLevel     string
	exportDir    string
	offlineDelay time.Duration
}

func main() {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "certchain",
		Short:        "Issue, verify, and render blockchain-backed academic certificates",
		Version:      health.Version,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.mode, "mode", string(config.ModeOffline), "ledger mode: live or offline")
	flags.StringVar(&opts.rpcURL, "rpc-url", "", "wallet JSON-RPC endpoint (live mode)")
	flags.StringVar(&opts.artifact, "artifact", "", "compiled contract artifact with deployments (live mode)")
	flags.StringVar(&opts.deployments, "deployments", "", "extra deployments as networkID=address[,...] (live mode)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&opts.exportDir, "export-dir", "exports", "directory PDF documents are written to")
	flags.DurationVar(&opts.offlineDelay, "offline-delay", 0, "simulated ledger latency (offline mode)")

	rootCmd.AddCommand(
		serveCommand(opts),
		verifyCommand(opts),
		issueCommand(opts),
		renderCommand(opts),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// config loads the environment configuration and applies explicitly set
// flags before validating.
func (o *rootOptions) config(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Ledger.Mode = config.Mode(o.mode)
	}
	if flags.Changed("rpc-url") {
		cfg.Ledger.RPCURL = o.rpcURL
	}
	if flags.Changed("artifact") {
		cfg.Ledger.ArtifactPath = o.artifact
	}
	if flags.Changed("deployments") {
		cfg.Ledger.Deployments = o.deployments
	}
	if flags.Changed("log-level") {
		cfg.Server.LogLevel = o.logLevel
	}
	if flags.Changed("export-dir") {
		cfg.ExportDir = o.exportDir
	}
	if flags.Changed("offline-delay") {
		cfg.Ledger.OfflineDelay = o.offlineDelay
	}
	if flags.Lookup("addr") != nil && flags.Changed("addr") {
		cfg.Server.Addr, _ = flags.GetString("addr")
	}
	return cfg, cfg.Validate()
}
