package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"certchain/internal/binding"
	"certchain/internal/certificate"
	"certchain/internal/certificate/store"
	"certchain/internal/identity"
	"certchain/internal/identity/ethrpc"
	"certchain/internal/issuance"
	"certchain/internal/ledger"
	"certchain/internal/platform/config"
	"certchain/internal/platform/metrics"
	"certchain/internal/platform/tracer"
	"certchain/internal/render"
	"certchain/internal/verification"
)

// app holds the wired workflow services shared by every command.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	client   *ethrpc.Client
	manager  *binding.Manager
	records  *store.Store
	drafts   *issuance.Registry
	verifier *verification.Service
	exporter *render.Exporter
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(reg),
		tracer:  tracer.NewOTel(),
	}

	records, err := store.New(cfg.RecordCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create record store: %w", err)
	}
	a.records = records

	manager, err := a.newManager(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.manager = manager

	a.drafts = issuance.NewRegistry(issuance.RegistryConfig{
		Defaults: cfg.Defaults,
		Ledger:   manager,
		Records:  records,
	},
		issuance.WithLogger(logger),
		issuance.WithMetrics(a.metrics),
		issuance.WithTracer(a.tracer),
	)

	verifier, err := verification.NewService(manager,
		verification.WithRecords(records),
		verification.WithLogger(logger),
		verification.WithMetrics(a.metrics),
		verification.WithTracer(a.tracer),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	a.verifier = verifier
	a.exporter = newExporter(logger, a.metrics, a.tracer)
	return a, nil
}

func newExporter(logger *slog.Logger, m *metrics.Metrics, t tracer.Tracer) *render.Exporter {
	return render.NewExporter(
		render.WithLogger(logger),
		render.WithMetrics(m),
		render.WithTracer(t),
	)
}

func (a *app) newManager(ctx context.Context) (*binding.Manager, error) {
	opts := []binding.Option{
		binding.WithLogger(a.logger),
		binding.WithMetrics(a.metrics),
		binding.WithTracer(a.tracer),
	}

	if a.cfg.Ledger.Mode == config.ModeOffline {
		offline, err := ledger.NewOffline(
			ledger.WithDelay(a.cfg.Ledger.OfflineDelay),
			ledger.WithOfflineLogger(a.logger),
			ledger.WithOfflineMetrics(a.metrics),
			ledger.WithOfflineTracer(a.tracer),
		)
		if err != nil {
			return nil, fmt.Errorf("create offline ledger: %w", err)
		}
		a.logger.Info("ledger running in offline mode", "delay", a.cfg.Ledger.OfflineDelay)
		binder := identity.NewBinder(nil, identity.WithLogger(a.logger))
		return binding.NewManager(binder, append(opts, binding.WithOffline(offline))...)
	}

	desc, err := loadDescriptor(a.cfg.Ledger)
	if err != nil {
		return nil, err
	}
	client, err := ethrpc.Dial(ctx, a.cfg.Ledger.RPCURL,
		ethrpc.WithPollInterval(a.cfg.Ledger.PollInterval),
		ethrpc.WithLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("connect wallet provider: %w", err)
	}
	a.client = client

	binder := identity.NewBinder(client, identity.WithLogger(a.logger))
	gateway, err := ledger.NewGateway(client, binder,
		ledger.WithReceiptPolling(ledger.DefaultReceiptPoll, a.cfg.Ledger.ReceiptTimeout),
		ledger.WithLogger(a.logger),
		ledger.WithMetrics(a.metrics),
		ledger.WithTracer(a.tracer),
	)
	if err != nil {
		return nil, fmt.Errorf("create ledger gateway: %w", err)
	}
	a.logger.Info("ledger running in live mode",
		"rpc_url", a.cfg.Ledger.RPCURL,
		"deployments", len(desc.Networks),
	)
	return binding.NewManager(binder, append(opts, binding.WithGateway(gateway, desc))...)
}

// connect authorizes the wallet in live mode. Offline mode needs no wallet.
func (a *app) connect(ctx context.Context) {
	if a.manager.Mode() == ledger.ModeOffline {
		return
	}
	snap := a.manager.Connect(ctx)
	if !snap.Connected() {
		a.logger.WarnContext(ctx, "wallet not connected", "reason", snap.Message)
		return
	}
	a.logger.InfoContext(ctx, "wallet connected",
		"account", snap.Account.Hex(),
		"network", identity.NetworkName(snap.NetworkID),
	)
}

func (a *app) close() {
	if a.client != nil {
		a.client.Close()
	}
}

// loadDescriptor combines the artifact's deployments with explicitly listed
// ones; explicit entries win.
func loadDescriptor(cfg config.Ledger) (*ledger.Descriptor, error) {
	desc := ledger.NewDescriptor(nil)
	if cfg.ArtifactPath != "" {
		loaded, err := ledger.LoadArtifactFile(cfg.ArtifactPath)
		if err != nil {
			return nil, err
		}
		desc = loaded
	}
	if cfg.Deployments != "" {
		networks, err := ledger.ParseDeployments(cfg.Deployments)
		if err != nil {
			return nil, err
		}
		desc.Merge(networks)
	}
	return desc, nil
}

// applyFields parses field=value assignments onto a draft.
func applyFields(assignments []string, update func(certificate.Field, string) error) error {
	for _, kv := range assignments {
		field, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid assignment %q: expected field=value", kv)
		}
		if err := update(certificate.Field(strings.TrimSpace(field)), value); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
