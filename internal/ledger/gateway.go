package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"certchain/internal/identity"
	"certchain/internal/platform/metrics"
	"certchain/internal/platform/tracer"
)

const (
	DefaultReceiptPoll    = time.Second
	DefaultReceiptTimeout = 2 * time.Minute
	DefaultSeedCacheSize  = 1024
)

// Gateway creates live bindings against a JSON-RPC backend. It is safe for
// concurrent use; bindings share its transport and transaction seeds.
type Gateway struct {
	backend  Backend
	identity IdentitySource
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   tracer.Tracer

	receiptPoll    time.Duration
	receiptTimeout time.Duration
	seedCacheSize  int

	// seeds maps certificate ids to the transaction that issued them in this
	// process. The contract exposes no lookup for it.
	seeds *lru.Cache[string, TransactionRef]
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = t
	}
}

// WithReceiptPolling sets how often and how long Invoke waits for a receipt.
func WithReceiptPolling(interval, timeout time.Duration) Option {
	return func(g *Gateway) {
		if interval > 0 {
			g.receiptPoll = interval
		}
		if timeout > 0 {
			g.receiptTimeout = timeout
		}
	}
}

// WithSeedCacheSize bounds the number of remembered issuing transactions.
func WithSeedCacheSize(size int) Option {
	return func(g *Gateway) {
		if size > 0 {
			g.seedCacheSize = size
		}
	}
}

// NewGateway creates a gateway. identity supplies the live snapshot every
// binding is checked against before each call.
func NewGateway(backend Backend, identity IdentitySource, opts ...Option) (*Gateway, error) {
	if backend == nil {
		return nil, fmt.Errorf("ledger backend is required")
	}
	if identity == nil {
		return nil, fmt.Errorf("identity source is required")
	}
	g := &Gateway{
		backend:        backend,
		identity:       identity,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:         tracer.NewNoop(),
		receiptPoll:    DefaultReceiptPoll,
		receiptTimeout: DefaultReceiptTimeout,
		seedCacheSize:  DefaultSeedCacheSize,
	}
	for _, opt := range opts {
		opt(g)
	}
	seeds, err := lru.New[string, TransactionRef](g.seedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create transaction seed cache: %w", err)
	}
	g.seeds = seeds
	return g, nil
}

// Bind scopes the contract to the network identity in snap. It fails with
// KindNetworkNotProvisioned when desc has no deployment on that network.
func (g *Gateway) Bind(desc *Descriptor, snap identity.Snapshot) (*Binding, error) {
	address, ok := desc.Address(snap.NetworkID)
	if !ok {
		return nil, newError(KindNetworkNotProvisioned, "", snap.NetworkID,
			fmt.Errorf("no contract deployment on network %s", identity.NetworkName(snap.NetworkID)))
	}
	g.logger.Info("ledger binding created",
		"network_id", snap.NetworkID,
		"generation", snap.Generation,
		"contract", address.Hex(),
	)
	return &Binding{
		gateway:    g,
		abi:        desc.ABI,
		address:    address,
		networkID:  snap.NetworkID,
		generation: snap.Generation,
	}, nil
}

// IssuingTransaction returns the transaction that issued certificateID, if it
// was issued through this gateway.
func (g *Gateway) IssuingTransaction(_ context.Context, certificateID string) (TransactionRef, bool) {
	return g.seeds.Get(certificateID)
}

func (g *Gateway) seed(certificateID string, ref TransactionRef) {
	if certificateID == "" {
		return
	}
	g.seeds.Add(certificateID, ref)
}

func (g *Gateway) observe(method string, start time.Time, err error) {
	if g.metrics == nil {
		return
	}
	g.metrics.ObserveLedgerCall(method, string(ModeLive), outcome(err), time.Since(start).Seconds())
}

// outcome is the metrics label for a ledger call result.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if lerr, ok := err.(*Error); ok {
		return string(lerr.Kind)
	}
	return "error"
}
