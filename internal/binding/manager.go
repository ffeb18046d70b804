// Package binding owns the identity binding and the ledger capability derived
// from it. It is the single writer of both; workflows only read.
package binding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"certchain/internal/identity"
	"certchain/internal/ledger"
	"certchain/internal/platform/metrics"
	"certchain/internal/platform/tracer"
	dErrors "certchain/pkg/domain-errors"
)

const msgNotConnected = "wallet not connected"

// Manager re-creates the ledger binding whenever the identity binding moves
// to a new network generation.
type Manager struct {
	binder  *identity.Binder
	gateway *ledger.Gateway
	desc    *ledger.Descriptor
	offline *ledger.Offline

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer

	// refresh serializes rebinds; each one reads the binder's latest
	// snapshot, so the last write always reflects the newest network.
	refresh sync.Mutex

	mu      sync.RWMutex
	current *ledger.Binding
	bindErr error
}

// Option configures a Manager.
type Option func(*Manager)

// WithGateway selects live mode against the given deployments.
func WithGateway(gateway *ledger.Gateway, desc *ledger.Descriptor) Option {
	return func(m *Manager) {
		m.gateway = gateway
		m.desc = desc
	}
}

// WithOffline selects the offline simulation.
func WithOffline(offline *ledger.Offline) Option {
	return func(m *Manager) {
		m.offline = offline
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(m *Manager) {
		m.tracer = t
	}
}

// NewManager requires a binder and exactly one of WithGateway or WithOffline.
func NewManager(binder *identity.Binder, opts ...Option) (*Manager, error) {
	m := &Manager{
		binder:  binder,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:  tracer.NewNoop(),
		bindErr: dErrors.New(dErrors.CodeUnavailable, msgNotConnected),
	}
	for _, opt := range opts {
		opt(m)
	}
	if binder == nil {
		return nil, errors.New("identity binder is required")
	}
	live := m.gateway != nil
	if live == (m.offline != nil) {
		return nil, errors.New("exactly one of a ledger gateway or an offline ledger is required")
	}
	if live && m.desc == nil {
		return nil, errors.New("deployment descriptor is required in live mode")
	}
	return m, nil
}

// Mode reports which ledger variant the manager serves.
func (m *Manager) Mode() ledger.Mode {
	if m.offline != nil {
		return ledger.ModeOffline
	}
	return ledger.ModeLive
}

// Snapshot returns the current identity binding.
func (m *Manager) Snapshot() identity.Snapshot {
	return m.binder.Snapshot()
}

// Connect runs the wallet authorization flow and rebinds the ledger. It is
// also the explicit retry path after a connectivity failure.
func (m *Manager) Connect(ctx context.Context) identity.Snapshot {
	snap := m.binder.Connect(ctx)
	m.rebind(ctx)
	return snap
}

// Capability returns the ledger capability for the next call. In live mode
// the binding may be stale if a network change has not been processed yet;
// calls on it then fail with a network mismatch.
func (m *Manager) Capability() (ledger.Capability, error) {
	if m.offline != nil {
		return m.offline, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, m.bindErr
	}
	return m.current, nil
}

// Locator returns the transaction locator of the current capability, if any.
func (m *Manager) Locator() (ledger.TransactionLocator, bool) {
	if m.offline != nil {
		return m.offline, true
	}
	if m.gateway == nil {
		return nil, false
	}
	return m.gateway, true
}

// Run pumps provider events through the binder and rebinds on every change
// of network generation or connection state. It returns when ctx ends or the
// provider subscription fails.
func (m *Manager) Run(ctx context.Context) error {
	// Events only signal that the binding may have moved. The binder drops
	// events for a full subscriber, so every event re-reads the latest
	// snapshot instead of trusting its payload.
	events, release := m.binder.Subscribe()
	defer release()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.binder.Run(ctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-events:
				if !ok {
					return nil
				}
				if m.needsRebind(m.binder.Snapshot()) {
					m.rebind(ctx)
				}
			}
		}
	})
	return g.Wait()
}

func (m *Manager) needsRebind(snap identity.Snapshot) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return snap.Connected()
	}
	return !snap.Connected() ||
		m.current.Generation() != snap.Generation ||
		m.current.NetworkID() != snap.NetworkID
}

func (m *Manager) rebind(ctx context.Context) {
	if m.offline != nil {
		return
	}
	m.refresh.Lock()
	defer m.refresh.Unlock()

	snap := m.binder.Snapshot()
	_, span := m.tracer.Start(ctx, tracer.SpanBindingRefresh,
		tracer.Uint64(tracer.AttrNetworkID, snap.NetworkID),
		tracer.Uint64(tracer.AttrGeneration, snap.Generation),
	)

	var (
		next    *ledger.Binding
		bindErr error
	)
	switch {
	case !snap.Connected():
		msg := snap.Message
		if msg == "" {
			msg = msgNotConnected
		}
		bindErr = dErrors.New(dErrors.CodeUnavailable, msg)
	default:
		b, err := m.gateway.Bind(m.desc, snap)
		if err != nil {
			bindErr = ledger.AsDomainError(err)
		} else {
			next = b
		}
	}

	m.mu.Lock()
	m.current = next
	m.bindErr = bindErr
	m.mu.Unlock()

	outcome := "bound"
	var boundNetwork uint64
	if next != nil {
		boundNetwork = next.NetworkID()
		m.logger.InfoContext(ctx, "ledger rebound",
			"network_id", snap.NetworkID,
			"generation", snap.Generation,
		)
	} else {
		outcome = string(dErrors.CodeOf(bindErr))
		m.logger.WarnContext(ctx, "ledger unbound",
			"network_id", snap.NetworkID,
			"generation", snap.Generation,
			"reason", bindErr.Error(),
		)
	}
	if m.metrics != nil {
		m.metrics.RecordBindingRefresh(outcome, boundNetwork)
	}
	span.End(nil)
}
