// Package identity tracks which wallet account and network the client is bound
// to. The Binder is the only writer of that state; everything else reads
// snapshots or subscribes to change events.
package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// subscriberBuffer is the per-subscriber event backlog. Events beyond it are
// dropped for that subscriber; readers must re-read Snapshot on every event.
const subscriberBuffer = 8

// Binder owns the identity binding and its provider event subscription.
type Binder struct {
	provider Provider
	logger   *slog.Logger

	mu   sync.RWMutex
	snap Snapshot

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// Option configures a Binder.
type Option func(*Binder)

// WithLogger sets the logger for the binder.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Binder) {
		b.logger = logger
	}
}

// NewBinder creates a disconnected binder. A nil provider means no wallet is
// installed; Connect then reports "provider not detected".
func NewBinder(provider Provider, opts ...Option) *Binder {
	b := &Binder{
		provider: provider,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		snap:     Snapshot{State: StateDisconnected},
		subs:     make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Snapshot returns the current binding.
func (b *Binder) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

// Connect requests provider authorization and binds the first authorized
// account and the provider's network. Failures land in StateError with a
// user-facing message; Connect itself never fails.
func (b *Binder) Connect(ctx context.Context) Snapshot {
	if b.provider == nil {
		return b.fail(ctx, MsgProviderNotDetected, nil)
	}

	b.update(EventStateChanged, func(s *Snapshot) {
		s.State = StateConnecting
		s.Message = ""
	})

	accounts, err := b.provider.RequestAccounts(ctx)
	if err != nil {
		if errors.Is(err, ErrProviderNotDetected) {
			return b.fail(ctx, MsgProviderNotDetected, err)
		}
		return b.fail(ctx, MsgAuthorizationDenied, err)
	}
	if len(accounts) == 0 {
		return b.fail(ctx, MsgAuthorizationDenied, nil)
	}

	networkID, err := b.provider.NetworkID(ctx)
	if err != nil || networkID == 0 {
		return b.fail(ctx, MsgNetworkUnavailable, err)
	}

	snap := b.update(EventStateChanged, func(s *Snapshot) {
		if s.NetworkID != networkID {
			s.Generation++
		}
		s.Account = accounts[0]
		s.NetworkID = networkID
		s.State = StateConnected
		s.Message = ""
	})
	b.logger.InfoContext(ctx, "wallet connected",
		"account", snap.Account.Hex(),
		"network_id", snap.NetworkID,
		"network", NetworkName(snap.NetworkID),
	)
	return snap
}

// OnAccountsChanged replaces the bound account with the first entry. An empty
// list means the wallet revoked access and the binding becomes disconnected.
func (b *Binder) OnAccountsChanged(accounts []common.Address) Snapshot {
	snap := b.update(EventAccountChanged, func(s *Snapshot) {
		if len(accounts) == 0 {
			s.Account = common.Address{}
			s.State = StateDisconnected
			s.Message = ""
			return
		}
		s.Account = accounts[0]
		if s.NetworkID != 0 {
			s.State = StateConnected
			s.Message = ""
		}
	})
	b.logger.Info("wallet account changed", "account", snap.Account.Hex(), "state", snap.State)
	return snap
}

// OnNetworkChanged records a network switch. Every switch bumps the
// generation, invalidating all ledger bindings made before it.
func (b *Binder) OnNetworkChanged(networkID uint64) Snapshot {
	snap := b.update(EventNetworkChanged, func(s *Snapshot) {
		s.Generation++
		s.NetworkID = networkID
		if networkID == 0 && s.State == StateConnected {
			s.State = StateError
			s.Message = MsgNetworkUnavailable
		}
	})
	b.logger.Warn("wallet network changed, ledger bindings invalidated",
		"network_id", snap.NetworkID,
		"network", NetworkName(snap.NetworkID),
		"generation", snap.Generation,
	)
	return snap
}

// Run pumps provider events into the binder until ctx ends or the provider
// subscription fails. The provider subscription is released on return.
func (b *Binder) Run(ctx context.Context) error {
	if b.provider == nil {
		<-ctx.Done()
		return nil
	}

	events := make(chan ProviderEvent, subscriberBuffer)
	sub, err := b.provider.Subscribe(ctx, events)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case ev := <-events:
			b.handleProviderEvent(ctx, ev)
		}
	}
}

func (b *Binder) handleProviderEvent(ctx context.Context, ev ProviderEvent) {
	switch ev.Kind {
	case ProviderAccountsChanged:
		b.OnAccountsChanged(ev.Accounts)
	case ProviderChainChanged:
		networkID, err := b.provider.NetworkID(ctx)
		if err != nil {
			b.logger.ErrorContext(ctx, "failed to read network after chainChanged", "error", err)
			networkID = 0
		}
		b.OnNetworkChanged(networkID)
	default:
		b.logger.WarnContext(ctx, "ignoring unknown provider event", "kind", ev.Kind)
	}
}

// Subscribe returns a channel of binder events and a release function. The
// channel is closed on release. Release is idempotent.
func (b *Binder) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.subMu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.subMu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			b.subMu.Lock()
			delete(b.subs, id)
			b.subMu.Unlock()
			close(ch)
		})
	}
	return ch, release
}

func (b *Binder) fail(ctx context.Context, message string, cause error) Snapshot {
	snap := b.update(EventStateChanged, func(s *Snapshot) {
		s.State = StateError
		s.Message = message
	})
	b.logger.WarnContext(ctx, "wallet connection failed", "reason", message, "error", cause)
	return snap
}

func (b *Binder) update(kind EventKind, mutate func(*Snapshot)) Snapshot {
	b.mu.Lock()
	mutate(&b.snap)
	snap := b.snap
	b.mu.Unlock()

	b.publish(Event{Kind: kind, Snapshot: snap})
	return snap
}

func (b *Binder) publish(ev Event) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
