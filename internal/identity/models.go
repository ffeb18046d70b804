package identity

//go:generate mockgen -source=models.go -destination=mocks/mocks.go -package=mocks Provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// ConnectionState is the wallet connection lifecycle.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

// User-facing connection messages.
const (
	MsgProviderNotDetected = "provider not detected"
	MsgAuthorizationDenied = "authorization denied"
	MsgNetworkUnavailable  = "network unavailable"
)

// Provider errors. Provider implementations wrap these so the binder can pick
// the right user-facing message.
var (
	ErrProviderNotDetected = errors.New(MsgProviderNotDetected)
	ErrAuthorizationDenied = errors.New(MsgAuthorizationDenied)
)

// Snapshot is an immutable view of the identity binding.
// State == StateConnected implies a non-zero Account and NetworkID.
type Snapshot struct {
	Account   common.Address  `json:"account"`
	NetworkID uint64          `json:"network_id"`
	State     ConnectionState `json:"state"`
	Message   string          `json:"message,omitempty"`
	// Generation increases on every network change. Ledger bindings are
	// stamped with it so a binding created before a change is detectably stale.
	Generation uint64 `json:"generation"`
}

// HasAccount reports whether an account is bound.
func (s Snapshot) HasAccount() bool {
	return s.Account != (common.Address{})
}

// Connected reports whether the binding is usable for signing.
func (s Snapshot) Connected() bool {
	return s.State == StateConnected
}

// EventKind classifies binder events.
type EventKind string

const (
	EventAccountChanged EventKind = "account_changed"
	EventNetworkChanged EventKind = "network_changed"
	EventStateChanged   EventKind = "state_changed"
)

// Event is published to binder subscribers after each mutation.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
}

// ProviderEventKind mirrors the wallet provider's event names.
type ProviderEventKind string

const (
	ProviderAccountsChanged ProviderEventKind = "accountsChanged"
	ProviderChainChanged    ProviderEventKind = "chainChanged"
)

// ProviderEvent is emitted by a provider. Accounts is only set for
// accountsChanged; chainChanged carries no payload.
type ProviderEvent struct {
	Kind     ProviderEventKind
	Accounts []common.Address
}

// Provider is the wallet integration supplying accounts and network identity.
type Provider interface {
	// RequestAccounts asks the wallet to authorize account access.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// NetworkID returns the network the wallet is currently on.
	NetworkID(ctx context.Context) (uint64, error)
	// Subscribe delivers provider events to sink until the subscription is
	// released or ctx ends.
	Subscribe(ctx context.Context, sink chan<- ProviderEvent) (event.Subscription, error)
}

var knownNetworks = map[uint64]string{
	1:     "Mainnet",
	5:     "Goerli",
	80001: "Mumbai",
}

// NetworkName returns a display label for a network id.
func NetworkName(networkID uint64) string {
	if name, ok := knownNetworks[networkID]; ok {
		return name
	}
	return fmt.Sprintf("ID: %d", networkID)
}
