// Package ledger is the gateway to the certification contract. It exposes a
// Capability with two variants: a live Binding scoped to one network identity
// and an Offline simulation used for demos and tests.
package ledger

//go:generate mockgen -source=capability.go -destination=mocks/mocks.go -package=mocks Capability,TransactionLocator,Backend,IdentitySource

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"certchain/internal/identity"
)

// Mode labels which capability variant served a call.
type Mode string

const (
	ModeLive    Mode = "live"
	ModeOffline Mode = "offline"
)

// Methods of the certification contract.
const (
	MethodGenerateCertificate = "generateCertificate"
	MethodIsVerified          = "isVerified"
	MethodGetCertificateData  = "getCertificateData"
)

// TransactionRef is an opaque transaction identifier (a 0x-prefixed hash).
type TransactionRef string

func (r TransactionRef) String() string {
	return string(r)
}

// Result holds the decoded outputs of a query, in declaration order.
type Result struct {
	Names  []string
	Values []any
}

// Bool returns the single boolean output of a query.
func (r Result) Bool() (bool, error) {
	if len(r.Values) != 1 {
		return false, fmt.Errorf("expected 1 output, got %d", len(r.Values))
	}
	v, ok := r.Values[0].(bool)
	if !ok {
		return false, fmt.Errorf("expected bool output, got %T", r.Values[0])
	}
	return v, nil
}

// Strings returns the string outputs keyed by output name.
func (r Result) Strings() (map[string]string, error) {
	if len(r.Names) != len(r.Values) {
		return nil, fmt.Errorf("output names and values differ in length: %d != %d", len(r.Names), len(r.Values))
	}
	out := make(map[string]string, len(r.Values))
	for i, v := range r.Values {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("output %q: expected string, got %T", r.Names[i], v)
		}
		out[r.Names[i]] = s
	}
	return out, nil
}

// Capability is what the workflows need from the ledger.
type Capability interface {
	Mode() Mode
	// Invoke submits a state-changing call from the given account and waits
	// for it to be accepted. It is never retried.
	Invoke(ctx context.Context, method string, args []any, from common.Address) (TransactionRef, error)
	// Query performs a read-only call.
	Query(ctx context.Context, method string, args []any) (Result, error)
}

// TransactionLocator is implemented by capabilities that can report which
// transaction issued a certificate.
type TransactionLocator interface {
	IssuingTransaction(ctx context.Context, certificateID string) (TransactionRef, bool)
}

// Backend is the JSON-RPC transport a live binding talks through.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// IdentitySource reports the live identity binding.
type IdentitySource interface {
	Snapshot() identity.Snapshot
}
