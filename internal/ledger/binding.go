package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"certchain/internal/platform/tracer"
)

var (
	errNoAccount = errors.New("no authorized account")
	errReverted  = errors.New("execution reverted")
)

// Binding is a live contract binding valid for exactly one network identity.
// After a network change every call fails with KindNetworkMismatch; the
// owner must create a new binding.
type Binding struct {
	gateway    *Gateway
	abi        abi.ABI
	address    common.Address
	networkID  uint64
	generation uint64
}

func (b *Binding) Mode() Mode {
	return ModeLive
}

func (b *Binding) NetworkID() uint64 {
	return b.networkID
}

func (b *Binding) Generation() uint64 {
	return b.generation
}

func (b *Binding) Address() common.Address {
	return b.address
}

// Current reports whether the binding still matches the live identity.
func (b *Binding) Current() bool {
	return b.checkCurrent("") == nil
}

func (b *Binding) checkCurrent(method string) error {
	snap := b.gateway.identity.Snapshot()
	if snap.NetworkID == b.networkID && snap.Generation == b.generation {
		return nil
	}
	return newError(KindNetworkMismatch, method, b.networkID, fmt.Errorf(
		"binding is for network %d (generation %d), wallet is on network %d (generation %d)",
		b.networkID, b.generation, snap.NetworkID, snap.Generation,
	))
}

// Invoke packs and submits a state-changing call and waits for its receipt.
// Provider rejection, a timeout or a reverted receipt fail with
// KindInvocationRejected carrying the reason.
func (b *Binding) Invoke(ctx context.Context, method string, args []any, from common.Address) (ref TransactionRef, err error) {
	start := time.Now()
	ctx, span := b.gateway.tracer.Start(ctx, tracer.SpanLedgerInvoke,
		tracer.String(tracer.AttrMethod, method),
		tracer.String(tracer.AttrMode, string(ModeLive)),
		tracer.Uint64(tracer.AttrNetworkID, b.networkID),
		tracer.Uint64(tracer.AttrGeneration, b.generation),
	)
	defer func() {
		b.gateway.observe(method, start, err)
		span.End(err)
	}()

	if err := b.checkCurrent(method); err != nil {
		return "", err
	}
	if from == (common.Address{}) {
		return "", newError(KindInvocationRejected, method, b.networkID, errNoAccount)
	}

	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return "", newError(KindInvocationRejected, method, b.networkID, fmt.Errorf("encode arguments: %w", err))
	}

	hash, err := b.gateway.backend.SendTransaction(ctx, from, b.address, data)
	if err != nil {
		return "", newError(KindInvocationRejected, method, b.networkID, err)
	}
	span.SetAttributes(tracer.String(tracer.AttrTransaction, hash.Hex()))

	receipt, err := b.waitReceipt(ctx, hash, span)
	if err != nil {
		return "", newError(KindInvocationRejected, method, b.networkID, err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return "", newError(KindInvocationRejected, method, b.networkID, errReverted)
	}

	ref = TransactionRef(hash.Hex())
	if method == MethodGenerateCertificate && len(args) > 0 {
		if certificateID, ok := args[0].(string); ok {
			b.gateway.seed(certificateID, ref)
		}
	}
	b.gateway.logger.InfoContext(ctx, "ledger transaction confirmed",
		"method", method,
		"tx", ref,
		"block", receipt.BlockNumber,
		"network_id", b.networkID,
	)
	return ref, nil
}

func (b *Binding) waitReceipt(ctx context.Context, hash common.Hash, span tracer.Span) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, b.gateway.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(b.gateway.receiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := b.gateway.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("fetch receipt: %w", err)
		}
		span.AddEvent(tracer.EventReceiptPending)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for receipt of %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Query performs a read-only call and decodes its outputs. Failures leave the
// binding valid.
func (b *Binding) Query(ctx context.Context, method string, args []any) (res Result, err error) {
	start := time.Now()
	ctx, span := b.gateway.tracer.Start(ctx, tracer.SpanLedgerQuery,
		tracer.String(tracer.AttrMethod, method),
		tracer.String(tracer.AttrMode, string(ModeLive)),
		tracer.Uint64(tracer.AttrNetworkID, b.networkID),
	)
	defer func() {
		b.gateway.observe(method, start, err)
		span.End(err)
	}()

	if err := b.checkCurrent(method); err != nil {
		return Result{}, err
	}

	m, ok := b.abi.Methods[method]
	if !ok {
		return Result{}, newError(KindQueryFailed, method, b.networkID, fmt.Errorf("method not in contract abi"))
	}
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return Result{}, newError(KindQueryFailed, method, b.networkID, fmt.Errorf("encode arguments: %w", err))
	}

	out, err := b.gateway.backend.CallContract(ctx, ethereum.CallMsg{To: &b.address, Data: data}, nil)
	if err != nil {
		return Result{}, newError(KindQueryFailed, method, b.networkID, err)
	}
	values, err := b.abi.Unpack(method, out)
	if err != nil {
		return Result{}, newError(KindQueryFailed, method, b.networkID, fmt.Errorf("decode outputs: %w", err))
	}

	names := make([]string, len(m.Outputs))
	for i, o := range m.Outputs {
		names[i] = o.Name
	}
	return Result{Names: names, Values: values}, nil
}

// IssuingTransaction delegates to the gateway's seeds.
func (b *Binding) IssuingTransaction(ctx context.Context, certificateID string) (TransactionRef, bool) {
	return b.gateway.IssuingTransaction(ctx, certificateID)
}

var (
	_ Capability         = (*Binding)(nil)
	_ TransactionLocator = (*Binding)(nil)
)
