// Package ethrpc adapts a JSON-RPC wallet endpoint to the identity provider
// contract and to the ledger's transport backend.
package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"

	"certchain/internal/identity"
)

// JSON-RPC error codes the client reacts to.
const (
	codeUserRejected   = 4001
	codeMethodNotFound = -32601
)

// DefaultPollInterval is how often Subscribe re-reads accounts and network.
const DefaultPollInterval = 2 * time.Second

// Client speaks to a wallet-backed node. Nodes do not push wallet events over
// plain HTTP, so Subscribe polls and diffs.
type Client struct {
	rpc          *rpc.Client
	eth          *ethclient.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithPollInterval sets the Subscribe polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Dial connects to a wallet endpoint. An unreachable endpoint is reported as
// identity.ErrProviderNotDetected.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, identity.ErrProviderNotDetected
	}
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %w", url, identity.ErrProviderNotDetected, err)
	}
	return New(c, opts...), nil
}

// New wraps an established RPC client.
func New(c *rpc.Client, opts ...Option) *Client {
	client := &Client{
		rpc:          c,
		eth:          ethclient.NewClient(c),
		pollInterval: DefaultPollInterval,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// RequestAccounts asks the wallet for account access. Nodes without the
// wallet authorization method fall back to their unlocked accounts.
func (c *Client) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	err := c.rpc.CallContext(ctx, &accounts, "eth_requestAccounts")
	if err == nil {
		return accounts, nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected:
			return nil, fmt.Errorf("%w: %w", identity.ErrAuthorizationDenied, err)
		case codeMethodNotFound:
			return c.accounts(ctx)
		}
	}
	if unreachable(ctx, err) {
		return nil, fmt.Errorf("request accounts: %w: %w", identity.ErrProviderNotDetected, err)
	}
	return nil, fmt.Errorf("request accounts: %w", err)
}

func (c *Client) accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := c.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		if unreachable(ctx, err) {
			return nil, fmt.Errorf("list accounts: %w: %w", identity.ErrProviderNotDetected, err)
		}
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// unreachable reports a transport failure: the endpoint never produced a
// JSON-RPC or HTTP answer. The caller's own cancellation does not count.
func unreachable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// NetworkID returns the node's network id.
func (c *Client) NetworkID(ctx context.Context) (uint64, error) {
	id, err := c.eth.NetworkID(ctx)
	if err != nil {
		return 0, fmt.Errorf("read network id: %w", err)
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("network id %s out of range", id)
	}
	return id.Uint64(), nil
}

// Subscribe polls the wallet and emits accountsChanged and chainChanged when
// the observed values differ from the previous poll. The first poll only
// establishes a baseline.
func (c *Client) Subscribe(ctx context.Context, sink chan<- identity.ProviderEvent) (event.Subscription, error) {
	accounts, err := c.accounts(ctx)
	if err != nil {
		return nil, err
	}
	networkID, err := c.NetworkID(ctx)
	if err != nil {
		return nil, err
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		send := func(ev identity.ProviderEvent) bool {
			select {
			case sink <- ev:
				return true
			case <-quit:
				return false
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-quit:
				return nil
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}

			current, err := c.accounts(ctx)
			if err != nil {
				c.logger.WarnContext(ctx, "wallet poll failed", "error", err)
				continue
			}
			if !slices.Equal(current, accounts) {
				accounts = current
				if !send(identity.ProviderEvent{Kind: identity.ProviderAccountsChanged, Accounts: slices.Clone(current)}) {
					return nil
				}
			}

			id, err := c.NetworkID(ctx)
			if err != nil {
				c.logger.WarnContext(ctx, "network poll failed", "error", err)
				continue
			}
			if id != networkID {
				networkID = id
				if !send(identity.ProviderEvent{Kind: identity.ProviderChainChanged}) {
					return nil
				}
			}
		}
	}), nil
}

type sendTxArgs struct {
	From common.Address  `json:"from"`
	To   *common.Address `json:"to"`
	Data hexutil.Bytes   `json:"data"`
}

// SendTransaction submits a transaction for the wallet to sign and broadcast.
func (c *Client) SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error) {
	var hash common.Hash
	args := sendTxArgs{From: from, To: &to, Data: data}
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// CallContract executes a read-only call against the latest block.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return c.eth.CallContract(ctx, msg, block)
}

// TransactionReceipt returns ethereum.NotFound while the transaction is pending.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.eth.TransactionReceipt(ctx, hash)
}

// CodeAt reports the contract bytecode at addr, used to confirm a deployment.
func (c *Client) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return c.eth.CodeAt(ctx, addr, nil)
}
