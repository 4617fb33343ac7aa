// Package devnet provides a typed JSON-RPC client for local test chains
// (anvil, hardhat) including their impersonation and balance extensions.
package devnet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultRPCURL is the endpoint anvil and hardhat listen on by default.
const DefaultRPCURL = "http://127.0.0.1:8545"

// Client talks to a devnet node. Every method is a single network call;
// nothing is cached or retried.
type Client struct {
	rpc       *rpc.Client
	eth       *ethclient.Client
	namespace Namespace
	logger    *slog.Logger
	metrics   *metrics

	registerer prometheus.Registerer
}

// Option configures the client.
type Option func(*Client)

// WithNamespace selects the test-extension method prefix.
func WithNamespace(ns Namespace) Option {
	return func(c *Client) {
		c.namespace = ns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRegisterer registers request metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

// Dial connects to the node at rawURL.
func Dial(ctx context.Context, rawURL string, opts ...Option) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	return NewClient(rpcClient, opts...), nil
}

// NewClient wraps an existing RPC connection.
func NewClient(rpcClient *rpc.Client, opts ...Option) *Client {
	c := &Client{
		rpc:       rpcClient,
		eth:       ethclient.NewClient(rpcClient),
		namespace: NamespaceAnvil,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.metrics = newMetrics(c.registerer)
	return c
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// Namespace returns the extension namespace in use.
func (c *Client) Namespace() Namespace {
	return c.namespace
}

// Impersonate lets unsigned transactions from addr be accepted by the node.
func (c *Client) Impersonate(ctx context.Context, addr common.Address) error {
	return c.callExtension(ctx, methodImpersonate, addr)
}

// StopImpersonating revokes impersonation of addr. Nodes accept this for
// addresses that are not impersonated; whatever they answer is returned.
func (c *Client) StopImpersonating(ctx context.Context, addr common.Address) error {
	return c.callExtension(ctx, methodStopImpersonating, addr)
}

// SetBalance overwrites the balance of addr.
func (c *Client) SetBalance(ctx context.Context, addr common.Address, balance *big.Int) error {
	if balance == nil || balance.Sign() < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidBalance, balance)
	}
	return c.callExtension(ctx, methodSetBalance, addr, (*hexutil.Big)(balance))
}

// BalanceAt returns the latest balance of addr in wei.
func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	start := time.Now()
	balance, err := c.eth.BalanceAt(ctx, addr, nil)
	c.metrics.observe(EthGetBalance, start, err)
	if err != nil {
		return nil, c.wrap(EthGetBalance, false, err)
	}
	return balance, nil
}

// NonceAt returns the next nonce for addr, counting pending transactions.
// Only meaningful for accounts whose key is held locally.
func (c *Client) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	start := time.Now()
	nonce, err := c.eth.PendingNonceAt(ctx, addr)
	c.metrics.observe(EthGetTransactionCount, start, err)
	if err != nil {
		return 0, c.wrap(EthGetTransactionCount, false, err)
	}
	return nonce, nil
}

// ChainID returns the node's chain id.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	start := time.Now()
	chainID, err := c.eth.ChainID(ctx)
	c.metrics.observe(EthChainID, start, err)
	if err != nil {
		return nil, c.wrap(EthChainID, false, err)
	}
	return chainID, nil
}

// SendTransaction broadcasts a signed transaction and returns its hash.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	start := time.Now()
	err := c.eth.SendTransaction(ctx, tx)
	c.metrics.observe(EthSendRawTransaction, start, err)
	if err != nil {
		return common.Hash{}, c.wrap(EthSendRawTransaction, false, err)
	}
	c.logger.Debug("transaction broadcast",
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.Uint64("nonce", tx.Nonce()),
	)
	return tx.Hash(), nil
}

// WaitMined blocks until tx has a receipt or ctx is done.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	start := time.Now()
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	c.metrics.observe(EthGetTransactionReceipt, start, err)
	if err != nil {
		return nil, c.wrap(EthGetTransactionReceipt, false, err)
	}
	return receipt, nil
}

func (c *Client) callExtension(ctx context.Context, name string, args ...interface{}) error {
	method := c.namespace.Method(name)
	c.logger.Debug("devnet call", slog.String("method", method))

	start := time.Now()
	err := c.rpc.CallContext(ctx, nil, method, args...)
	c.metrics.observe(method, start, err)
	return c.wrap(method, true, err)
}

// wrap converts a transport or JSON-RPC error into an *RPCError. Extension
// methods the node does not know about are reported as unsupported.
func (c *Client) wrap(method string, extension bool, err error) error {
	if err == nil {
		return nil
	}

	rpcErr := &RPCError{
		Method:  method,
		Message: err.Error(),
		err:     err,
	}
	var coded rpc.Error
	if errors.As(err, &coded) {
		rpcErr.Code = coded.ErrorCode()
	}

	if extension && rpcErr.IsUnsupported() {
		return fmt.Errorf("%w: %w", ErrUnsupportedOperation, rpcErr)
	}
	return rpcErr
}
