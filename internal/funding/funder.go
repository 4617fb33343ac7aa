// Package funding makes sure an account can pay for gas before it is used.
package funding

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"

	"github.com/Bidon15/popsigner/devctl/internal/devnet"
)

// Defaults for funding transfers.
const (
	DefaultGasLimit = params.TxGas // plain value transfer
	DefaultGasPrice = params.GWei
)

// ErrFundingFailed is returned when the target is still below the minimum
// after a funding attempt, or the funding transfer could not be made.
var ErrFundingFailed = errors.New("funding: funding failed")

// Strategy selects how missing balance is provided.
type Strategy string

const (
	// StrategyDirect overwrites the balance with the node's setBalance extension.
	StrategyDirect Strategy = "direct"
	// StrategyTransfer sends a signed value transfer from a funding account.
	StrategyTransfer Strategy = "transfer"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyDirect, StrategyTransfer:
		return st, nil
	default:
		return "", fmt.Errorf("unknown funding strategy %q (want direct or transfer)", s)
	}
}

// Node is the subset of the devnet client used for funding.
type Node interface {
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	SetBalance(ctx context.Context, addr common.Address, balance *big.Int) error
	NonceAt(ctx context.Context, addr common.Address) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Config configures a Funder.
type Config struct {
	Strategy Strategy

	// FundingKey signs transfers. Required for StrategyTransfer.
	FundingKey *ecdsa.PrivateKey
	GasLimit   uint64
	GasPrice   *big.Int

	Logger *slog.Logger
}

// Funder tops up account balances.
type Funder struct {
	node     Node
	strategy Strategy
	key      *ecdsa.PrivateKey
	from     common.Address
	gasLimit uint64
	gasPrice *big.Int
	logger   *slog.Logger
}

// NewFunder creates a funder for the configured strategy.
func NewFunder(node Node, cfg Config) (*Funder, error) {
	if _, err := ParseStrategy(string(cfg.Strategy)); err != nil {
		return nil, err
	}

	f := &Funder{
		node:     node,
		strategy: cfg.Strategy,
		gasLimit: cfg.GasLimit,
		gasPrice: cfg.GasPrice,
		logger:   cfg.Logger,
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.gasLimit == 0 {
		f.gasLimit = DefaultGasLimit
	}
	if f.gasPrice == nil {
		f.gasPrice = big.NewInt(DefaultGasPrice)
	}

	if cfg.Strategy == StrategyTransfer {
		if cfg.FundingKey == nil {
			return nil, fmt.Errorf("transfer strategy requires a funding key")
		}
		f.key = cfg.FundingKey
		f.from = crypto.PubkeyToAddress(cfg.FundingKey.PublicKey)
	}

	return f, nil
}

// Strategy returns the configured strategy.
func (f *Funder) Strategy() Strategy {
	return f.strategy
}

// EnsureFunded makes sure target holds at least minimum wei. If it already
// does, no state-changing call is made.
func (f *Funder) EnsureFunded(ctx context.Context, target common.Address, minimum *big.Int) error {
	if minimum == nil || minimum.Sign() < 0 {
		return fmt.Errorf("%w: minimum %v", devnet.ErrInvalidBalance, minimum)
	}

	balance, err := f.node.BalanceAt(ctx, target)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}

	if balance.Cmp(minimum) >= 0 {
		f.logger.Info("account already funded",
			slog.String("address", target.Hex()),
			slog.String("balance_eth", FormatEther(balance)),
			slog.String("minimum_eth", FormatEther(minimum)),
		)
		return nil
	}

	f.logger.Info("funding account",
		slog.String("address", target.Hex()),
		slog.String("strategy", string(f.strategy)),
		slog.String("balance_wei", balance.String()),
		slog.String("minimum_wei", minimum.String()),
	)

	switch f.strategy {
	case StrategyDirect:
		if err := f.node.SetBalance(ctx, target, minimum); err != nil {
			return fmt.Errorf("set balance: %w", err)
		}
	case StrategyTransfer:
		shortfall := new(big.Int).Sub(minimum, balance)
		if err := f.transfer(ctx, target, shortfall); err != nil {
			return err
		}
	}

	return f.verify(ctx, target, minimum)
}

// transfer sends value wei from the funding account to target and waits
// for it to be mined.
func (f *Funder) transfer(ctx context.Context, target common.Address, value *big.Int) error {
	if target == f.from {
		return fmt.Errorf("%w: funding account %s cannot fund itself", ErrFundingFailed, target.Hex())
	}

	// Nonce, chain id and balance can all change between runs.
	chainID, err := f.node.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain ID: %w", err)
	}

	nonce, err := f.node.NonceAt(ctx, f.from)
	if err != nil {
		return fmt.Errorf("get nonce: %w", err)
	}

	gasCost := new(big.Int).Mul(f.gasPrice, new(big.Int).SetUint64(f.gasLimit))
	required := new(big.Int).Add(value, gasCost)
	available, err := f.node.BalanceAt(ctx, f.from)
	if err != nil {
		return fmt.Errorf("get funding account balance: %w", err)
	}
	if available.Cmp(required) < 0 {
		return fmt.Errorf("%w: funding account %s has %s ETH, needs %s ETH",
			ErrFundingFailed, f.from.Hex(), FormatEther(available), FormatEther(required))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &target,
		Value:    value,
		Gas:      f.gasLimit,
		GasPrice: f.gasPrice,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), f.key)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}

	hash, err := f.node.SendTransaction(ctx, signedTx)
	if err != nil {
		return fmt.Errorf("%w: send transaction: %w", ErrFundingFailed, err)
	}

	f.logger.Info("funding transaction submitted, waiting for confirmation",
		slog.String("tx_hash", hash.Hex()),
		slog.String("from", f.from.Hex()),
		slog.String("to", target.Hex()),
		slog.String("value_wei", value.String()),
		slog.Uint64("nonce", nonce),
	)

	receipt, err := f.node.WaitMined(ctx, signedTx)
	if err != nil {
		return fmt.Errorf("%w: wait for receipt: %w", ErrFundingFailed, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: transaction %s reverted", ErrFundingFailed, hash.Hex())
	}

	return nil
}

// verify re-reads the balance after funding.
func (f *Funder) verify(ctx context.Context, target common.Address, minimum *big.Int) error {
	balance, err := f.node.BalanceAt(ctx, target)
	if err != nil {
		return fmt.Errorf("get balance after funding: %w", err)
	}
	if balance.Cmp(minimum) < 0 {
		return fmt.Errorf("%w: %s holds %s wei after funding, need %s",
			ErrFundingFailed, target.Hex(), balance, minimum)
	}

	f.logger.Info("account funded",
		slog.String("address", target.Hex()),
		slog.String("balance_eth", FormatEther(balance)),
	)
	return nil
}
