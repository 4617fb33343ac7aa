package funding

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/popsigner/devctl/internal/devnet"
)

var target = common.HexToAddress("0xDeD796De6a14E255487191963dEe436c45995813")

// fakeNode keeps balances in memory and applies value transfers on send.
type fakeNode struct {
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	chainID  *big.Int

	setBalanceErr error
	sendErr       error
	reverted      bool
	ignoreWrites  bool

	calls []string
	sent  []*types.Transaction
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		balances: make(map[common.Address]*big.Int),
		nonces:   make(map[common.Address]uint64),
		chainID:  big.NewInt(31337),
	}
}

func (n *fakeNode) balance(addr common.Address) *big.Int {
	if b, ok := n.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (n *fakeNode) BalanceAt(_ context.Context, addr common.Address) (*big.Int, error) {
	n.calls = append(n.calls, "BalanceAt")
	return n.balance(addr), nil
}

func (n *fakeNode) SetBalance(_ context.Context, addr common.Address, balance *big.Int) error {
	n.calls = append(n.calls, "SetBalance")
	if n.setBalanceErr != nil {
		return n.setBalanceErr
	}
	if !n.ignoreWrites {
		n.balances[addr] = new(big.Int).Set(balance)
	}
	return nil
}

func (n *fakeNode) NonceAt(_ context.Context, addr common.Address) (uint64, error) {
	n.calls = append(n.calls, "NonceAt")
	return n.nonces[addr], nil
}

func (n *fakeNode) ChainID(context.Context) (*big.Int, error) {
	n.calls = append(n.calls, "ChainID")
	return n.chainID, nil
}

func (n *fakeNode) SendTransaction(_ context.Context, tx *types.Transaction) (common.Hash, error) {
	n.calls = append(n.calls, "SendTransaction")
	if n.sendErr != nil {
		return common.Hash{}, n.sendErr
	}
	from, err := types.Sender(types.LatestSignerForChainID(n.chainID), tx)
	if err != nil {
		return common.Hash{}, err
	}
	if tx.Nonce() != n.nonces[from] {
		return common.Hash{}, errors.New("nonce too low")
	}
	n.sent = append(n.sent, tx)
	n.nonces[from]++
	if !n.reverted && !n.ignoreWrites {
		n.balances[from] = new(big.Int).Sub(n.balance(from), tx.Cost())
		n.balances[*tx.To()] = new(big.Int).Add(n.balance(*tx.To()), tx.Value())
	}
	return tx.Hash(), nil
}

func (n *fakeNode) WaitMined(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	n.calls = append(n.calls, "WaitMined")
	status := types.ReceiptStatusSuccessful
	if n.reverted {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{Status: status, TxHash: tx.Hash()}, nil
}

func (n *fakeNode) mutatingCalls() int {
	count := 0
	for _, c := range n.calls {
		if c == "SetBalance" || c == "SendTransaction" {
			count++
		}
	}
	return count
}

func newTransferFunder(t *testing.T, node *fakeNode) (*Funder, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	f, err := NewFunder(node, Config{Strategy: StrategyTransfer, FundingKey: key})
	require.NoError(t, err)
	return f, crypto.PubkeyToAddress(key.PublicKey)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("direct")
	require.NoError(t, err)
	assert.Equal(t, StrategyDirect, s)

	s, err = ParseStrategy("transfer")
	require.NoError(t, err)
	assert.Equal(t, StrategyTransfer, s)

	_, err = ParseStrategy("auto")
	assert.Error(t, err)
}

func TestNewFunder(t *testing.T) {
	_, err := NewFunder(newFakeNode(), Config{Strategy: StrategyTransfer})
	assert.ErrorContains(t, err, "requires a funding key")

	_, err = NewFunder(newFakeNode(), Config{})
	assert.Error(t, err)

	f, err := NewFunder(newFakeNode(), Config{Strategy: StrategyDirect})
	require.NoError(t, err)
	assert.Equal(t, StrategyDirect, f.Strategy())
	assert.Equal(t, DefaultGasLimit, f.gasLimit)
	assert.Equal(t, big.NewInt(DefaultGasPrice), f.gasPrice)
}

func TestFunder_AlreadyFunded(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		balance  int64
		minimum  int64
	}{
		{name: "direct above minimum", strategy: StrategyDirect, balance: 10, minimum: 5},
		{name: "direct at minimum", strategy: StrategyDirect, balance: 5, minimum: 5},
		{name: "transfer above minimum", strategy: StrategyTransfer, balance: 10, minimum: 5},
		{name: "zero minimum", strategy: StrategyTransfer, balance: 0, minimum: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := newFakeNode()
			node.balances[target] = big.NewInt(tt.balance)

			var f *Funder
			if tt.strategy == StrategyTransfer {
				f, _ = newTransferFunder(t, node)
			} else {
				var err error
				f, err = NewFunder(node, Config{Strategy: tt.strategy})
				require.NoError(t, err)
			}

			require.NoError(t, f.EnsureFunded(context.Background(), target, big.NewInt(tt.minimum)))
			assert.Equal(t, 0, node.mutatingCalls())
			assert.Equal(t, []string{"BalanceAt"}, node.calls)
		})
	}
}

func TestFunder_DirectInjection(t *testing.T) {
	node := newFakeNode()
	f, err := NewFunder(node, Config{Strategy: StrategyDirect})
	require.NoError(t, err)

	require.NoError(t, f.EnsureFunded(context.Background(), target, big.NewInt(1)))

	assert.Equal(t, []string{"BalanceAt", "SetBalance", "BalanceAt"}, node.calls)
	assert.Equal(t, big.NewInt(1), node.balance(target))
}

func TestFunder_DirectInjectionErrors(t *testing.T) {
	t.Run("unsupported node", func(t *testing.T) {
		node := newFakeNode()
		node.setBalanceErr = devnet.ErrUnsupportedOperation
		f, err := NewFunder(node, Config{Strategy: StrategyDirect})
		require.NoError(t, err)

		err = f.EnsureFunded(context.Background(), target, big.NewInt(1))
		assert.ErrorIs(t, err, devnet.ErrUnsupportedOperation)
	})

	t.Run("balance unchanged", func(t *testing.T) {
		node := newFakeNode()
		node.ignoreWrites = true
		f, err := NewFunder(node, Config{Strategy: StrategyDirect})
		require.NoError(t, err)

		err = f.EnsureFunded(context.Background(), target, big.NewInt(1))
		assert.ErrorIs(t, err, ErrFundingFailed)
	})
}

func TestFunder_Transfer(t *testing.T) {
	node := newFakeNode()
	f, funder := newTransferFunder(t, node)
	node.balances[funder] = big.NewInt(1e18)
	node.nonces[funder] = 4
	node.balances[target] = big.NewInt(100)

	require.NoError(t, f.EnsureFunded(context.Background(), target, big.NewInt(1000)))

	require.Len(t, node.sent, 1)
	tx := node.sent[0]
	assert.Equal(t, big.NewInt(900), tx.Value())
	assert.Equal(t, uint64(4), tx.Nonce())
	assert.Equal(t, DefaultGasLimit, tx.Gas())
	assert.Equal(t, target, *tx.To())
	assert.Equal(t, big.NewInt(31337), tx.ChainId())

	from, err := types.Sender(types.LatestSignerForChainID(node.chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, funder, from)

	assert.Equal(t, big.NewInt(1000), node.balance(target))
	assert.NotContains(t, node.calls, "SetBalance")
}

func TestFunder_TransferFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(n *fakeNode, funder common.Address)
		wantSent int
	}{
		{
			name: "broadcast rejected",
			setup: func(n *fakeNode, funder common.Address) {
				n.balances[funder] = big.NewInt(1e18)
				n.sendErr = errors.New("insufficient funds for gas * price + value")
			},
			wantSent: 0,
		},
		{
			name: "transaction reverted",
			setup: func(n *fakeNode, funder common.Address) {
				n.balances[funder] = big.NewInt(1e18)
				n.reverted = true
			},
			wantSent: 1,
		},
		{
			name: "balance still short after confirmation",
			setup: func(n *fakeNode, funder common.Address) {
				n.balances[funder] = big.NewInt(1e18)
				n.ignoreWrites = true
			},
			wantSent: 1,
		},
		{
			name:     "funding account empty",
			setup:    func(n *fakeNode, funder common.Address) {},
			wantSent: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := newFakeNode()
			f, funder := newTransferFunder(t, node)
			tt.setup(node, funder)

			err := f.EnsureFunded(context.Background(), target, big.NewInt(1e15))
			assert.ErrorIs(t, err, ErrFundingFailed)
			assert.Len(t, node.sent, tt.wantSent)
		})
	}
}

func TestFunder_TransferToSelf(t *testing.T) {
	node := newFakeNode()
	f, funder := newTransferFunder(t, node)

	err := f.EnsureFunded(context.Background(), funder, big.NewInt(1))
	assert.ErrorIs(t, err, ErrFundingFailed)
	assert.Empty(t, node.sent)
}

func TestFunder_InvalidMinimum(t *testing.T) {
	node := newFakeNode()
	f, err := NewFunder(node, Config{Strategy: StrategyDirect})
	require.NoError(t, err)

	err = f.EnsureFunded(context.Background(), target, big.NewInt(-1))
	assert.ErrorIs(t, err, devnet.ErrInvalidBalance)
	err = f.EnsureFunded(context.Background(), target, nil)
	assert.ErrorIs(t, err, devnet.ErrInvalidBalance)
	assert.Empty(t, node.calls)
}
