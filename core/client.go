package core

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Client is the read side of the chain the wallet needs. ethclient.Client satisfies it.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)

	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)

	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	// CodeAt completes bind.DeployBackend, which receipt waits are built on.
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
}

var _ Client = (*MockClient)(nil)

// MockClient is an in-memory chain: receipts are mined by hand with Mine.
type MockClient struct {
	mu       sync.Mutex
	chainID  *big.Int
	block    uint64
	balances map[common.Address]*big.Int
	receipts map[common.Hash]*types.Receipt
}

func NewMockClient(chainID int64) *MockClient {
	return &MockClient{
		chainID:  big.NewInt(chainID),
		block:    1,
		balances: make(map[common.Address]*big.Int),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (mc *MockClient) ChainID(ctx context.Context) (*big.Int, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return new(big.Int).Set(mc.chainID), nil
}

func (mc *MockClient) SetChainID(chainID int64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.chainID = big.NewInt(chainID)
}

func (mc *MockClient) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}

func (mc *MockClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if b, ok := mc.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (mc *MockClient) SetBalance(account common.Address, balance *big.Int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.balances[account] = new(big.Int).Set(balance)
}

func (mc *MockClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	receipt, ok := mc.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// Mine includes txHash in a new block with the given receipt status.
func (mc *MockClient) Mine(txHash common.Hash, status uint64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.block++
	mc.receipts[txHash] = &types.Receipt{
		TxHash:      txHash,
		Status:      status,
		BlockNumber: new(big.Int).SetUint64(mc.block),
	}
}
