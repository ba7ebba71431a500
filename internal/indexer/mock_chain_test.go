package indexer

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeChain is an in-memory ledger for indexer tests. Logs are matched
// against the filter query's block range, addresses, and first topic.
type fakeChain struct {
	head uint64
	logs []types.Log

	genesis time.Time

	headErr   error
	filterErr error
}

func newFakeChain(head uint64) *fakeChain {
	return &fakeChain{head: head, genesis: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeChain) BlockNumber(_ context.Context) (uint64, error) {
	if f.headErr != nil {
		return 0, f.headErr
	}
	return f.head, nil
}

func (f *fakeChain) ChainID(_ context.Context) (*big.Int, error) {
	return big.NewInt(31337), nil
}

func (f *fakeChain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	var out []types.Log
	for _, lg := range f.logs {
		if q.FromBlock != nil && lg.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && lg.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, lg.Address) {
			continue
		}
		if len(q.Topics) > 0 && len(q.Topics[0]) > 0 {
			if len(lg.Topics) == 0 || !containsHash(q.Topics[0], lg.Topics[0]) {
				continue
			}
		}
		out = append(out, lg)
	}
	return out, nil
}

func (f *fakeChain) BlockTime(_ context.Context, number uint64) (time.Time, error) {
	// One block per 12 seconds from a fixed genesis.
	return f.genesis.Add(time.Duration(number) * 12 * time.Second), nil
}

func (f *fakeChain) CallContract(_ context.Context, _ ethereum.CallMsg) ([]byte, error) {
	return nil, nil
}

func (f *fakeChain) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	return 0, nil
}

func (f *fakeChain) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeChain) SendTransaction(_ context.Context, _ *types.Transaction) error {
	return nil
}

func (f *fakeChain) WaitForReceipt(_ context.Context, txHash common.Hash, _ time.Duration) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: txHash}, nil
}

func (f *fakeChain) Close() {}

func containsAddress(addrs []common.Address, a common.Address) bool {
	for _, x := range addrs {
		if x == a {
			return true
		}
	}
	return false
}

func containsHash(hashes []common.Hash, h common.Hash) bool {
	for _, x := range hashes {
		if x == h {
			return true
		}
	}
	return false
}
