package oracle

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeChain simulates the oracle contract for updater tests. onChain
// maps agent id (decimal string) to the stored score*100 value; agents
// absent from the map read back as not existing.
type fakeChain struct {
	onChain map[string]int64

	viewErr    error
	sendErr    error
	receiptErr error
	reverted   bool

	sentTxs []*types.Transaction
}

func newFakeChain() *fakeChain {
	return &fakeChain{onChain: make(map[string]int64)}
}

func (f *fakeChain) BlockNumber(_ context.Context) (uint64, error) { return 100, nil }

func (f *fakeChain) ChainID(_ context.Context) (*big.Int, error) { return big.NewInt(31337), nil }

func (f *fakeChain) FilterLogs(_ context.Context, _ ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *fakeChain) BlockTime(_ context.Context, _ uint64) (time.Time, error) {
	return time.Now().UTC(), nil
}

// CallContract answers getScoreView calls. The agent id sits in the
// first calldata word after the selector.
func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if f.viewErr != nil {
		return nil, f.viewErr
	}
	if len(msg.Data) < 36 {
		return nil, nil
	}
	agentID := new(big.Int).SetBytes(msg.Data[4:36]).String()

	out := make([]byte, 96)
	if scaled, ok := f.onChain[agentID]; ok {
		copy(out[0:32], common.BigToHash(big.NewInt(scaled)).Bytes())
		out[95] = 1 // exists
	}
	return out, nil
}

func (f *fakeChain) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	return uint64(len(f.sentTxs)), nil
}

func (f *fakeChain) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentTxs = append(f.sentTxs, tx)
	return nil
}

func (f *fakeChain) WaitForReceipt(_ context.Context, txHash common.Hash, _ time.Duration) (*types.Receipt, error) {
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	status := types.ReceiptStatusSuccessful
	if f.reverted {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{Status: status, TxHash: txHash}, nil
}

func (f *fakeChain) Close() {}
