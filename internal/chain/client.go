// Package chain provides the read/write ledger client used by the
// indexer and oracle pipelines, plus the contract event and calldata
// codecs for the identity, reputation, and oracle contracts.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// receiptPollInterval is how often WaitForReceipt re-checks a pending
// transaction.
const receiptPollInterval = 2 * time.Second

// Client is the ledger interface the pipelines depend on. Tests
// substitute an in-memory fake; production uses *RPC.
type Client interface {
	// BlockNumber returns the current chain head height.
	BlockNumber(ctx context.Context) (uint64, error)

	// ChainID returns the chain id used for transaction signing.
	ChainID(ctx context.Context) (*big.Int, error)

	// FilterLogs returns the logs matching the query, ordered as the
	// node returns them.
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)

	// BlockTime returns the timestamp of the given block.
	BlockTime(ctx context.Context, number uint64) (time.Time, error)

	// CallContract executes a read-only contract call at the latest block.
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)

	// PendingNonceAt returns the next nonce for the account.
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)

	// SuggestGasPrice returns the node's gas price estimate.
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// SendTransaction broadcasts a signed transaction.
	SendTransaction(ctx context.Context, tx *types.Transaction) error

	// WaitForReceipt polls for the transaction receipt until it appears
	// or the timeout elapses.
	WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error)

	// Close releases the underlying connection.
	Close()
}

// RPC implements Client over a JSON-RPC endpoint.
type RPC struct {
	ec *ethclient.Client
}

// Compile-time check that RPC implements Client.
var _ Client = (*RPC)(nil)

// Dial connects to the JSON-RPC endpoint at the given URL.
func Dial(ctx context.Context, url string) (*RPC, error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", url, err)
	}
	return &RPC{ec: ec}, nil
}

func (c *RPC) BlockNumber(ctx context.Context) (uint64, error) {
	return c.ec.BlockNumber(ctx)
}

func (c *RPC) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ec.ChainID(ctx)
}

func (c *RPC) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return c.ec.FilterLogs(ctx, q)
}

func (c *RPC) BlockTime(ctx context.Context, number uint64) (time.Time, error) {
	header, err := c.ec.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return time.Time{}, fmt.Errorf("header for block %d: %w", number, err)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}

func (c *RPC) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return c.ec.CallContract(ctx, msg, nil)
}

func (c *RPC) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.ec.PendingNonceAt(ctx, account)
}

func (c *RPC) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.ec.SuggestGasPrice(ctx)
}

func (c *RPC) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.ec.SendTransaction(ctx, tx)
}

func (c *RPC) WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.ec.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt for %s: %w", txHash, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *RPC) Close() {
	c.ec.Close()
}
