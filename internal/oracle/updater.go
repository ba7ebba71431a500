// Package oracle publishes computed trust scores to the on-chain oracle
// contract in batches, gated by a minimum-change threshold.
package oracle

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alfredjeanlab/trustscore/internal/chain"
	"github.com/alfredjeanlab/trustscore/internal/events"
	"github.com/alfredjeanlab/trustscore/internal/model"
	"github.com/alfredjeanlab/trustscore/internal/scoring"
	"github.com/alfredjeanlab/trustscore/internal/store"
)

// Scores are stored on-chain as score*100 integers.
const onChainScale = 100

const (
	baseGas       = 50_000
	gasPerUpdate  = 30_000
	defaultTipCap = 1_000_000_000 // 1 gwei
)

// Config holds the publication pipeline settings.
type Config struct {
	OracleAddress  common.Address
	PrivateKey     *ecdsa.PrivateKey
	BatchSize      int
	MinScoreChange float64
	ConfirmTimeout time.Duration
	BatchDelay     time.Duration
}

// Updater runs the publication pipeline: recompute, diff against the
// chain, and push changed scores in batched oracle transactions.
type Updater struct {
	client     chain.Client
	store      store.Store
	aggregator *scoring.Aggregator
	events     events.Publisher
	cfg        Config
	from       common.Address
	logger     *slog.Logger

	chainID *big.Int
}

func NewUpdater(client chain.Client, st store.Store, agg *scoring.Aggregator, pub events.Publisher, cfg Config, logger *slog.Logger) *Updater {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 2 * time.Minute
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = 2 * time.Second
	}
	return &Updater{
		client:     client,
		store:      st,
		aggregator: agg,
		events:     pub,
		cfg:        cfg,
		from:       crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey),
		logger:     logger,
	}
}

// RunUpdateCycle recomputes all scores, selects the unpushed ones whose
// delta against the on-chain value crosses the threshold, and publishes
// them in batches. Returns the number of scores confirmed on-chain.
// Scores in a failed or unconfirmed batch stay unpushed and are retried
// on the next cycle.
func (u *Updater) RunUpdateCycle(ctx context.Context) (int, error) {
	if _, err := u.aggregator.ComputeAllScores(ctx); err != nil {
		return 0, fmt.Errorf("recomputing scores: %w", err)
	}

	// Working-set cap keeps one cycle bounded; the remainder is picked
	// up next cycle.
	unpushed, err := u.store.ListUnpushedScores(ctx, u.cfg.BatchSize*10)
	if err != nil {
		return 0, fmt.Errorf("listing unpushed scores: %w", err)
	}

	var pending []*model.ComputedScore
	for _, score := range unpushed {
		if u.shouldPublish(ctx, score) {
			pending = append(pending, score)
		}
	}
	if len(pending) == 0 {
		u.logger.Info("no score changes to publish", "unpushed", len(unpushed))
		return 0, nil
	}

	published := 0
	for i := 0; i < len(pending); i += u.cfg.BatchSize {
		end := i + u.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[i:end]

		if err := u.publishBatch(ctx, batch); err != nil {
			u.logger.Error("batch publication failed", "size", len(batch), "err", err)
			continue
		}
		published += len(batch)

		if end < len(pending) {
			// Brief pause so consecutive batches don't race on nonce
			// and fee estimation.
			select {
			case <-ctx.Done():
				return published, ctx.Err()
			case <-time.After(u.cfg.BatchDelay):
			}
		}
	}

	u.logger.Info("update cycle finished", "candidates", len(pending), "published", published)
	return published, nil
}

// shouldPublish reports whether a score's delta against the on-chain
// value crosses the configured threshold. Missing on-chain state or a
// failed view call both publish: the threshold only exists to bound
// transaction cost, never to hold back a first write.
func (u *Updater) shouldPublish(ctx context.Context, score *model.ComputedScore) bool {
	calldata, err := chain.PackGetScoreView(agentIDToBig(score.AgentID))
	if err != nil {
		u.logger.Warn("packing score view call", "agent_id", score.AgentID, "err", err)
		return true
	}
	result, err := u.client.CallContract(ctx, ethereum.CallMsg{To: &u.cfg.OracleAddress, Data: calldata})
	if err != nil {
		u.logger.Warn("reading on-chain score", "agent_id", score.AgentID, "err", err)
		return true
	}
	onChain, exists, err := chain.UnpackScoreView(result)
	if err != nil {
		u.logger.Warn("decoding on-chain score", "agent_id", score.AgentID, "err", err)
		return true
	}
	if !exists {
		return true
	}

	delta := math.Abs(score.OverallScore - float64(onChain.Int64())/onChainScale)
	return delta >= u.cfg.MinScoreChange
}

func (u *Updater) publishBatch(ctx context.Context, batch []*model.ComputedScore) error {
	agentIDs := make([]*big.Int, len(batch))
	scaled := make([]*big.Int, len(batch))
	ids := make([]string, len(batch))
	for i, score := range batch {
		agentIDs[i] = agentIDToBig(score.AgentID)
		scaled[i] = big.NewInt(int64(math.Round(score.OverallScore * onChainScale)))
		ids[i] = score.AgentID
	}

	calldata, err := chain.PackUpdateScoreBatch(agentIDs, scaled)
	if err != nil {
		return fmt.Errorf("packing batch calldata: %w", err)
	}

	chainID, err := u.getChainID(ctx)
	if err != nil {
		return err
	}
	nonce, err := u.client.PendingNonceAt(ctx, u.from)
	if err != nil {
		return fmt.Errorf("fetching nonce: %w", err)
	}
	gasPrice, err := u.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("fetching gas price: %w", err)
	}

	tx, err := types.SignNewTx(u.cfg.PrivateKey, types.LatestSignerForChainID(chainID), &types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(defaultTipCap),
		GasFeeCap: new(big.Int).Mul(gasPrice, big.NewInt(2)),
		Gas:       uint64(baseGas + gasPerUpdate*len(batch)),
		To:        &u.cfg.OracleAddress,
		Data:      calldata,
	})
	if err != nil {
		return fmt.Errorf("signing transaction: %w", err)
	}

	if err := u.client.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("sending transaction: %w", err)
	}
	u.logger.Info("batch submitted", "tx", tx.Hash().Hex(), "size", len(batch))

	receipt, err := u.client.WaitForReceipt(ctx, tx.Hash(), u.cfg.ConfirmTimeout)
	if err != nil {
		return fmt.Errorf("waiting for receipt of %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}

	// Only a confirmed success receipt marks the batch as pushed.
	pushedAt := time.Now().UTC()
	if err := u.store.MarkScoresPushed(ctx, ids, pushedAt); err != nil {
		return fmt.Errorf("marking scores pushed: %w", err)
	}

	if err := u.events.Publish(ctx, events.TopicScorePublished, events.ScorePublished{
		AgentIDs: ids,
		TxHash:   tx.Hash().Hex(),
		PushedAt: pushedAt,
	}); err != nil {
		u.logger.Warn("publishing score.published event", "err", err)
	}
	return nil
}

func (u *Updater) getChainID(ctx context.Context) (*big.Int, error) {
	if u.chainID != nil {
		return u.chainID, nil
	}
	id, err := u.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching chain id: %w", err)
	}
	u.chainID = id
	return id, nil
}

// RunDaemon runs update cycles on a fixed interval until the context is
// cancelled. A cycle's failure is logged, never fatal.
func (u *Updater) RunDaemon(ctx context.Context, interval time.Duration) error {
	if _, err := u.RunUpdateCycle(ctx); err != nil && ctx.Err() == nil {
		u.logger.Error("update cycle failed", "err", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := u.RunUpdateCycle(ctx); err != nil && ctx.Err() == nil {
				u.logger.Error("update cycle failed", "err", err)
			}
		}
	}
}

// agentIDToBig parses the decimal agent id used as the store key back
// into the uint256 the contracts take.
func agentIDToBig(id string) *big.Int {
	v, ok := new(big.Int).SetString(id, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}
