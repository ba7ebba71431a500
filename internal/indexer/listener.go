package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alfredjeanlab/trustscore/internal/chain"
	"github.com/alfredjeanlab/trustscore/internal/events"
	"github.com/alfredjeanlab/trustscore/internal/model"
	"github.com/alfredjeanlab/trustscore/internal/store"
)

// Listener ingests one contract's events for a block range. ProcessRange
// must be idempotent: ranges are replayed after partial failures, so
// seeing the same log twice has to be a no-op.
type Listener interface {
	Name() string
	ProcessRange(ctx context.Context, from, to uint64) (int, error)
}

// blockTimes memoizes header timestamp lookups within one range.
type blockTimes struct {
	client chain.Client
	cache  map[uint64]time.Time
}

func newBlockTimes(client chain.Client) *blockTimes {
	return &blockTimes{client: client, cache: make(map[uint64]time.Time)}
}

func (b *blockTimes) at(ctx context.Context, block uint64) (time.Time, error) {
	if ts, ok := b.cache[block]; ok {
		return ts, nil
	}
	ts, err := b.client.BlockTime(ctx, block)
	if err != nil {
		return time.Time{}, err
	}
	b.cache[block] = ts
	return ts, nil
}

// IdentityListener ingests agent registration events from the identity
// registry contract.
type IdentityListener struct {
	client   chain.Client
	store    store.Store
	events   events.Publisher
	contract common.Address
	logger   *slog.Logger
}

func NewIdentityListener(client chain.Client, st store.Store, pub events.Publisher, contract common.Address, logger *slog.Logger) *IdentityListener {
	return &IdentityListener{
		client:   client,
		store:    st,
		events:   pub,
		contract: contract,
		logger:   logger,
	}
}

func (l *IdentityListener) Name() string { return "identity" }

func (l *IdentityListener) ProcessRange(ctx context.Context, from, to uint64) (int, error) {
	logs, err := l.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{l.contract},
		Topics:    [][]common.Hash{{chain.RegisteredTopic, chain.AgentURIUpdatedTopic}},
	})
	if err != nil {
		return 0, fmt.Errorf("filtering identity logs [%d, %d]: %w", from, to, err)
	}

	times := newBlockTimes(l.client)
	processed := 0
	for _, lg := range logs {
		if len(lg.Topics) == 0 {
			continue
		}
		switch lg.Topics[0] {
		case chain.RegisteredTopic:
			err = l.handleRegistered(ctx, lg, times)
		case chain.AgentURIUpdatedTopic:
			err = l.handleURIUpdated(ctx, lg)
		default:
			continue
		}
		if err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

func (l *IdentityListener) handleRegistered(ctx context.Context, lg types.Log, times *blockTimes) error {
	ev, err := chain.ParseRegistered(lg)
	if err != nil {
		return err
	}
	ts, err := times.at(ctx, lg.BlockNumber)
	if err != nil {
		return fmt.Errorf("fetching block time for %d: %w", lg.BlockNumber, err)
	}

	agentID := ev.AgentID.String()
	agent := &model.Agent{
		ID:          agentID,
		Owner:       ev.Owner.Hex(),
		MetadataURI: ev.AgentURI,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash.Hex(),
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	created := false
	err = l.store.RunInTransaction(ctx, func(tx store.Store) error {
		_, err := tx.GetAgent(ctx, agentID)
		switch {
		case err == nil:
			// Replayed registration: refresh the metadata URI only.
			return tx.UpdateAgentMetadata(ctx, agentID, ev.AgentURI)
		case errors.Is(err, sql.ErrNoRows):
			created = true
			return tx.CreateAgent(ctx, agent)
		default:
			return err
		}
	})
	if err != nil {
		return fmt.Errorf("storing agent %s: %w", agentID, err)
	}

	if created {
		l.logger.Info("agent registered", "agent_id", agentID, "owner", agent.Owner, "block", lg.BlockNumber)
		if err := l.events.Publish(ctx, events.TopicAgentRegistered, events.AgentRegistered{Agent: agent}); err != nil {
			l.logger.Warn("publishing agent.registered event", "agent_id", agentID, "error", err)
		}
	}
	return nil
}

func (l *IdentityListener) handleURIUpdated(ctx context.Context, lg types.Log) error {
	ev, err := chain.ParseAgentURIUpdated(lg)
	if err != nil {
		return err
	}
	agentID := ev.AgentID.String()

	err = l.store.UpdateAgentMetadata(ctx, agentID, ev.AgentURI)
	if errors.Is(err, sql.ErrNoRows) {
		l.logger.Warn("uri update for unknown agent", "agent_id", agentID, "block", lg.BlockNumber)
		return nil
	}
	if err != nil {
		return fmt.Errorf("updating agent %s metadata: %w", agentID, err)
	}

	agent, err := l.store.GetAgent(ctx, agentID)
	if err != nil {
		return fmt.Errorf("reloading agent %s: %w", agentID, err)
	}
	if err := l.events.Publish(ctx, events.TopicAgentUpdated, events.AgentUpdated{Agent: agent}); err != nil {
		l.logger.Warn("publishing agent.updated event", "agent_id", agentID, "error", err)
	}
	return nil
}

// ReputationListener ingests feedback events from the reputation
// registry contract.
type ReputationListener struct {
	client   chain.Client
	store    store.Store
	events   events.Publisher
	contract common.Address
	logger   *slog.Logger
}

func NewReputationListener(client chain.Client, st store.Store, pub events.Publisher, contract common.Address, logger *slog.Logger) *ReputationListener {
	return &ReputationListener{
		client:   client,
		store:    st,
		events:   pub,
		contract: contract,
		logger:   logger,
	}
}

func (l *ReputationListener) Name() string { return "reputation" }

func (l *ReputationListener) ProcessRange(ctx context.Context, from, to uint64) (int, error) {
	logs, err := l.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{l.contract},
		Topics:    [][]common.Hash{{chain.NewFeedbackTopic, chain.FeedbackRevokedTopic}},
	})
	if err != nil {
		return 0, fmt.Errorf("filtering reputation logs [%d, %d]: %w", from, to, err)
	}

	times := newBlockTimes(l.client)
	processed := 0
	for _, lg := range logs {
		if len(lg.Topics) == 0 {
			continue
		}
		switch lg.Topics[0] {
		case chain.NewFeedbackTopic:
			err = l.handleNewFeedback(ctx, lg, times)
		case chain.FeedbackRevokedTopic:
			err = l.handleRevoked(ctx, lg)
		default:
			continue
		}
		if err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

func (l *ReputationListener) handleNewFeedback(ctx context.Context, lg types.Log, times *blockTimes) error {
	ev, err := chain.ParseNewFeedback(lg)
	if err != nil {
		return err
	}

	id := model.FeedbackID(ev.AgentID.String(), ev.ClientAddress.Hex(), ev.FeedbackIndex)
	if _, err := l.store.GetFeedback(ctx, id); err == nil {
		// Replayed event.
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking feedback %s: %w", id, err)
	}

	ts, err := times.at(ctx, lg.BlockNumber)
	if err != nil {
		return fmt.Errorf("fetching block time for %d: %w", lg.BlockNumber, err)
	}

	fb := &model.Feedback{
		ID:            id,
		Subject:       ev.AgentID.String(),
		Author:        ev.ClientAddress.Hex(),
		Tag1:          ev.Tag1,
		Tag2:          ev.Tag2,
		Value:         ev.Value,
		ValueDecimals: ev.ValueDecimals,
		Comment:       ev.FeedbackURI,
		BlockNumber:   lg.BlockNumber,
		TxHash:        lg.TxHash.Hex(),
		Timestamp:     ts,
	}
	if err := l.store.CreateFeedback(ctx, fb); err != nil {
		return fmt.Errorf("storing feedback %s: %w", id, err)
	}

	l.logger.Info("feedback ingested", "feedback_id", id, "agent_id", fb.Subject, "value", fb.Value, "block", lg.BlockNumber)
	if err := l.events.Publish(ctx, events.TopicFeedbackNew, events.FeedbackNew{Feedback: fb}); err != nil {
		l.logger.Warn("publishing feedback.new event", "feedback_id", id, "error", err)
	}
	return nil
}

func (l *ReputationListener) handleRevoked(ctx context.Context, lg types.Log) error {
	ev, err := chain.ParseFeedbackRevoked(lg)
	if err != nil {
		return err
	}

	id := model.FeedbackID(ev.AgentID.String(), ev.ClientAddress.Hex(), ev.FeedbackIndex)
	err = l.store.RevokeFeedback(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		l.logger.Warn("revocation for unknown feedback", "feedback_id", id, "block", lg.BlockNumber)
		return nil
	}
	if err != nil {
		return fmt.Errorf("revoking feedback %s: %w", id, err)
	}

	l.logger.Info("feedback revoked", "feedback_id", id, "block", lg.BlockNumber)
	if err := l.events.Publish(ctx, events.TopicFeedbackRevoked, events.FeedbackRevoked{FeedbackID: id, AgentID: ev.AgentID.String()}); err != nil {
		l.logger.Warn("publishing feedback.revoked event", "feedback_id", id, "error", err)
	}
	return nil
}
