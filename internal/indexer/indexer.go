package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/trustscore/internal/chain"
	"github.com/alfredjeanlab/trustscore/internal/store"
)

// CheckpointKey is the indexer_state key holding the last fully
// processed block height.
const CheckpointKey = "last_block"

// Indexer drives the listeners over new block ranges and advances the
// resume checkpoint. The checkpoint only moves after every listener has
// durably written a range; a failed range is retried on the next poll.
//
// Indexing is forward-only: chain reorganizations are not detected or
// unwound. This is a known limitation, acceptable for the confirmation
// depths the registries are deployed at.
type Indexer struct {
	client       chain.Client
	store        store.Store
	listeners    []Listener
	startBlock   uint64
	batchSize    uint64
	pollInterval time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(client chain.Client, st store.Store, listeners []Listener, startBlock, batchSize uint64, pollInterval time.Duration, logger *slog.Logger) *Indexer {
	if batchSize == 0 {
		batchSize = 1000
	}
	return &Indexer{
		client:       client,
		store:        st,
		listeners:    listeners,
		startBlock:   startBlock,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Start begins polling for new blocks. An initial pass runs immediately,
// then one per poll interval.
func (ix *Indexer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	ix.cancel = cancel

	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ix.run(ctx)
	}()
}

// Stop cancels the indexer and waits for the current pass to finish.
func (ix *Indexer) Stop() {
	if ix.cancel != nil {
		ix.cancel()
	}
	ix.wg.Wait()
}

func (ix *Indexer) run(ctx context.Context) {
	if err := ix.IndexOnce(ctx); err != nil && ctx.Err() == nil {
		ix.logger.Error("index pass failed", "err", err)
	}

	ticker := time.NewTicker(ix.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ix.IndexOnce(ctx); err != nil && ctx.Err() == nil {
				ix.logger.Error("index pass failed", "err", err)
			}
		}
	}
}

// IndexOnce processes every block from the checkpoint up to the current
// chain head, in fixed-size ranges. Each range runs all listeners; the
// checkpoint advances only when all of them succeed.
func (ix *Indexer) IndexOnce(ctx context.Context) error {
	head, err := ix.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("fetching chain head: %w", err)
	}

	from := ix.startBlock
	if cp, ok, err := ix.store.GetCheckpoint(ctx, CheckpointKey); err != nil {
		return fmt.Errorf("loading checkpoint: %w", err)
	} else if ok {
		from = cp + 1
	}
	if from > head {
		return nil
	}

	for from <= head {
		to := from + ix.batchSize - 1
		if to > head {
			to = head
		}
		if err := ix.processRange(ctx, from, to); err != nil {
			return err
		}
		if err := ix.store.SetCheckpoint(ctx, CheckpointKey, to); err != nil {
			return fmt.Errorf("saving checkpoint %d: %w", to, err)
		}
		from = to + 1

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Indexer) processRange(ctx context.Context, from, to uint64) error {
	type result struct {
		name  string
		count int
		err   error
	}
	results := make([]result, len(ix.listeners))

	var wg sync.WaitGroup
	for i, l := range ix.listeners {
		wg.Add(1)
		go func(i int, l Listener) {
			defer wg.Done()
			count, err := l.ProcessRange(ctx, from, to)
			results[i] = result{name: l.Name(), count: count, err: err}
		}(i, l)
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		if r.err != nil {
			return fmt.Errorf("listener %s on range [%d, %d]: %w", r.name, from, to, r.err)
		}
		total += r.count
	}
	if total > 0 {
		ix.logger.Info("indexed range", "from", from, "to", to, "events", total)
	}
	return nil
}
