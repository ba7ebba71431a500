package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alfredjeanlab/trustscore/internal/chain"
	"github.com/alfredjeanlab/trustscore/internal/config"
	"github.com/alfredjeanlab/trustscore/internal/events"
	"github.com/alfredjeanlab/trustscore/internal/store/postgres"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// runtime bundles the shared process dependencies each subcommand wires
// up: config, store, event publisher, and (optionally) the chain client.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *postgres.PostgresStore
	publisher events.Publisher
	chain     chain.Client
}

// newRuntime loads the config and connects the store and publisher.
// dialRPC also connects the chain client.
func newRuntime(ctx context.Context, dialRPC bool) (*runtime, error) {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	st, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			st.Close()
			return nil, err
		}
		publisher = pub
		logger.Info("events enabled", "nats_url", cfg.NATSURL)
	} else {
		publisher = &events.NoopPublisher{}
		logger.Info("events disabled (TRUSTSCORE_NATS_URL not set)")
	}

	rt := &runtime{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		publisher: publisher,
	}

	if dialRPC {
		client, err := chain.Dial(ctx, cfg.RPCURL)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.chain = client
		logger.Info("chain client connected", "rpc_url", cfg.RPCURL)
	}

	return rt, nil
}

func (rt *runtime) close() {
	if rt.chain != nil {
		rt.chain.Close()
	}
	if err := rt.publisher.Close(); err != nil {
		rt.logger.Error("error closing publisher", "err", err)
	}
	if err := rt.store.Close(); err != nil {
		rt.logger.Error("error closing store", "err", err)
	}
}

func contractAddress(hex string) common.Address {
	return common.HexToAddress(hex)
}
