package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/trustscore/internal/indexer"
)

var indexOnce bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Ingest registry events from the chain into Postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx, true)
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.cfg.ValidateIndexing(); err != nil {
			return err
		}

		listeners := []indexer.Listener{
			indexer.NewIdentityListener(rt.chain, rt.store, rt.publisher,
				contractAddress(rt.cfg.IdentityContract), rt.logger),
			indexer.NewReputationListener(rt.chain, rt.store, rt.publisher,
				contractAddress(rt.cfg.ReputationContract), rt.logger),
		}
		ix := indexer.New(rt.chain, rt.store, listeners,
			rt.cfg.StartBlock, rt.cfg.BlockBatchSize, rt.cfg.PollInterval, rt.logger)

		if indexOnce {
			return ix.IndexOnce(ctx)
		}

		ix.Start()
		rt.logger.Info("indexer started", "poll_interval", rt.cfg.PollInterval)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		rt.logger.Info("received signal, shutting down", "signal", sig)

		ix.Stop()
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexOnce, "once", false, "run a single indexing pass and exit")
}
